package testutil

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/sbinet/npyio/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/raydata/internal/fsutil"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()
	AssertNoError(t, nil)
}

func TestAssertError(t *testing.T) {
	t.Parallel()
	AssertError(t, errors.New("test error"))
}

func TestBatch_RoundTripsThroughNpy(t *testing.T) {
	t.Parallel()

	data := Batch(t, [][2]float64{{1, 2}, {3, 4}, {5, 6}}, []int64{0, 1, 3})

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	names := []string{zr.File[0].Name, zr.File[1].Name}
	assert.ElementsMatch(t, []string{"points.npy", "offsets.npy"}, names)

	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		r, err := npy.NewReader(rc)
		require.NoError(t, err)

		switch f.Name {
		case "points.npy":
			assert.Equal(t, []int{3, 2}, r.Header.Descr.Shape)
			var v []float64
			require.NoError(t, r.Read(&v))
			assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, v)
		case "offsets.npy":
			assert.Equal(t, []int{3}, r.Header.Descr.Shape)
			var v []int64
			require.NoError(t, r.Read(&v))
			assert.Equal(t, []int64{0, 1, 3}, v)
		}
		rc.Close()
	}
}

func TestWriteRunDir(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	WriteRunDir(t, mfs, "/run", RunDir{
		Parameters: "seed=42\n",
		Batches:    map[string][]byte{"batch_0000.npz": {0}},
	})

	assert.True(t, mfs.Exists("/run/medium/parameters.csv"))
	assert.False(t, mfs.Exists("/run/medium/medium.csv"))
	assert.True(t, mfs.Exists("/run/batches/batch_0000.npz"))

	WriteRunDir(t, mfs, "/bare", RunDir{NoBatches: true})
	assert.True(t, mfs.Exists("/bare/medium"))
	assert.False(t, mfs.Exists("/bare/batches"))
}
