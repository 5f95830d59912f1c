package raydata

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/raydata/internal/fsutil"
	"github.com/banshee-data/raydata/internal/security"
	"github.com/banshee-data/raydata/internal/testutil"
	"github.com/banshee-data/raydata/internal/timeutil"
)

func quietExporter(fsys fsutil.FileSystem) (*Exporter, *[]string) {
	var lines []string
	return &Exporter{
		FS: fsys,
		Logf: func(format string, v ...interface{}) {
			lines = append(lines, fmt.Sprintf(format, v...))
		},
	}, &lines
}

func sampleRun(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	testutil.WriteRunDir(t, mfs, "/run", testutil.RunDir{
		Parameters: "N=2\nlabel=robust\n",
		Medium:     "x,y,n,radius\n1,1,1.3,0.5\n-1,2,1.1,0.25\n",
		Batches: map[string][]byte{
			"batch_0000.npz": testutil.Batch(t, [][2]float64{{0, 0}, {3, 4}, {0, 0}, {0, 2}}, []int64{0, 2, 2, 4}),
		},
	})
	return mfs
}

// decoded mirrors the JSON contract for assertions.
type decoded struct {
	Parameters  map[string]interface{} `json:"parameters"`
	Medium      []MediumParticle       `json:"medium"`
	Rays        [][][2]float64         `json:"rays"`
	Endpoints   [][2]float64           `json:"endpoints"`
	Projections [][2]float64           `json:"projections"`
	MeanRadius  float64                `json:"mean_radius"`
	Stats       DocumentStats          `json:"stats"`
}

func readDoc(t *testing.T, fsys fsutil.FileSystem, path string) decoded {
	t.Helper()
	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	var d decoded
	require.NoError(t, json.Unmarshal(data, &d))
	return d
}

func TestExporter_Run(t *testing.T) {
	t.Parallel()
	mfs := sampleRun(t)
	e, lines := quietExporter(mfs)

	res, err := e.Run(Options{RunDir: "/run", MaxRays: 2000, OutputDir: "/out"})
	require.NoError(t, err)
	assert.Equal(t, "/out/ray_data.json", res.OutputPath)
	assert.Greater(t, res.OutputBytes, int64(0))

	d := readDoc(t, mfs, res.OutputPath)
	assert.Equal(t, map[string]interface{}{"N": 2.0, "label": "robust"}, d.Parameters)
	assert.Len(t, d.Medium, 2)
	assert.Equal(t, [][][2]float64{{{0, 0}, {3, 4}}, {{0, 0}, {0, 2}}}, d.Rays)
	assert.Equal(t, [][2]float64{{3, 4}, {0, 2}}, d.Endpoints)
	assert.InDelta(t, 3.5, d.MeanRadius, 1e-12)
	require.Len(t, d.Projections, 2)
	assert.InDelta(t, 2.1, d.Projections[0][0], 1e-9)
	assert.InDelta(t, 2.8, d.Projections[0][1], 1e-9)
	assert.Equal(t, DocumentStats{NumRays: 2, NumMediumParticles: 2}, d.Stats)

	assert.Contains(t, *lines, "Read 2 parameters")
	assert.Contains(t, *lines, "Data saved to: /out/ray_data.json")
	assert.False(t, mfs.Exists("/out/medium_data.json"))
}

func TestExporter_RunExplicitPathAndMediumOutput(t *testing.T) {
	t.Parallel()
	mfs := sampleRun(t)
	e, _ := quietExporter(mfs)

	res, err := e.Run(Options{RunDir: "/run", MaxRays: 1, OutputPath: "/web/data/rays.json", MediumOutput: true})
	require.NoError(t, err)
	assert.Equal(t, "/web/data/medium_data.json", res.MediumPath)

	d := readDoc(t, mfs, "/web/data/rays.json")
	assert.Len(t, d.Rays, 1)

	data, err := mfs.ReadFile("/web/data/medium_data.json")
	require.NoError(t, err)
	var md map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &md))
	assert.Len(t, md, 2)
	assert.JSONEq(t, `{"N":2,"label":"robust"}`, string(md["parameters"]))
}

func TestExporter_EmptyRunSerialisesEmptyArrays(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	testutil.WriteRunDir(t, mfs, "/run", testutil.RunDir{})
	e, _ := quietExporter(mfs)

	res, err := e.Run(Options{RunDir: "/run", MaxRays: 10, OutputDir: "/out"})
	require.NoError(t, err)

	data, err := mfs.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"parameters": {},
		"medium": [],
		"rays": [],
		"endpoints": [],
		"projections": [],
		"mean_radius": 0,
		"stats": {"num_rays": 0, "num_medium_particles": 0}
	}`, string(data))
}

func TestExporter_ZeroCap(t *testing.T) {
	t.Parallel()
	mfs := sampleRun(t)
	e, _ := quietExporter(mfs)

	doc, err := e.Build("/run", 0)
	require.NoError(t, err)
	assert.Empty(t, doc.Rays)
	assert.Empty(t, doc.Endpoints)
	assert.Empty(t, doc.Projections)
	assert.Equal(t, 0.0, doc.MeanRadius)
	assert.Equal(t, 2, doc.Stats.NumMediumParticles)
}

func TestExporter_NegativeCap(t *testing.T) {
	t.Parallel()
	e, _ := quietExporter(sampleRun(t))

	_, err := e.Build("/run", -1)
	assert.Error(t, err)
}

func TestExporter_Idempotent(t *testing.T) {
	t.Parallel()
	mfs := sampleRun(t)
	e, _ := quietExporter(mfs)

	_, err := e.Run(Options{RunDir: "/run", MaxRays: 5, OutputPath: "/out/a.json"})
	require.NoError(t, err)
	_, err = e.Run(Options{RunDir: "/run", MaxRays: 5, OutputPath: "/out/b.json"})
	require.NoError(t, err)

	a, _ := mfs.ReadFile("/out/a.json")
	b, _ := mfs.ReadFile("/out/b.json")
	if diff := cmp.Diff(string(a), string(b)); diff != "" {
		t.Errorf("outputs differ (-a +b):\n%s", diff)
	}
}

func TestExporter_FailuresLeaveNoOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		run     testutil.RunDir
		wantErr error
		stage   string
	}{
		{
			name:    "missing batches",
			run:     testutil.RunDir{NoBatches: true},
			wantErr: ErrMissingBatches,
			stage:   "load rays",
		},
		{
			name:    "malformed archive",
			run:     testutil.RunDir{Batches: map[string][]byte{"batch_0000.npz": []byte("x")}},
			wantErr: ErrMalformedArchive,
			stage:   "load rays",
		},
		{
			name:    "malformed medium",
			run:     testutil.RunDir{Medium: "x,y,n,radius\n1,2,bad,3\n"},
			wantErr: ErrMalformedMedium,
			stage:   "read medium",
		},
		{
			name:    "nan medium radius",
			run:     testutil.RunDir{Medium: "x,y,n,radius\n1,2,1.3,nan\n"},
			wantErr: ErrMalformedMedium,
			stage:   "read medium",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mfs := fsutil.NewMemoryFileSystem()
			testutil.WriteRunDir(t, mfs, "/run", tt.run)
			e, _ := quietExporter(mfs)

			_, err := e.Run(Options{RunDir: "/run", MaxRays: 10, OutputDir: "/out"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Contains(t, err.Error(), tt.stage)
			assert.False(t, mfs.Exists("/out/ray_data.json"))
		})
	}
}

func TestExporter_NonFiniteRayFailsAtLoad(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	testutil.WriteRunDir(t, mfs, "/run", testutil.RunDir{
		Batches: map[string][]byte{
			"batch_0000.npz": testutil.Batch(t, [][2]float64{{0, 0}, {math.NaN(), 1}}, []int64{0, 2}),
		},
	})
	e, lines := quietExporter(mfs)

	_, err := e.Run(Options{RunDir: "/run", MaxRays: 10, OutputDir: "/out"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedArchive)
	assert.True(t, strings.HasPrefix(err.Error(), "load rays: "), "got %v", err)
	assert.NotContains(t, err.Error(), "encode")
	assert.False(t, mfs.Exists("/out/ray_data.json"))
	for _, l := range *lines {
		assert.NotContains(t, l, "NaN")
	}
}

func TestExporter_OnDisk(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	runDir := filepath.Join(root, "500_10000_10_(1.0_1.3_1.0)_42_robust")
	osfs := fsutil.OSFileSystem{}
	testutil.WriteRunDir(t, osfs, runDir, testutil.RunDir{
		Parameters: "seed=42\n",
		Batches: map[string][]byte{
			"batch_0000.npz": testutil.Batch(t, [][2]float64{{1, 0}, {0, 1}}, []int64{0, 1, 2}),
		},
	})

	e := NewExporter()
	e.Logf = func(string, ...interface{}) {}
	res, err := e.Run(Options{RunDir: runDir, MaxRays: 2000, OutputDir: filepath.Join(root, "out")})
	require.NoError(t, err)

	d := readDoc(t, osfs, res.OutputPath)
	assert.Equal(t, 2, d.Stats.NumRays)
	assert.InDelta(t, 1.0, d.MeanRadius, 1e-12)
	assert.Empty(t, d.Medium)
}

func TestOptions_ResolveOutputPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ray_data.json", Options{}.ResolveOutputPath())
	assert.Equal(t, "out/ray_data.json", Options{OutputDir: "out"}.ResolveOutputPath())
	assert.Equal(t, "x.json", Options{OutputDir: "out", OutputPath: "x.json"}.ResolveOutputPath())
}

func TestExporter_RefusesOutputInsideInputs(t *testing.T) {
	for _, out := range []string{"/run/medium/ray_data.json", "/run/batches/batch_9999.npz"} {
		mfs := sampleRun(t)
		e, _ := quietExporter(mfs)

		before, err := mfs.ReadDirNames("/run/batches")
		require.NoError(t, err)

		_, err = e.Run(Options{RunDir: "/run", MaxRays: 10, OutputPath: out})
		require.Error(t, err, out)
		assert.True(t, errors.Is(err, security.ErrProtectedPath))

		after, err := mfs.ReadDirNames("/run/batches")
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.False(t, mfs.Exists(out))
	}
}

func TestExporter_OutputBesideInputsAllowed(t *testing.T) {
	mfs := sampleRun(t)
	e, _ := quietExporter(mfs)

	res, err := e.Run(Options{RunDir: "/run", MaxRays: 10, OutputDir: "/run"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/run", DefaultOutputName), res.OutputPath)
}

type steppingClock struct {
	*timeutil.MockClock
	step time.Duration
}

func (c steppingClock) Now() time.Time {
	now := c.MockClock.Now()
	c.Advance(c.step)
	return now
}

func TestExporter_Elapsed(t *testing.T) {
	start := time.Date(2025, 6, 23, 12, 0, 0, 0, time.UTC)
	e, lines := quietExporter(sampleRun(t))
	e.Clock = steppingClock{MockClock: timeutil.NewMockClock(start), step: 250 * time.Millisecond}

	res, err := e.Run(Options{RunDir: "/run", MaxRays: 10, OutputDir: "/out"})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, res.Elapsed)
	assert.True(t, res.CompletedAt.Equal(start.Add(250*time.Millisecond)))
	assert.Contains(t, *lines, "Export completed in 250ms")
}
