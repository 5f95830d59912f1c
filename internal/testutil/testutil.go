// Package testutil provides shared test helpers and run-directory fixtures.
//
// Fixtures are written through fsutil so the same builders serve both the
// in-memory filesystem and real temporary directories.
package testutil

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio/npy"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/raydata/internal/fsutil"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Array is one named member of an npz archive. Value is anything npy.Write
// accepts: a slice of numbers or a gonum matrix.
type Array struct {
	Name  string
	Value interface{}
}

// NPZ builds an .npz archive (a zip of .npy members) in memory.
func NPZ(t *testing.T, arrays ...Array) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, a := range arrays {
		w, err := zw.Create(a.Name + ".npy")
		if err != nil {
			t.Fatalf("create %s: %v", a.Name, err)
		}
		if err := npy.Write(w, a.Value); err != nil {
			t.Fatalf("write %s: %v", a.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close npz: %v", err)
	}
	return buf.Bytes()
}

// PointsMatrix returns points as an (M, 2) matrix, or an empty flat slice
// when there are none (gonum matrices cannot have zero rows).
func PointsMatrix(points [][2]float64) interface{} {
	if len(points) == 0 {
		return []float64{}
	}
	flat := make([]float64, 0, 2*len(points))
	for _, p := range points {
		flat = append(flat, p[0], p[1])
	}
	return mat.NewDense(len(points), 2, flat)
}

// Batch builds a batch archive with the given points and offsets.
func Batch(t *testing.T, points [][2]float64, offsets []int64) []byte {
	t.Helper()
	return NPZ(t,
		Array{Name: "points", Value: PointsMatrix(points)},
		Array{Name: "offsets", Value: offsets},
	)
}

// RunDir describes the contents of a run directory fixture.
type RunDir struct {
	Parameters string            // medium/parameters.csv, skipped when empty
	Medium     string            // medium/medium.csv, skipped when empty
	Batches    map[string][]byte // batches/<name>
	NoBatches  bool              // leave the batches directory out entirely
}

// WriteRunDir materialises rd under root.
func WriteRunDir(t *testing.T, fsys fsutil.FileSystem, root string, rd RunDir) {
	t.Helper()

	write := func(rel string, data []byte) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := fsys.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}

	if err := fsys.MkdirAll(filepath.Join(root, "medium"), 0755); err != nil {
		t.Fatalf("mkdir medium: %v", err)
	}
	if rd.Parameters != "" {
		write(filepath.Join("medium", "parameters.csv"), []byte(rd.Parameters))
	}
	if rd.Medium != "" {
		write(filepath.Join("medium", "medium.csv"), []byte(rd.Medium))
	}
	if rd.NoBatches {
		return
	}
	if err := fsys.MkdirAll(filepath.Join(root, "batches"), 0755); err != nil {
		t.Fatalf("mkdir batches: %v", err)
	}
	for name, data := range rd.Batches {
		write(filepath.Join("batches", name), data)
	}
}
