package raydata

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"sort"

	"github.com/banshee-data/raydata/internal/fsutil"
)

// RaySet holds the rays retained from the batch archives, in archive order
// then in-archive index order, with one endpoint per ray.
type RaySet struct {
	Rays      []Ray
	Endpoints []Point

	// Diagnostics.
	ArchivesFound  int
	ArchivesOpened int
	EmptySkipped   int
}

// BatchFiles returns the batch archives of runDir in consumption order. It
// fails with ErrMissingBatches when the batches directory is absent.
func BatchFiles(fsys fsutil.FileSystem, runDir string) ([]string, error) {
	dir := filepath.Join(runDir, BatchesDir)

	info, err := fsys.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingBatches, dir)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrMissingBatches, dir)
	}

	names, err := fsys.ReadDirNames(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, name := range names {
		ok, err := filepath.Match(BatchPattern, name)
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadRays scans the batch archives of runDir and reconstructs rays until
// maxRays have been collected. Rays with no points are skipped without
// counting toward the cap, and archives past the cap are never read. Only one
// archive is held in memory at a time. A retained ray with a NaN or infinite
// coordinate fails the load; points outside retained rays are not inspected.
func LoadRays(fsys fsutil.FileSystem, runDir string, maxRays int) (*RaySet, error) {
	files, err := BatchFiles(fsys, runDir)
	if err != nil {
		return nil, err
	}

	set := &RaySet{
		Rays:          []Ray{},
		Endpoints:     []Point{},
		ArchivesFound: len(files),
	}

	for _, path := range files {
		if len(set.Rays) >= maxRays {
			break
		}

		data, err := fsys.ReadFile(path)
		if err != nil {
			return nil, err
		}
		batch, err := decodeBatchArchive(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		set.ArchivesOpened++

		if err := set.collect(batch, maxRays); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return set, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// collect appends the non-empty rays of batch until the cap is reached.
func (s *RaySet) collect(batch *batchArchive, maxRays int) error {
	m := int64(len(batch.points))

	for k := 0; k < batch.numRays(); k++ {
		if len(s.Rays) >= maxRays {
			return nil
		}

		i0, i1 := batch.offsets[k], batch.offsets[k+1]
		if i1 <= i0 {
			s.EmptySkipped++
			continue
		}
		if i0 < 0 || i1 > m {
			return fmt.Errorf("%w: ray %d spans [%d, %d) outside %d points", ErrMalformedArchive, k, i0, i1, m)
		}

		ray := make(Ray, i1-i0)
		copy(ray, batch.points[i0:i1])
		for j, p := range ray {
			if !isFinite(p.X()) || !isFinite(p.Y()) {
				return fmt.Errorf("%w: ray %d point %d (%v, %v) is not finite", ErrMalformedArchive, k, j, p.X(), p.Y())
			}
		}
		s.Rays = append(s.Rays, ray)
		s.Endpoints = append(s.Endpoints, ray.Endpoint())
	}
	return nil
}
