package raydata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/raydata/internal/fsutil"
)

var mediumColumns = []string{"x", "y", "n", "radius"}

// ReadMedium reads medium/medium.csv from runDir. It returns nil, nil when the
// file does not exist, and a non-nil (possibly empty) slice otherwise. Any
// row whose x, y, n or radius is not a finite number fails the whole read.
func ReadMedium(fsys fsutil.FileSystem, runDir string) ([]MediumParticle, error) {
	path := filepath.Join(runDir, MediumDir, MediumFile)

	f, err := fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return []MediumParticle{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: header: %w", path, err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	cols := make([]int, len(mediumColumns))
	for i, name := range mediumColumns {
		c, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing column %q", ErrMalformedMedium, path, name)
		}
		cols[i] = c
	}

	particles := []MediumParticle{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMedium, path, err)
		}
		line, _ := r.FieldPos(0)

		var vals [4]float64
		for i, c := range cols {
			if c >= len(record) {
				return nil, fmt.Errorf("%w: %s line %d: missing %s", ErrMalformedMedium, path, line, mediumColumns[i])
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %s: %v", ErrMalformedMedium, path, line, mediumColumns[i], err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: %s line %d: %s is not finite", ErrMalformedMedium, path, line, mediumColumns[i])
			}
			vals[i] = v
		}
		particles = append(particles, MediumParticle{X: vals[0], Y: vals[1], N: vals[2], Radius: vals[3]})
	}

	return particles, nil
}

// MediumSummary describes the particle population for diagnostics.
type MediumSummary struct {
	Count      int
	MeanRadius float64
	MinRadius  float64
	MaxRadius  float64
	MeanIndex  float64
}

// SummarizeMedium computes radius and refractive-index statistics. An empty
// medium yields the zero summary.
func SummarizeMedium(particles []MediumParticle) MediumSummary {
	if len(particles) == 0 {
		return MediumSummary{}
	}
	radii := make([]float64, len(particles))
	indices := make([]float64, len(particles))
	for i, p := range particles {
		radii[i] = p.Radius
		indices[i] = p.N
	}
	return MediumSummary{
		Count:      len(particles),
		MeanRadius: stat.Mean(radii, nil),
		MinRadius:  floats.Min(radii),
		MaxRadius:  floats.Max(radii),
		MeanIndex:  stat.Mean(indices, nil),
	}
}
