// Package raydata converts a simulation run directory (parameters, scattering
// medium and batched ray trajectories) into the JSON document read by the web
// visualiser.
package raydata

import "errors"

// Layout of a run directory.
const (
	MediumDir      = "medium"
	ParametersFile = "parameters.csv"
	MediumFile     = "medium.csv"
	BatchesDir     = "batches"

	// BatchPattern matches batch archives inside BatchesDir. Archives are
	// consumed in lexicographic order, so producers must zero-pad indices.
	BatchPattern = "batch_*.npz"
)

// Output file names.
const (
	DefaultOutputName = "ray_data.json"
	MediumOutputName  = "medium_data.json"
)

// DefaultMaxRays is the ray cap used when none is configured.
const DefaultMaxRays = 2000

var (
	// ErrMissingBatches is returned when the run has no batches directory.
	ErrMissingBatches = errors.New("missing batches directory")

	// ErrMalformedArchive is returned for batch archives that cannot be decoded
	// into a points buffer and an offsets index.
	ErrMalformedArchive = errors.New("malformed batch archive")

	// ErrMalformedMedium is returned when the medium table lacks a required
	// column or holds a non-numeric value.
	ErrMalformedMedium = errors.New("malformed medium table")
)

// Point is a 2-D coordinate, serialised as [x, y].
type Point [2]float64

// X returns the first coordinate.
func (p Point) X() float64 { return p[0] }

// Y returns the second coordinate.
func (p Point) Y() float64 { return p[1] }

// Ray is one trajectory from origin to termination.
type Ray []Point

// Endpoint returns the last point of the ray. The ray must not be empty.
func (r Ray) Endpoint() Point { return r[len(r)-1] }

// MediumParticle is one scattering particle of the medium.
type MediumParticle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	N      float64 `json:"n"`
	Radius float64 `json:"radius"`
}

// DocumentStats holds the counters embedded in the output document.
type DocumentStats struct {
	NumRays            int `json:"num_rays"`
	NumMediumParticles int `json:"num_medium_particles"`
}

// Document is the JSON payload consumed by the visualiser. Field names are a
// fixed contract with the front end.
type Document struct {
	Parameters  *ParameterSet    `json:"parameters"`
	Medium      []MediumParticle `json:"medium"`
	Rays        []Ray            `json:"rays"`
	Endpoints   []Point          `json:"endpoints"`
	Projections []Point          `json:"projections"`
	MeanRadius  float64          `json:"mean_radius"`
	Stats       DocumentStats    `json:"stats"`
}

// MediumDocument is the companion payload holding only the run description.
type MediumDocument struct {
	Parameters *ParameterSet    `json:"parameters"`
	Medium     []MediumParticle `json:"medium"`
}

// normalize replaces nil slices so they serialise as [] rather than null.
func (d *Document) normalize() {
	if d.Parameters == nil {
		d.Parameters = NewParameterSet()
	}
	if d.Medium == nil {
		d.Medium = []MediumParticle{}
	}
	if d.Rays == nil {
		d.Rays = []Ray{}
	}
	if d.Endpoints == nil {
		d.Endpoints = []Point{}
	}
	if d.Projections == nil {
		d.Projections = []Point{}
	}
	d.Stats = DocumentStats{
		NumRays:            len(d.Rays),
		NumMediumParticles: len(d.Medium),
	}
}
