package raydata

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EndpointStats holds the polar statistics of the ray endpoints.
type EndpointStats struct {
	Radii       []float64
	Angles      []float64
	MeanRadius  float64
	Projections []Point
}

// ComputeEndpointStats computes each endpoint's distance from the origin and
// its angle, the mean distance, and the projection of every endpoint onto the
// circle of mean radius. With no endpoints the mean is 0 and there are no
// projections.
func ComputeEndpointStats(endpoints []Point) EndpointStats {
	st := EndpointStats{
		Radii:       make([]float64, len(endpoints)),
		Angles:      make([]float64, len(endpoints)),
		Projections: make([]Point, len(endpoints)),
	}
	if len(endpoints) == 0 {
		return st
	}

	for i, p := range endpoints {
		st.Radii[i] = math.Hypot(p.X(), p.Y())
		st.Angles[i] = math.Atan2(p.Y(), p.X())
	}
	st.MeanRadius = stat.Mean(st.Radii, nil)

	for i, theta := range st.Angles {
		st.Projections[i] = Point{st.MeanRadius * math.Cos(theta), st.MeanRadius * math.Sin(theta)}
	}
	return st
}
