// Package preview renders quick-look images of an export document: a PNG via
// gonum/plot and a standalone HTML scatter via go-echarts. Both are written
// through fsutil so they share the atomic write path of the JSON document.
package preview

import (
	"math"

	"github.com/banshee-data/raydata/internal/fsutil"
	"github.com/banshee-data/raydata/internal/raydata"
)

// circleSegments is the number of segments used to draw the mean-radius circle.
const circleSegments = 180

// WritePNG renders doc as a PNG and writes it to path.
func WritePNG(fsys fsutil.FileSystem, doc *raydata.Document, path string) error {
	data, err := RenderPNG(doc)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(fsys, path, data, 0644)
}

// WriteHTML renders doc as an HTML page and writes it to path.
func WriteHTML(fsys fsutil.FileSystem, doc *raydata.Document, path string) error {
	data, err := RenderHTML(doc)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(fsys, path, data, 0644)
}

// extent returns the half-width of a square centred on the origin that holds
// every ray point and medium particle, with a small margin.
func extent(doc *raydata.Document) float64 {
	r := doc.MeanRadius
	for _, ray := range doc.Rays {
		for _, p := range ray {
			r = math.Max(r, math.Max(math.Abs(p.X()), math.Abs(p.Y())))
		}
	}
	for _, m := range doc.Medium {
		r = math.Max(r, math.Max(math.Abs(m.X), math.Abs(m.Y))+m.Radius)
	}
	if r == 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 1
	}
	return r * 1.05
}

// circle returns closed polyline points on the circle of radius r.
func circle(r float64) []raydata.Point {
	pts := make([]raydata.Point, circleSegments+1)
	for i := range pts {
		theta := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = raydata.Point{r * math.Cos(theta), r * math.Sin(theta)}
	}
	return pts
}
