package preview

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/raydata/internal/raydata"
)

var (
	rayColor        = color.RGBA{R: 0, G: 123, B: 255, A: 90}
	mediumColor     = color.RGBA{R: 0, G: 0, B: 200, A: 150}
	endpointColor   = color.RGBA{R: 220, G: 53, B: 69, A: 255}
	projectionColor = color.RGBA{R: 40, G: 167, B: 69, A: 255}
	circleColor     = color.RGBA{R: 255, G: 165, B: 0, A: 255}
)

// pngSize is the edge length of the square PNG.
const pngSize = 8 * vg.Inch

func toXYs(pts []raydata.Point) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, p := range pts {
		xys[i] = plotter.XY{X: p.X(), Y: p.Y()}
	}
	return xys
}

// RenderPNG draws rays, medium particles, endpoints, projections and the
// mean-radius circle.
func RenderPNG(doc *raydata.Document) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Rays: %d  Mean radius: %.4f", len(doc.Rays), doc.MeanRadius)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	pad := extent(doc)
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad
	p.Add(plotter.NewGrid())

	for i, ray := range doc.Rays {
		if len(ray) < 2 {
			continue
		}
		line, err := plotter.NewLine(toXYs(ray))
		if err != nil {
			return nil, fmt.Errorf("ray %d: %w", i, err)
		}
		line.Color = rayColor
		line.Width = vg.Points(0.5)
		p.Add(line)
	}

	if len(doc.Medium) > 0 {
		xys := make(plotter.XYs, len(doc.Medium))
		for i, m := range doc.Medium {
			xys[i] = plotter.XY{X: m.X, Y: m.Y}
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("medium: %w", err)
		}
		s.GlyphStyle = draw.GlyphStyle{Color: mediumColor, Radius: vg.Points(2), Shape: draw.CircleGlyph{}}
		p.Add(s)
		p.Legend.Add("medium", s)
	}

	if err := addScatter(p, "endpoints", doc.Endpoints, endpointColor); err != nil {
		return nil, err
	}
	if err := addScatter(p, "projections", doc.Projections, projectionColor); err != nil {
		return nil, err
	}

	if doc.MeanRadius > 0 {
		line, err := plotter.NewLine(toXYs(circle(doc.MeanRadius)))
		if err != nil {
			return nil, fmt.Errorf("mean circle: %w", err)
		}
		line.Color = circleColor
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(line)
		p.Legend.Add("mean radius", line)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	wt, err := p.WriterTo(pngSize, pngSize, "png")
	if err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	return buf.Bytes(), nil
}

func addScatter(p *plot.Plot, name string, pts []raydata.Point, c color.Color) error {
	if len(pts) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(toXYs(pts))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.GlyphStyle = draw.GlyphStyle{Color: c, Radius: vg.Points(1.5), Shape: draw.CircleGlyph{}}
	p.Add(s)
	p.Legend.Add(name, s)
	return nil
}
