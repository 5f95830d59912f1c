package preview

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/raydata/internal/raydata"
)

func scatterData(pts []raydata.Point) []opts.ScatterData {
	data := make([]opts.ScatterData, len(pts))
	for i, p := range pts {
		data[i] = opts.ScatterData{Value: []interface{}{p.X(), p.Y()}}
	}
	return data
}

// RenderHTML renders a standalone page with medium, endpoint, projection and
// mean-circle series. Rays are left out to keep the page light.
func RenderHTML(doc *raydata.Document) ([]byte, error) {
	pad := extent(doc)

	// 900px square canvas with both axes spanning [-pad, pad] so the mean
	// circle renders round.
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Ray endpoints", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Ray endpoints",
			Subtitle: fmt.Sprintf("rays=%d mean_radius=%.4f particles=%d", doc.Stats.NumRays, doc.MeanRadius, doc.Stats.NumMediumParticles),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "x", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "y", NameLocation: "middle", NameGap: 30}),
	)

	if len(doc.Medium) > 0 {
		medium := make([]opts.ScatterData, len(doc.Medium))
		for i, m := range doc.Medium {
			medium[i] = opts.ScatterData{Value: []interface{}{m.X, m.Y, m.N, m.Radius}}
		}
		scatter.AddSeries("medium", medium, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}
	scatter.AddSeries("endpoints", scatterData(doc.Endpoints), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("projections", scatterData(doc.Projections), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	if doc.MeanRadius > 0 {
		scatter.AddSeries("mean radius", scatterData(circle(doc.MeanRadius)), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 1}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
