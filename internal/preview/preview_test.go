package preview

import (
	"bytes"
	"fmt"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/raydata/internal/fsutil"
	"github.com/banshee-data/raydata/internal/raydata"
)

func sampleDocument() *raydata.Document {
	params := raydata.NewParameterSet()
	params.Set("N", raydata.NumberValue(2))
	return &raydata.Document{
		Parameters:  params,
		Medium:      []raydata.MediumParticle{{X: 1, Y: 1, N: 1.3, Radius: 0.5}, {X: -2, Y: 0, N: 1.1, Radius: 0.25}},
		Rays:        []raydata.Ray{{{0, 0}, {3, 4}}, {{0, 0}, {0, 2}}, {{7, 7}}},
		Endpoints:   []raydata.Point{{3, 4}, {0, 2}, {7, 7}},
		Projections: []raydata.Point{{3, 4}, {0, 5}, {3.5, 3.5}},
		MeanRadius:  5,
		Stats:       raydata.DocumentStats{NumRays: 3, NumMediumParticles: 2},
	}
}

func TestRenderPNG(t *testing.T) {
	data, err := RenderPNG(sampleDocument())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	b := img.Bounds()
	assert.Equal(t, b.Dx(), b.Dy(), "preview should be square")
}

func TestRenderPNG_EmptyDocument(t *testing.T) {
	data, err := RenderPNG(&raydata.Document{})
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestRenderHTML(t *testing.T) {
	data, err := RenderHTML(sampleDocument())
	require.NoError(t, err)

	html := string(data)
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Ray endpoints")
	assert.Contains(t, html, "projections")
	assert.Contains(t, html, "mean radius")
	assert.Contains(t, html, "900px")
}

func TestRenderHTML_SymmetricAxes(t *testing.T) {
	doc := sampleDocument()
	pad := extent(doc)

	data, err := RenderHTML(doc)
	require.NoError(t, err)

	html := string(data)
	assert.Contains(t, html, fmt.Sprintf(`"min":%v`, -pad))
	assert.Contains(t, html, fmt.Sprintf(`"max":%v`, pad))
}

func TestWritePreviews(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	doc := sampleDocument()

	require.NoError(t, WritePNG(mfs, doc, "/out/preview.png"))
	require.NoError(t, WriteHTML(mfs, doc, "/out/preview.html"))

	assert.True(t, mfs.Exists("/out/preview.png"))
	assert.True(t, mfs.Exists("/out/preview.html"))
	names, err := mfs.ReadDirNames("/out")
	require.NoError(t, err)
	assert.Equal(t, []string{"preview.html", "preview.png"}, names)
}

func TestExtent(t *testing.T) {
	assert.Equal(t, 1.0, extent(&raydata.Document{}))
	assert.InDelta(t, 7*1.05, extent(sampleDocument()), 1e-12)
}

func TestCircle(t *testing.T) {
	pts := circle(2)
	require.Len(t, pts, circleSegments+1)
	for _, p := range pts {
		assert.InDelta(t, 2.0, math.Hypot(p.X(), p.Y()), 1e-12)
	}
	assert.InDelta(t, pts[0].X(), pts[len(pts)-1].X(), 1e-12)
}
