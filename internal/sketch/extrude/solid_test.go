package extrude

import (
	"math"
	"strings"
	"testing"

	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plateJSON = `{
  "params": { "w": 40, "h": 20, "t": 5 },
  "geometry": {
    "vertices": {
      "v1": { "x": 0, "y": 0 },
      "v2": { "x": "params.w", "y": 0 },
      "v3": { "x": "params.w", "y": "params.h" },
      "v4": { "x": 0, "y": "params.h" }
    },
    "contours": [
      { "id": "outer", "type": "outer", "closed": true, "elements": [
        { "type": "line", "from": "v1", "to": "v2" },
        { "type": "line", "from": "v2", "to": "v3" },
        { "type": "line", "from": "v3", "to": "v4" },
        { "type": "line", "from": "v4", "to": "v1" }
      ] }
    ],
    "extrusion": { "height": "params.t" }
  }
}`

func build(t *testing.T, doc *models.Document) *Solid {
	t.Helper()
	res, err := graph.Resolve(doc)
	require.NoError(t, err)
	solid, err := BuildSolid(doc, res.Params)
	require.NoError(t, err)
	return solid
}

func plate(t *testing.T) *models.Document {
	t.Helper()
	doc, err := models.ParseDocument([]byte(plateJSON))
	require.NoError(t, err)
	return doc
}

func TestBuildSolid_Rectangle(t *testing.T) {
	solid := build(t, plate(t))

	assert.Empty(t, solid.Warnings)
	assert.Equal(t, Bounds{Min: models.Point{X: 0, Y: 0}, Max: models.Point{X: 40, Y: 20}}, solid.Footprint)
	assert.Equal(t, 5.0, solid.Height)
	assert.Len(t, solid.Vertices, 8)
	assert.Len(t, solid.Triangles, 12)
	assert.InDelta(t, 40*20*5, solid.Volume(), 1e-6)
}

func TestBuildSolid_FollowsParameters(t *testing.T) {
	doc := plate(t)
	doc.Params["w"] = models.Num(60)

	solid := build(t, doc)
	assert.Equal(t, 60.0, solid.Footprint.Max.X)
	assert.InDelta(t, 60*20*5, solid.Volume(), 1e-6)
}

func TestBuildSolid_HolesReduceVolume(t *testing.T) {
	doc := plate(t)
	doc.Geometry.Vertices["h1"] = models.VertexDef{X: models.Num(5), Y: models.Num(5)}
	doc.Geometry.Vertices["h2"] = models.VertexDef{X: models.Num(10), Y: models.Num(5)}
	doc.Geometry.Vertices["h3"] = models.VertexDef{X: models.Num(10), Y: models.Num(10)}
	doc.Geometry.Vertices["h4"] = models.VertexDef{X: models.Num(5), Y: models.Num(10)}
	doc.Geometry.Contours = append(doc.Geometry.Contours, models.Contour{
		ID: "slot", Type: models.ContourHole, Closed: true,
		Elements: []models.Element{
			models.Line{From: "h1", To: "h2"},
			models.Line{From: "h2", To: "h3"},
			models.Line{From: "h3", To: "h4"},
			models.Line{From: "h4", To: "h1"},
		},
	})
	doc.Geometry.Vertices["c"] = models.VertexDef{X: models.Num(30), Y: models.Num(10)}
	doc.Geometry.Vertices["r"] = models.VertexDef{X: models.Num(35), Y: models.Num(10)}
	doc.Geometry.Circles = append(doc.Geometry.Circles, models.Circle{ID: "bore", Center: "c", RadiusPoint: "r"})

	solid := build(t, doc)
	require.Len(t, solid.Holes, 2)
	assert.Empty(t, solid.Warnings)

	n := float64(models.DefaultCurveSegments * 4)
	circle := n / 2 * 25 * math.Sin(2*math.Pi/n)
	expected := (800 - 25 - circle) * 5
	assert.InDelta(t, expected, solid.Volume(), 1e-6)
	assert.Equal(t, Bounds{Min: models.Point{X: 0, Y: 0}, Max: models.Point{X: 40, Y: 20}}, solid.Footprint)
}

func semicircle(t *testing.T, clockwise bool) *models.Document {
	t.Helper()
	return &models.Document{
		Params: map[string]models.Value{},
		Geometry: models.Geometry{
			Vertices: map[string]models.VertexDef{
				"a": {X: models.Num(0), Y: models.Num(0)},
				"b": {X: models.Num(20), Y: models.Num(0)},
			},
			Contours: []models.Contour{{
				ID: "outer", Type: models.ContourOuter, Closed: true,
				Elements: []models.Element{
					models.Line{From: "a", To: "b"},
					models.Arc{From: "b", To: "a", Radius: models.Num(10), Clockwise: clockwise},
				},
			}},
			Extrusion: &models.Extrusion{Height: ptr(models.Num(2))},
		},
	}
}

func ptr[T any](v T) *T { return &v }

func TestBuildSolid_ArcSide(t *testing.T) {
	segs := float64(models.DefaultCurveSegments)
	area := segs / 2 * 100 * math.Sin(math.Pi/segs)

	ccw := build(t, semicircle(t, false))
	assert.InDelta(t, 10, ccw.Footprint.Max.Y, 1e-9)
	assert.InDelta(t, 0, ccw.Footprint.Min.Y, 1e-9)
	assert.InDelta(t, area*2, ccw.Volume(), 1e-6)

	cw := build(t, semicircle(t, true))
	assert.InDelta(t, -10, cw.Footprint.Min.Y, 1e-9)
	assert.InDelta(t, 0, cw.Footprint.Max.Y, 1e-9)
	assert.InDelta(t, area*2, cw.Volume(), 1e-6)
}

func TestBuildSolid_ShortRadiusFallsBackToLine(t *testing.T) {
	doc := semicircle(t, false)
	doc.Geometry.Vertices["c"] = models.VertexDef{X: models.Num(10), Y: models.Num(10)}
	doc.Geometry.Contours[0].Elements = []models.Element{
		models.Line{From: "a", To: "b"},
		models.Arc{From: "b", To: "c", Radius: models.Num(1)},
		models.Line{From: "c", To: "a"},
	}

	solid := build(t, doc)
	require.Len(t, solid.Warnings, 1)
	assert.Contains(t, solid.Warnings[0], "radius")
	assert.Len(t, solid.Outline, 3)
	assert.InDelta(t, 100*2, solid.Volume(), 1e-6)
}

func TestBuildSolid_MissingControlVertex(t *testing.T) {
	doc := semicircle(t, false)
	doc.Geometry.Vertices["c"] = models.VertexDef{X: models.Num(10), Y: models.Num(10)}
	doc.Geometry.Contours[0].Elements = []models.Element{
		models.Line{From: "a", To: "b"},
		models.QuadraticBezier{From: "b", To: "c", Control: "ghost"},
		models.Line{From: "c", To: "a"},
	}

	solid := build(t, doc)
	require.NotEmpty(t, solid.Warnings)
	assert.True(t, strings.Contains(solid.Warnings[0], "ghost"))
	assert.Len(t, solid.Outline, 3)
}

func TestBuildSolid_Bezier(t *testing.T) {
	doc := semicircle(t, false)
	doc.Geometry.Vertices["k"] = models.VertexDef{X: models.Num(10), Y: models.Num(20)}
	doc.Geometry.Contours[0].Elements = []models.Element{
		models.Line{From: "a", To: "b"},
		models.QuadraticBezier{From: "b", To: "a", Control: "k"},
	}

	solid := build(t, doc)
	assert.Empty(t, solid.Warnings)
	assert.Len(t, solid.Outline, models.DefaultCurveSegments+1)
	// вершина параболы на половине высоты контрольной точки
	assert.InDelta(t, 10, solid.Footprint.Max.Y, 1e-9)
}

func TestBuildSolid_Bevel(t *testing.T) {
	doc := plate(t)
	doc.Geometry.Extrusion.Bevel = true

	plain := build(t, plate(t))
	bevelled := build(t, doc)

	layers := 2 * (models.DefaultBevelSegments + 1)
	assert.Len(t, bevelled.Vertices, 4*layers)
	assert.Equal(t, plain.Footprint, bevelled.Footprint)
	assert.Less(t, bevelled.Volume(), plain.Volume())
	assert.Greater(t, bevelled.Volume(), plain.Volume()*0.95)

	var minZ, maxZ float64
	for _, v := range bevelled.Vertices {
		minZ = math.Min(minZ, v.Z)
		maxZ = math.Max(maxZ, v.Z)
	}
	assert.Equal(t, 0.0, minZ)
	assert.InDelta(t, 5, maxZ, 1e-9)
}

func TestBuildSolid_NoOuterContour(t *testing.T) {
	doc := plate(t)
	doc.Geometry.Contours[0].Type = models.ContourHole

	_, err := BuildSolid(doc, map[string]float64{"w": 40, "h": 20, "t": 5})
	assert.ErrorIs(t, err, ErrNoOuterContour)
}

func TestTriangulate_Concave(t *testing.T) {
	// L-образный контур
	pts := []models.Point{
		{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 10},
		{X: 10, Y: 10}, {X: 10, Y: 20}, {X: 0, Y: 20},
	}
	tris, forced := triangulate(pts, []int{0, 1, 2, 3, 4, 5}, nil)
	assert.Zero(t, forced)
	require.Len(t, tris, 4)

	var area float64
	for _, tr := range tris {
		c := cross(pts[tr[0]], pts[tr[1]], pts[tr[2]])
		assert.Positive(t, c)
		area += c / 2
	}
	assert.InDelta(t, 300, area, 1e-9)
}
