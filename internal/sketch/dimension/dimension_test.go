package dimension

import (
	"testing"

	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rightAngle() (models.Dimension, models.Positions) {
	d := models.Dimension{
		ID:   "a1",
		Type: models.DimensionAngular,
		Elements: models.DimensionElements{Lines: []models.LineRef{
			{From: "p", To: "a"},
			{From: "b", To: "p"},
		}},
	}
	vertices := models.Positions{
		"p": {X: 0, Y: 0},
		"a": {X: 10, Y: 0},
		"b": {X: 0, Y: 10},
	}
	return d, vertices
}

func linear(a, b string) models.Dimension {
	return models.Dimension{
		ID:       "d1",
		Type:     models.DimensionLinear,
		Elements: models.DimensionElements{Nodes: []string{a, b}},
	}
}

func fixed(nodes ...string) models.Constraint {
	return models.Constraint{ID: "f", Type: models.ConstraintFixed, Nodes: nodes, Enabled: true}
}

func TestCalculate_Linear(t *testing.T) {
	v, err := CalculateDimensionValue(linear("a", "b"), models.Positions{
		"a": {X: 0, Y: 0},
		"b": {X: 3, Y: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestCalculate_AngularInverted(t *testing.T) {
	d, vertices := rightAngle()

	v, err := CalculateDimensionValue(d, vertices)
	require.NoError(t, err)
	assert.Equal(t, 90.0, v)
	assert.Equal(t, 90.0, DisplayValue(d, v))

	d.Inverted = true
	v, err = CalculateDimensionValue(d, vertices)
	require.NoError(t, err)
	assert.Equal(t, 90.0, v, "stored value stays interior")
	assert.Equal(t, 270.0, DisplayValue(d, v))
}

func TestCalculate_Errors(t *testing.T) {
	d, vertices := rightAngle()

	noShared := d
	noShared.Elements.Lines = []models.LineRef{{From: "p", To: "a"}, {From: "b", To: "c"}}
	_, err := CalculateDimensionValue(noShared, vertices)
	assert.ErrorIs(t, err, ErrNoSharedVertex)

	collapsed := vertices.Clone()
	collapsed["a"] = collapsed["p"]
	_, err = CalculateDimensionValue(d, collapsed)
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = CalculateDimensionValue(linear("a", "ghost"), vertices)
	assert.ErrorIs(t, err, ErrMissingVertex)

	_, err = CalculateDimensionValue(models.Dimension{ID: "x", Type: models.DimensionLinear}, vertices)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestApply_LinearMovesSecondEndpoint(t *testing.T) {
	d := linear("a", "b")
	vertices := models.Positions{"a": {X: 0, Y: 0}, "b": {X: 10, Y: 0}}

	res := ApplyDimension(d, 25, vertices, []models.Constraint{fixed("a")})
	require.True(t, res.Success, res.Reason)
	assert.Equal(t, models.Positions{"b": {X: 25, Y: 0}}, res.Updates)

	after := vertices.Clone()
	for id, p := range res.Updates {
		after[id] = p
	}
	v, err := CalculateDimensionValue(d, after)
	require.NoError(t, err)
	assert.InDelta(t, 25, v, graph.Precision)
}

func TestApply_LinearPrefersFreeEndpoint(t *testing.T) {
	d := linear("a", "b")
	vertices := models.Positions{"a": {X: 0, Y: 0}, "b": {X: 10, Y: 0}}

	res := ApplyDimension(d, 25, vertices, []models.Constraint{fixed("b")})
	require.True(t, res.Success, res.Reason)
	assert.Equal(t, models.Positions{"a": {X: -15, Y: 0}}, res.Updates)

	res = ApplyDimension(d, 25, vertices, []models.Constraint{fixed("a", "b")})
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "fixed")
	assert.Empty(t, res.Updates)
}

func TestApply_LinearFailures(t *testing.T) {
	d := linear("a", "b")
	vertices := models.Positions{"a": {X: 0, Y: 0}, "b": {X: 10, Y: 0}}

	assert.False(t, ApplyDimension(d, 0, vertices, nil).Success)

	coincident := models.Positions{"a": {X: 1, Y: 1}, "b": {X: 1, Y: 1}}
	assert.False(t, ApplyDimension(d, 5, coincident, nil).Success)

	// горизонтальная группа тянет второй конец следом: длина не меняется
	horizontal := models.Constraint{ID: "h", Type: models.ConstraintHorizontal, Nodes: []string{"a", "b"}, Enabled: true}
	res := ApplyDimension(d, 25, vertices, []models.Constraint{horizontal})
	assert.False(t, res.Success)
	assert.Empty(t, res.Updates)
}

func TestApply_AngularRoundTrip(t *testing.T) {
	d, vertices := rightAngle()

	res := ApplyDimension(d, 45, vertices, nil)
	require.True(t, res.Success, res.Reason)
	require.Contains(t, res.Updates, "b")
	assert.NotContains(t, res.Updates, "p")

	after := vertices.Clone()
	for id, p := range res.Updates {
		after[id] = p
	}
	v, err := CalculateDimensionValue(d, after)
	require.NoError(t, err)
	assert.InDelta(t, 45, v, graph.Precision)
	assert.Equal(t, vertices["a"], after["a"])
}

func TestApply_AngularSweep(t *testing.T) {
	d, _ := rightAngle()

	for _, length := range []float64{10, 25} {
		pivot := models.Point{X: 3.2, Y: -1.4}
		vertices := models.Positions{
			"p": pivot,
			"a": {X: pivot.X + length, Y: pivot.Y},
			"b": {X: pivot.X, Y: pivot.Y + length},
		}

		for target := 5.0; target <= 179; target++ {
			res := ApplyDimension(d, target, vertices, nil)
			require.True(t, res.Success, "length %v target %v: %s", length, target, res.Reason)

			after := vertices.Clone()
			for id, p := range res.Updates {
				after[id] = p
			}
			v, err := CalculateDimensionValue(d, after)
			require.NoError(t, err)
			assert.InDelta(t, target, v, tolerance, "length %v", length)
			assert.Equal(t, vertices["a"], after["a"])
		}
	}
}

func TestApply_AngularRotatesFirstLineWhenSecondIsFixed(t *testing.T) {
	d, vertices := rightAngle()

	res := ApplyDimension(d, 45, vertices, []models.Constraint{fixed("b")})
	require.True(t, res.Success, res.Reason)
	require.Contains(t, res.Updates, "a")

	after := vertices.Clone()
	after["a"] = res.Updates["a"]
	v, err := CalculateDimensionValue(d, after)
	require.NoError(t, err)
	assert.InDelta(t, 45, v, graph.Precision)

	res = ApplyDimension(d, 45, vertices, []models.Constraint{fixed("a", "b")})
	assert.False(t, res.Success)
}

func TestApply_AngularInverted(t *testing.T) {
	d, vertices := rightAngle()
	d.Inverted = true

	res := ApplyDimension(d, 300, vertices, nil)
	require.True(t, res.Success, res.Reason)

	after := vertices.Clone()
	after["b"] = res.Updates["b"]
	v, err := CalculateDimensionValue(d, after)
	require.NoError(t, err)
	assert.InDelta(t, 300, DisplayValue(d, v), tolerance)

	assert.False(t, ApplyDimension(d, 100, vertices, nil).Success, "interior angle would exceed 180")
}

const promoteJSON = `{
  "params": {},
  "geometry": {
    "vertices": {
      "v1": { "x": 0, "y": 0 },
      "v2": { "x": 40, "y": 0 },
      "v3": { "x": 40, "y": 20 },
      "v4": { "x": 0, "y": 20 }
    },
    "contours": [
      { "id": "outer", "type": "outer", "closed": true, "elements": [
        { "type": "line", "from": "v1", "to": "v2" },
        { "type": "line", "from": "v2", "to": "v3" },
        { "type": "line", "from": "v3", "to": "v4" },
        { "type": "line", "from": "v4", "to": "v1" }
      ] }
    ],
    "constraints": [
      { "id": "c1", "type": "fixed", "nodes": ["v1"] }
    ],
    "dimensions": [
      { "id": "d1", "type": "linear", "value": 40, "elements": { "nodes": ["v1", "v2"] } },
      { "id": "d2", "type": "linear", "value": 20, "elements": { "nodes": ["v2", "v3"] } }
    ],
    "extrusion": { "height": 5 }
  }
}`

func sketch(t *testing.T) *models.Document {
	t.Helper()
	doc, err := models.ParseDocument([]byte(promoteJSON))
	require.NoError(t, err)
	return doc
}

func TestPromoteDemote(t *testing.T) {
	doc := sketch(t)

	promoted, err := Promote(doc, "d1", "width", 40)
	require.NoError(t, err)
	assert.Equal(t, models.Num(40), promoted.Params["width"])

	dim := promoted.Geometry.Dimensions[0]
	assert.True(t, dim.IsParameter)
	assert.Equal(t, models.Expr("params.width"), dim.Value)
	assert.Equal(t, "width", dim.Label)

	// исходник не тронут
	assert.False(t, doc.Geometry.Dimensions[0].IsParameter)
	assert.Empty(t, doc.Params)

	demoted, err := Demote(promoted, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.Num(40), demoted.Geometry.Dimensions[0].Value)
	assert.False(t, demoted.Geometry.Dimensions[0].IsParameter)
	assert.NotContains(t, demoted.Params, "width")
}

func TestDemote_KeepsReferencedParameter(t *testing.T) {
	doc := sketch(t)
	promoted, err := Promote(doc, "d1", "width", 40)
	require.NoError(t, err)
	promoted.Geometry.Vertices["v2"] = models.VertexDef{X: models.Expr("params.width"), Y: models.Num(0)}

	demoted, err := Demote(promoted, "d1")
	require.NoError(t, err)
	assert.Contains(t, demoted.Params, "width")
	assert.Equal(t, models.Num(40), demoted.Geometry.Dimensions[0].Value)
}

func TestPromote_Errors(t *testing.T) {
	doc := sketch(t)

	_, err := Promote(doc, "missing", "w", 1)
	assert.ErrorIs(t, err, ErrDimensionNotFound)

	_, err = Promote(doc, "d1", "1width", 1)
	assert.ErrorIs(t, err, ErrInvalidName)

	promoted, err := Promote(doc, "d1", "width", 40)
	require.NoError(t, err)

	_, err = Promote(promoted, "d1", "other", 40)
	assert.ErrorIs(t, err, ErrAlreadyParameter)

	_, err = Promote(promoted, "d2", "width", 20)
	assert.ErrorIs(t, err, ErrParameterExists)

	_, err = Demote(doc, "d2")
	assert.ErrorIs(t, err, ErrNotParameter)
}

func TestEditParameter(t *testing.T) {
	doc := sketch(t)
	promoted, err := Promote(doc, "d1", "width", 40)
	require.NoError(t, err)

	edited, updates, err := EditParameter(promoted, "width", 50)
	require.NoError(t, err)
	assert.Equal(t, models.Point{X: 50, Y: 0}, updates["v2"])
	assert.Equal(t, models.Num(50), edited.Params["width"])
	assert.Equal(t, models.Num(50), edited.Geometry.Vertices["v2"].X)

	res, err := graph.Resolve(edited)
	require.NoError(t, err)
	v, err := CalculateDimensionValue(edited.Geometry.Dimensions[0], res.Positions)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)
}

func TestEditParameter_BlockedLeavesDocument(t *testing.T) {
	doc := sketch(t)
	doc.Geometry.Constraints = append(doc.Geometry.Constraints, fixed("v2"))
	promoted, err := Promote(doc, "d1", "width", 40)
	require.NoError(t, err)

	_, _, err = EditParameter(promoted, "width", 50)
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, models.Num(40), promoted.Params["width"])

	_, _, err = EditParameter(promoted, "ghost", 1)
	assert.ErrorIs(t, err, ErrParameterNotFound)
}
