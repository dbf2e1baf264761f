package graph

import (
	"fmt"
	"sort"

	"sketch-engine/internal/sketch/expr"
	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Resolution
// ============================================================

// Resolved содержит вычисленные параметры и координаты эскиза.
type Resolved struct {
	Params      map[string]float64
	Positions   models.Positions
	Diagnostics []expr.Diagnostic
}

// Resolve вычисляет параметры и все вершины. Ошибка только при цикле параметров.
func Resolve(doc *models.Document) (*Resolved, error) {
	params, diags, err := expr.ResolveParameters(doc.Params)
	if err != nil {
		return nil, fmt.Errorf("resolve parameters: %w", err)
	}

	positions, posDiags := ResolvePositions(&doc.Geometry, params)
	return &Resolved{
		Params:      params,
		Positions:   positions,
		Diagnostics: append(diags, posDiags...),
	}, nil
}

// ResolvePositions вычисляет координаты каждой вершины.
func ResolvePositions(g *models.Geometry, params map[string]float64) (models.Positions, []expr.Diagnostic) {
	ev := expr.NewEvaluator()
	positions := make(models.Positions, len(g.Vertices))

	ids := make([]string, 0, len(g.Vertices))
	for id := range g.Vertices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		v := g.Vertices[id]
		positions[id] = models.Point{
			X: ev.Evaluate(v.X, params),
			Y: ev.Evaluate(v.Y, params),
		}
	}
	return positions, ev.Diagnostics()
}
