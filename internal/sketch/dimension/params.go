package dimension

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"slices"

	"sketch-engine/internal/sketch/expr"
	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"
)

var (
	ErrDimensionNotFound = errors.New("dimension not found")
	ErrParameterExists   = errors.New("parameter already exists")
	ErrParameterNotFound = errors.New("parameter not found")
	ErrInvalidName       = errors.New("invalid parameter name")
	ErrAlreadyParameter  = errors.New("dimension is already a parameter")
	ErrNotParameter      = errors.New("dimension is not a parameter")
	ErrBlocked           = errors.New("dimension change blocked")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// ============================================================
// Promotion
// ============================================================

// Promote превращает размер в параметр name со значением value
// (значение в отображаемом виде). Возвращает измененную копию документа.
func Promote(doc *models.Document, dimID, name string, value float64) (*models.Document, error) {
	idx, ok := doc.Geometry.DimensionIndex(dimID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDimensionNotFound, dimID)
	}
	if doc.Geometry.Dimensions[idx].IsParameter {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyParameter, dimID)
	}
	if !identPattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, exists := doc.Params[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrParameterExists, name)
	}

	out := doc.Clone()
	out.Params[name] = models.Num(graph.Round(value))

	dim := &out.Geometry.Dimensions[idx]
	dim.IsParameter = true
	dim.Value = models.Expr("params." + name)
	if dim.Label == "" {
		dim.Label = name
	}
	return out, nil
}

// Demote возвращает размеру литеральное значение. Параметр удаляется,
// если на него больше никто не ссылается.
func Demote(doc *models.Document, dimID string) (*models.Document, error) {
	idx, ok := doc.Geometry.DimensionIndex(dimID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDimensionNotFound, dimID)
	}
	name, ok := doc.Geometry.Dimensions[idx].ParameterName()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotParameter, dimID)
	}

	params, _, err := expr.ResolveParameters(doc.Params)
	if err != nil {
		return nil, fmt.Errorf("demote %q: %w", dimID, err)
	}

	out := doc.Clone()
	dim := &out.Geometry.Dimensions[idx]
	dim.Value = models.Num(graph.Round(expr.Evaluate(dim.Value, params)))
	dim.IsParameter = false

	if !referenced(out, name) {
		delete(out.Params, name)
	} else {
		log.Printf("[SKETCH] parameter %q kept after demoting %q: still referenced", name, dimID)
	}
	return out, nil
}

// referenced проверяет, используется ли параметр где-либо в документе.
func referenced(doc *models.Document, name string) bool {
	uses := func(v models.Value) bool {
		return slices.Contains(expr.References(v), name)
	}

	for other, v := range doc.Params {
		if other != name && uses(v) {
			return true
		}
	}
	for _, v := range doc.Geometry.Vertices {
		if uses(v.X) || uses(v.Y) {
			return true
		}
	}
	for _, c := range doc.Geometry.Contours {
		for _, e := range c.Elements {
			if arc, ok := e.(models.Arc); ok && uses(arc.Radius) {
				return true
			}
		}
	}
	for _, d := range doc.Geometry.Dimensions {
		if d.IsParameter && uses(d.Value) {
			return true
		}
	}
	if ext := doc.Geometry.Extrusion; ext != nil && ext.Height != nil && uses(*ext.Height) {
		return true
	}
	return false
}

// ============================================================
// Parameter edits
// ============================================================

// EditParameter задает параметру литеральное значение и заново применяет
// все размеры, привязанные к нему. Если хоть один размер заблокирован,
// документ не меняется.
func EditParameter(doc *models.Document, name string, value float64) (*models.Document, models.Positions, error) {
	if _, ok := doc.Params[name]; !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrParameterNotFound, name)
	}

	out := doc.Clone()
	out.Params[name] = models.Num(value)

	resolved, err := graph.Resolve(out)
	if err != nil {
		return nil, nil, fmt.Errorf("edit parameter %q: %w", name, err)
	}

	positions := resolved.Positions.Clone()
	updates := models.Positions{}
	for _, d := range out.Geometry.Dimensions {
		bound, ok := d.ParameterName()
		if !ok || bound != name {
			continue
		}
		res := ApplyDimension(d, value, positions, out.Geometry.Constraints)
		if !res.Success {
			return nil, nil, fmt.Errorf("%w: %q: %s", ErrBlocked, d.ID, res.Reason)
		}
		for id, p := range res.Updates {
			positions[id] = p
			updates[id] = p
		}
	}

	return graph.Commit(out, resolved.Positions, updates), updates, nil
}
