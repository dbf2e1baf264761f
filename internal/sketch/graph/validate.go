package graph

import (
	"fmt"
	"sort"
	"strings"

	"sketch-engine/internal/sketch/expr"
	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Validation
// ============================================================

// Report хранит результат проверки. Errors блокируют экструзию, Warnings нет.
type Report struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r Report) OK() bool {
	return len(r.Errors) == 0
}

type validator struct {
	doc    *models.Document
	report Report
}

func (v *validator) errorf(format string, args ...any) {
	v.report.Errors = append(v.report.Errors, fmt.Sprintf(format, args...))
}

func (v *validator) warnf(format string, args ...any) {
	v.report.Warnings = append(v.report.Warnings, fmt.Sprintf(format, args...))
}

func (v *validator) hasVertex(id string) bool {
	_, ok := v.doc.Geometry.Vertices[id]
	return ok
}

// ValidateGeometry возвращает только ошибки.
func ValidateGeometry(doc *models.Document) []string {
	return Validate(doc).Errors
}

// Validate выполняет все проверки независимо друг от друга и ничего не меняет в документе.
func Validate(doc *models.Document) Report {
	v := &validator{doc: doc, report: Report{Errors: []string{}, Warnings: []string{}}}
	g := &doc.Geometry

	if len(g.Vertices) == 0 {
		v.errorf("sketch has no vertices")
	}
	if len(g.Contours) == 0 {
		v.errorf("sketch has no contours")
	}
	if outer := len(g.OuterContours()); outer != 1 {
		v.errorf("expected exactly one outer contour, found %d", outer)
	}

	for _, c := range g.Contours {
		v.checkContour(c)
	}

	if g.Extrusion == nil {
		v.errorf("extrusion settings are missing")
	} else if g.Extrusion.Height == nil {
		v.errorf("extrusion height is missing")
	}

	v.checkCircles()
	v.checkConstraints()
	v.checkDimensions()
	v.checkParameters()
	v.checkUnusedVertices()

	return v.report
}

func (v *validator) checkContour(c models.Contour) {
	switch c.Type {
	case models.ContourOuter, models.ContourHole:
	default:
		v.errorf("contour %q has unknown type %q", c.ID, c.Type)
	}

	if len(c.Elements) == 0 {
		v.errorf("contour %q has no elements", c.ID)
		return
	}

	for i, e := range c.Elements {
		for _, id := range e.References() {
			if !v.hasVertex(id) {
				v.errorf("contour %q element %d (%s) references missing vertex %q", c.ID, i, e.Kind(), id)
			}
		}
		if i > 0 {
			_, prevTo := c.Elements[i-1].Endpoints()
			from, _ := e.Endpoints()
			if prevTo != from {
				v.warnf("contour %q element %d starts at %q but previous element ends at %q", c.ID, i, from, prevTo)
			}
		}
	}

	first, _ := c.Elements[0].Endpoints()
	_, last := c.Elements[len(c.Elements)-1].Endpoints()
	if c.Closed {
		if last != first {
			v.errorf("contour %q is marked closed but ends at %q instead of %q", c.ID, last, first)
		}
	} else {
		v.warnf("contour %q is open", c.ID)
	}
}

func (v *validator) checkCircles() {
	for _, c := range v.doc.Geometry.Circles {
		for _, id := range []string{c.Center, c.RadiusPoint} {
			if !v.hasVertex(id) {
				v.errorf("circle %q references missing vertex %q", c.ID, id)
			}
		}
	}
}

func (v *validator) checkConstraints() {
	for _, c := range v.doc.Geometry.Constraints {
		for _, id := range c.Nodes {
			if !v.hasVertex(id) {
				v.errorf("constraint %q references missing vertex %q", c.ID, id)
			}
		}

		switch c.Type {
		case models.ConstraintFixed:
			if len(c.Nodes) != 1 {
				v.errorf("fixed constraint %q needs exactly 1 vertex, has %d", c.ID, len(c.Nodes))
			}
		case models.ConstraintHorizontal, models.ConstraintVertical:
			if len(c.Nodes) < 2 {
				v.errorf("%s constraint %q needs at least 2 vertices, has %d", c.Type, c.ID, len(c.Nodes))
			}
		case models.ConstraintDistance:
			if len(c.Nodes) != 2 {
				v.errorf("distance constraint %q needs exactly 2 vertices, has %d", c.ID, len(c.Nodes))
			}
			if c.Value == nil || *c.Value <= 0 {
				v.errorf("distance constraint %q needs a positive value", c.ID)
			}
		default:
			v.errorf("constraint %q has unknown type %q", c.ID, c.Type)
		}

		if !c.Enabled {
			v.warnf("constraint %q is disabled", c.ID)
		}
	}
}

func (v *validator) checkDimensions() {
	for _, d := range v.doc.Geometry.Dimensions {
		switch d.Type {
		case models.DimensionLinear:
			if len(d.Elements.Nodes) != 2 {
				v.errorf("linear dimension %q needs exactly 2 vertices, has %d", d.ID, len(d.Elements.Nodes))
			}
			for _, id := range d.Elements.Nodes {
				if !v.hasVertex(id) {
					v.errorf("dimension %q references missing vertex %q", d.ID, id)
				}
			}
		case models.DimensionAngular:
			if len(d.Elements.Lines) != 2 {
				v.errorf("angular dimension %q needs exactly 2 lines, has %d", d.ID, len(d.Elements.Lines))
				break
			}
			for _, l := range d.Elements.Lines {
				for _, id := range []string{l.From, l.To} {
					if !v.hasVertex(id) {
						v.errorf("dimension %q references missing vertex %q", d.ID, id)
					}
				}
			}
			if _, ok := SharedVertex(d.Elements.Lines[0], d.Elements.Lines[1]); !ok {
				v.errorf("angular dimension %q lines do not share a vertex", d.ID)
			}
		default:
			v.errorf("dimension %q has unknown type %q", d.ID, d.Type)
		}

		if name, ok := d.ParameterName(); ok {
			if _, exists := v.doc.Params[name]; !exists {
				v.errorf("dimension %q is bound to missing parameter %q", d.ID, name)
			}
		}
	}
}

func (v *validator) checkParameters() {
	doc := v.doc
	if res := expr.DetectCircularDependencies(doc.Params); res.Circular {
		v.errorf("circular parameter dependency: %s", strings.Join(res.Cycle, " -> "))
	}

	check := func(owner string, val models.Value) {
		for _, ref := range expr.References(val) {
			if _, ok := doc.Params[ref]; !ok {
				v.errorf("%s references unknown parameter %q", owner, ref)
			}
		}
	}

	for _, name := range sortedKeys(doc.Params) {
		check(fmt.Sprintf("parameter %q", name), doc.Params[name])
	}
	for _, id := range sortedKeys(doc.Geometry.Vertices) {
		vert := doc.Geometry.Vertices[id]
		check(fmt.Sprintf("vertex %q x", id), vert.X)
		check(fmt.Sprintf("vertex %q y", id), vert.Y)
	}
	for _, c := range doc.Geometry.Contours {
		for i, e := range c.Elements {
			if arc, ok := e.(models.Arc); ok {
				check(fmt.Sprintf("contour %q element %d radius", c.ID, i), arc.Radius)
			}
		}
	}
	if ext := doc.Geometry.Extrusion; ext != nil && ext.Height != nil {
		check("extrusion height", *ext.Height)
	}
}

func (v *validator) checkUnusedVertices() {
	used := make(map[string]bool)
	for _, c := range v.doc.Geometry.Contours {
		for _, e := range c.Elements {
			for _, id := range e.References() {
				used[id] = true
			}
		}
	}
	for _, c := range v.doc.Geometry.Circles {
		used[c.Center] = true
		used[c.RadiusPoint] = true
	}

	for _, id := range sortedKeys(v.doc.Geometry.Vertices) {
		if !used[id] {
			v.warnf("vertex %q is not used by any contour or circle", id)
		}
	}
}

// SharedVertex возвращает вершину, общую для двух линий.
func SharedVertex(a, b models.LineRef) (string, bool) {
	for _, x := range []string{a.From, a.To} {
		if x == b.From || x == b.To {
			return x, true
		}
	}
	return "", false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
