package models

import (
	"encoding/json"
	"fmt"
)

// ============================================================
// Path elements
// ============================================================

type ElementKind string

const (
	ElementLine            ElementKind = "line"
	ElementArc             ElementKind = "arc"
	ElementBezierQuadratic ElementKind = "bezier_quadratic"
	ElementBezierCubic     ElementKind = "bezier_cubic"
)

// Element: закрытый набор сегментов контура. Реализации: Line, Arc,
// QuadraticBezier, CubicBezier.
type Element interface {
	Kind() ElementKind
	Endpoints() (from, to string)
	// References возвращает все вершины элемента, включая контрольные.
	References() []string
	element()
}

type Line struct {
	From string
	To   string
}

type Arc struct {
	From      string
	To        string
	Radius    Value
	Clockwise bool
}

type QuadraticBezier struct {
	From    string
	To      string
	Control string
}

type CubicBezier struct {
	From     string
	To       string
	Control1 string
	Control2 string
}

func (Line) Kind() ElementKind            { return ElementLine }
func (Arc) Kind() ElementKind             { return ElementArc }
func (QuadraticBezier) Kind() ElementKind { return ElementBezierQuadratic }
func (CubicBezier) Kind() ElementKind     { return ElementBezierCubic }

func (e Line) Endpoints() (string, string)            { return e.From, e.To }
func (e Arc) Endpoints() (string, string)             { return e.From, e.To }
func (e QuadraticBezier) Endpoints() (string, string) { return e.From, e.To }
func (e CubicBezier) Endpoints() (string, string)     { return e.From, e.To }

func (e Line) References() []string { return []string{e.From, e.To} }
func (e Arc) References() []string  { return []string{e.From, e.To} }
func (e QuadraticBezier) References() []string {
	return []string{e.From, e.To, e.Control}
}
func (e CubicBezier) References() []string {
	return []string{e.From, e.To, e.Control1, e.Control2}
}

func (Line) element()            {}
func (Arc) element()             {}
func (QuadraticBezier) element() {}
func (CubicBezier) element()     {}

// ============================================================
// JSON
// ============================================================

type rawElement struct {
	Type      ElementKind `json:"type"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Radius    *Value      `json:"radius,omitempty"`
	Clockwise bool        `json:"clockwise,omitempty"`
	Control   string      `json:"control,omitempty"`
	Control1  string      `json:"control1,omitempty"`
	Control2  string      `json:"control2,omitempty"`
}

func decodeElement(data []byte) (Element, error) {
	var raw rawElement
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch raw.Type {
	case ElementLine:
		return Line{From: raw.From, To: raw.To}, nil
	case ElementArc:
		arc := Arc{From: raw.From, To: raw.To, Clockwise: raw.Clockwise}
		if raw.Radius != nil {
			arc.Radius = *raw.Radius
		}
		return arc, nil
	case ElementBezierQuadratic:
		return QuadraticBezier{From: raw.From, To: raw.To, Control: raw.Control}, nil
	case ElementBezierCubic:
		return CubicBezier{From: raw.From, To: raw.To, Control1: raw.Control1, Control2: raw.Control2}, nil
	}
	return nil, fmt.Errorf("unknown element type %q", raw.Type)
}

func encodeElement(e Element) rawElement {
	switch el := e.(type) {
	case Line:
		return rawElement{Type: ElementLine, From: el.From, To: el.To}
	case Arc:
		radius := el.Radius
		return rawElement{Type: ElementArc, From: el.From, To: el.To, Radius: &radius, Clockwise: el.Clockwise}
	case QuadraticBezier:
		return rawElement{Type: ElementBezierQuadratic, From: el.From, To: el.To, Control: el.Control}
	case CubicBezier:
		return rawElement{Type: ElementBezierCubic, From: el.From, To: el.To, Control1: el.Control1, Control2: el.Control2}
	}
	panic(fmt.Sprintf("models: unhandled element %T", e))
}
