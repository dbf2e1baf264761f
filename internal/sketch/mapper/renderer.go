package mapper

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"sketch-engine/internal/sketch/dimension"
	"sketch-engine/internal/sketch/expr"
	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Renderer
// ============================================================

const margin = 10

type Renderer struct {
	// Экранная ось Y направлена вниз; эскиз рисуется зеркально.
	minX, maxY float64
}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render собирает SVG-превью эскиза: контуры, окружности и подписи размеров.
func (r *Renderer) Render(doc *models.Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("sketch is nil")
	}

	resolved, err := graph.Resolve(doc)
	if err != nil {
		return "", err
	}
	pos := resolved.Positions

	width, height := r.sketchSize(pos)

	var elements []string
	elements = append(elements, r.renderContours(doc, pos, resolved.Params)...)
	elements = append(elements, r.renderCircles(doc, pos)...)
	elements = append(elements, r.renderDimensions(doc, pos)...)

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		formatFloat(width), formatFloat(height), formatFloat(width), formatFloat(height)))
	builder.WriteString("\n")

	for _, elem := range elements {
		builder.WriteString("  ")
		builder.WriteString(elem)
		builder.WriteString("\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String(), nil
}

// ============================================================
// Sizing
// ============================================================

func (r *Renderer) sketchSize(pos models.Positions) (float64, float64) {
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64

	for _, p := range pos {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	if minX == math.MaxFloat64 {
		r.minX, r.maxY = 0, 0
		return 100, 100
	}

	r.minX = minX - margin
	r.maxY = maxY + margin
	return maxX - minX + 2*margin, maxY - minY + 2*margin
}

// screen переводит точку эскиза в координаты SVG.
func (r *Renderer) screen(p models.Point) models.Point {
	return models.Point{X: graph.Round(p.X - r.minX), Y: graph.Round(r.maxY - p.Y)}
}

// ============================================================
// Element renderers
// ============================================================

func (r *Renderer) renderContours(doc *models.Document, pos models.Positions, params map[string]float64) []string {
	var out []string

	for _, c := range doc.Geometry.Contours {
		if len(c.Elements) == 0 {
			continue
		}

		var path strings.Builder
		from, _ := c.Elements[0].Endpoints()
		path.WriteString("M ")
		path.WriteString(formatPoint(r.screen(pos[from])))

		for _, e := range c.Elements {
			_, to := e.Endpoints()
			end := formatPoint(r.screen(pos[to]))

			switch el := e.(type) {
			case models.Line:
				path.WriteString(" L " + end)
			case models.Arc:
				radius := graph.Round(expr.Evaluate(el.Radius, params))
				// зеркалирование по Y меняет направление обхода
				sweep := "1"
				if el.Clockwise {
					sweep = "0"
				}
				path.WriteString(fmt.Sprintf(" A %s %s 0 0 %s %s", formatFloat(radius), formatFloat(radius), sweep, end))
			case models.QuadraticBezier:
				path.WriteString(" Q " + formatPoint(r.screen(pos[el.Control])) + " " + end)
			case models.CubicBezier:
				path.WriteString(" C " + formatPoint(r.screen(pos[el.Control1])) + " " + formatPoint(r.screen(pos[el.Control2])) + " " + end)
			}
		}
		if c.Closed {
			path.WriteString(" Z")
		}

		stroke := "#000"
		if c.Type == models.ContourHole {
			stroke = "#1f77b4"
		}
		out = append(out, fmt.Sprintf(`<path id="%s" d="%s" fill="none" stroke="%s" />`, html.EscapeString(c.ID), path.String(), stroke))
	}

	return out
}

func (r *Renderer) renderCircles(doc *models.Document, pos models.Positions) []string {
	var out []string

	for _, c := range doc.Geometry.Circles {
		center, ok1 := pos[c.Center]
		edge, ok2 := pos[c.RadiusPoint]
		if !ok1 || !ok2 {
			continue
		}
		s := r.screen(center)
		out = append(out, fmt.Sprintf(`<circle id="%s" cx="%s" cy="%s" r="%s" fill="none" stroke="#1f77b4" />`,
			html.EscapeString(c.ID), formatFloat(s.X), formatFloat(s.Y), formatFloat(graph.Round(graph.Distance(center, edge)))))
	}

	return out
}

func (r *Renderer) renderDimensions(doc *models.Document, pos models.Positions) []string {
	var out []string

	for _, d := range doc.Geometry.Dimensions {
		value, err := dimension.CalculateDimensionValue(d, pos)
		if err != nil {
			continue
		}

		var anchor models.Point
		switch d.Type {
		case models.DimensionLinear:
			a, b := pos[d.Elements.Nodes[0]], pos[d.Elements.Nodes[1]]
			anchor = models.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
		case models.DimensionAngular:
			pivot, _ := graph.SharedVertex(d.Elements.Lines[0], d.Elements.Lines[1])
			anchor = pos[pivot]
		}

		text := formatFloat(graph.Round(dimension.DisplayValue(d, value)))
		if d.Type == models.DimensionAngular {
			text += "°"
		}
		if d.Label != "" {
			text = d.Label + " = " + text
		}

		s := r.screen(anchor)
		out = append(out, fmt.Sprintf(`<text id="%s" x="%s" y="%s" font-size="4" fill="#d62728">%s</text>`,
			html.EscapeString(d.ID), formatFloat(s.X), formatFloat(s.Y), html.EscapeString(text)))
	}

	return out
}

// ============================================================
// Formatting helpers
// ============================================================

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func formatPoint(p models.Point) string {
	return formatFloat(p.X) + " " + formatFloat(p.Y)
}
