package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"sketch-engine/internal/sketch/models"
)

// ============================================================
// XML Structures
// ============================================================

type SVG struct {
	XMLName xml.Name `xml:"svg"`
	Group
}

// Group соответствует элементу <g>; вложенные группы обходятся рекурсивно.
type Group struct {
	Rects   []Rect   `xml:"rect"`
	Paths   []Path   `xml:"path"`
	Circles []Circle `xml:"circle"`
	Groups  []Group  `xml:"g"`
}

type Rect struct {
	ID     string  `xml:"id,attr"`
	X      float64 `xml:"x,attr"`
	Y      float64 `xml:"y,attr"`
	Width  float64 `xml:"width,attr"`
	Height float64 `xml:"height,attr"`
}

type Path struct {
	ID string `xml:"id,attr"`
	D  string `xml:"d,attr"`
}

type Circle struct {
	ID string  `xml:"id,attr"`
	CX float64 `xml:"cx,attr"`
	CY float64 `xml:"cy,attr"`
	R  float64 `xml:"r,attr"`
}

// ============================================================
// Shapes
// ============================================================

// Shape описывает распознанный элемент SVG с типом контура.
type Shape struct {
	ID       string
	Kind     models.ContourKind
	Geometry any // RectGeometry, PathGeometry или CircleGeometry
}

type RectGeometry struct {
	X, Y, Width, Height float64
}

type PathGeometry struct {
	D string
}

type CircleGeometry struct {
	Center models.Point
	R      float64
}

// ============================================================
// Parser
// ============================================================

// ParseSVG читает SVG и возвращает элементы с id вида Outer_* и Hole_*.
// Остальные элементы игнорируются.
func ParseSVG(r io.Reader) ([]Shape, error) {
	var svg SVG
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&svg); err != nil {
		return nil, fmt.Errorf("decode svg: %w", err)
	}

	var shapes []Shape
	collect(svg.Group, &shapes)
	return shapes, nil
}

func collect(g Group, shapes *[]Shape) {
	for _, rect := range g.Rects {
		kind := classifyElementByID(rect.ID)
		if kind == "" || rect.Width <= 0 || rect.Height <= 0 {
			continue
		}
		*shapes = append(*shapes, Shape{
			ID:   rect.ID,
			Kind: kind,
			Geometry: RectGeometry{
				X:      rect.X,
				Y:      rect.Y,
				Width:  rect.Width,
				Height: rect.Height,
			},
		})
	}

	for _, path := range g.Paths {
		kind := classifyElementByID(path.ID)
		if kind == "" {
			continue
		}
		*shapes = append(*shapes, Shape{ID: path.ID, Kind: kind, Geometry: PathGeometry{D: path.D}})
	}

	for _, c := range g.Circles {
		kind := classifyElementByID(c.ID)
		if kind == "" || c.R <= 0 {
			continue
		}
		*shapes = append(*shapes, Shape{
			ID:       c.ID,
			Kind:     kind,
			Geometry: CircleGeometry{Center: models.Point{X: c.CX, Y: c.CY}, R: c.R},
		})
	}

	for _, sub := range g.Groups {
		collect(sub, shapes)
	}
}

func classifyElementByID(id string) models.ContourKind {
	switch {
	case strings.HasPrefix(id, "Outer_"), strings.EqualFold(id, "outer"):
		return models.ContourOuter
	case strings.HasPrefix(id, "Hole_"):
		return models.ContourHole
	}
	return ""
}
