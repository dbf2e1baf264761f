package mapper

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"

	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"
	"sketch-engine/internal/sketch/parser"
)

var ErrNoOuterShape = errors.New("svg has no Outer_ element")

// DefaultHeight: высота выдавливания для импортированного эскиза.
const DefaultHeight = 10

// ============================================================
// Converter
// ============================================================

type Converter struct {
	builder *graph.SketchBuilder
	height  float64
}

func New(height float64) *Converter {
	if height <= 0 {
		height = DefaultHeight
	}
	return &Converter{
		builder: graph.NewSketchBuilder(),
		height:  height,
	}
}

// FlipY переводит экранные координаты SVG (ось Y вниз) в координаты эскиза.
func (c *Converter) FlipY() {
	c.builder.SetTransform(func(p models.Point) models.Point {
		return models.Point{X: p.X, Y: -p.Y}
	})
}

// Convert SVG → эскиз с литеральными координатами
func (c *Converter) Convert(r io.Reader) (*models.Document, error) {
	shapes, err := parser.ParseSVG(r)
	if err != nil {
		return nil, fmt.Errorf("parse SVG: %w", err)
	}

	// внешний контур первым, чтобы его вершины получили младшие id
	sort.SliceStable(shapes, func(i, j int) bool {
		return shapes[i].Kind == models.ContourOuter && shapes[j].Kind != models.ContourOuter
	})

	outers := 0
	for _, shape := range shapes {
		if err := c.addShape(shape); err != nil {
			log.Printf("[CONVERTER] %s skipped: %v", shape.ID, err)
			continue
		}
		if shape.Kind == models.ContourOuter {
			outers++
		}
	}
	if outers == 0 {
		return nil, ErrNoOuterShape
	}

	doc := c.builder.Document(c.height)
	log.Printf("[CONVERTER] %d shapes → %d vertices, %d contours, %d circles",
		len(shapes), len(doc.Geometry.Vertices), len(doc.Geometry.Contours), len(doc.Geometry.Circles))
	return doc, nil
}

func (c *Converter) addShape(shape parser.Shape) error {
	b := c.builder

	switch geom := shape.Geometry.(type) {
	case parser.RectGeometry:
		b.BeginContour(shape.ID, shape.Kind)
		b.MoveTo(models.Point{X: geom.X, Y: geom.Y})
		b.LineTo(models.Point{X: geom.X + geom.Width, Y: geom.Y})
		b.LineTo(models.Point{X: geom.X + geom.Width, Y: geom.Y + geom.Height})
		b.LineTo(models.Point{X: geom.X, Y: geom.Y + geom.Height})
		b.Close()

	case parser.CircleGeometry:
		if shape.Kind == models.ContourHole {
			b.AddCircle(shape.ID, geom.Center, geom.R)
			return nil
		}
		right := models.Point{X: geom.Center.X + geom.R, Y: geom.Center.Y}
		left := models.Point{X: geom.Center.X - geom.R, Y: geom.Center.Y}
		b.BeginContour(shape.ID, shape.Kind)
		b.MoveTo(right)
		b.ArcTo(left, geom.R, false)
		b.ArcTo(right, geom.R, false)
		b.Close()

	case parser.PathGeometry:
		segments, err := parser.ParsePath(geom.D)
		if err != nil {
			return err
		}
		b.BeginContour(shape.ID, shape.Kind)
		for _, s := range segments {
			switch s.Op {
			case parser.OpMove:
				b.MoveTo(s.Points[0])
			case parser.OpLine:
				b.LineTo(s.Points[0])
			case parser.OpQuad:
				b.QuadTo(s.Points[0], s.Points[1])
			case parser.OpCubic:
				b.CubicTo(s.Points[0], s.Points[1], s.Points[2])
			case parser.OpClose:
				b.Close()
			}
		}

	default:
		return fmt.Errorf("unknown geometry type %T", geom)
	}
	return nil
}
