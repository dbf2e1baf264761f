package graph

import (
	"fmt"
	"math"
	"sort"

	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Sketch Builder
// ============================================================

const tolerance = 0.5         // Tolerance для объединения близких точек
const axisSnapTolerance = 1.0 // Насколько отклониться от оси, чтобы выровнять линию

// SketchBuilder собирает эскиз из последовательности команд пути (импорт SVG).
type SketchBuilder struct {
	vertices  map[string]models.Point
	contours  []models.Contour
	circles   []models.Circle
	vertexID  int
	transform func(models.Point) models.Point

	current *models.Contour
	cursor  string
	start   string
}

func NewSketchBuilder() *SketchBuilder {
	return &SketchBuilder{
		vertices:  make(map[string]models.Point),
		transform: func(p models.Point) models.Point { return p },
	}
}

// SetTransform задает функцию трансформации координат (например, зеркалирование оси Y).
func (b *SketchBuilder) SetTransform(f func(models.Point) models.Point) {
	if f == nil {
		b.transform = func(p models.Point) models.Point { return p }
		return
	}
	b.transform = f
}

// BeginContour начинает новый контур; незавершенный предыдущий сохраняется открытым.
func (b *SketchBuilder) BeginContour(id string, kind models.ContourKind) {
	b.flush()
	b.current = &models.Contour{ID: id, Type: kind}
	b.cursor, b.start = "", ""
}

func (b *SketchBuilder) MoveTo(p models.Point) {
	if b.current != nil && len(b.current.Elements) > 0 {
		// новый подпуть внутри того же SVG path становится отдельным контуром того же типа
		id, kind := b.current.ID, b.current.Type
		b.flush()
		b.current = &models.Contour{ID: fmt.Sprintf("%s_%d", id, len(b.contours)), Type: kind}
	}
	b.cursor = b.findOrCreateVertex(p)
	b.start = b.cursor
}

func (b *SketchBuilder) LineTo(p models.Point) {
	to := b.findOrCreateVertex(p)
	if to == b.cursor {
		return
	}
	b.add(models.Line{From: b.cursor, To: to}, to)
}

func (b *SketchBuilder) QuadTo(ctrl, p models.Point) {
	c := b.findOrCreateVertex(ctrl)
	to := b.findOrCreateVertex(p)
	b.add(models.QuadraticBezier{From: b.cursor, To: to, Control: c}, to)
}

func (b *SketchBuilder) CubicTo(c1, c2, p models.Point) {
	ctrl1 := b.findOrCreateVertex(c1)
	ctrl2 := b.findOrCreateVertex(c2)
	to := b.findOrCreateVertex(p)
	b.add(models.CubicBezier{From: b.cursor, To: to, Control1: ctrl1, Control2: ctrl2}, to)
}

// ArcTo добавляет дугу окружности радиуса radius.
func (b *SketchBuilder) ArcTo(p models.Point, radius float64, clockwise bool) {
	to := b.findOrCreateVertex(p)
	if to == b.cursor {
		return
	}
	b.add(models.Arc{From: b.cursor, To: to, Radius: models.Num(radius), Clockwise: clockwise}, to)
}

// Close замыкает контур линией к стартовой вершине.
func (b *SketchBuilder) Close() {
	if b.current == nil || b.start == "" {
		return
	}
	if b.cursor != b.start {
		b.add(models.Line{From: b.cursor, To: b.start}, b.start)
	}
	b.current.Closed = true
}

func (b *SketchBuilder) AddCircle(id string, center models.Point, radius float64) {
	c := b.findOrCreateVertex(center)
	rp := b.findOrCreateVertex(models.Point{X: center.X + radius, Y: center.Y})
	b.circles = append(b.circles, models.Circle{ID: id, Center: c, RadiusPoint: rp})
}

func (b *SketchBuilder) add(e models.Element, to string) {
	if b.current == nil || b.cursor == "" {
		return
	}
	b.current.Elements = append(b.current.Elements, e)
	b.cursor = to
}

func (b *SketchBuilder) flush() {
	if b.current != nil && len(b.current.Elements) > 0 {
		b.contours = append(b.contours, *b.current)
	}
	b.current = nil
}

// Document собирает итоговый эскиз с литеральными координатами.
func (b *SketchBuilder) Document(height float64) *models.Document {
	b.flush()
	b.snapAxisAligned()

	vertices := make(map[string]models.VertexDef, len(b.vertices))
	for id, p := range b.vertices {
		vertices[id] = models.VertexDef{X: models.Num(Round(p.X)), Y: models.Num(Round(p.Y))}
	}

	h := models.Num(height)
	return &models.Document{
		Params: map[string]models.Value{},
		Geometry: models.Geometry{
			Vertices:    vertices,
			Contours:    b.contours,
			Circles:     b.circles,
			Constraints: []models.Constraint{},
			Dimensions:  []models.Dimension{},
			Extrusion: &models.Extrusion{
				Height:         &h,
				BevelThickness: models.DefaultBevelThickness,
				BevelSize:      models.DefaultBevelSize,
				BevelSegments:  models.DefaultBevelSegments,
				CurveSegments:  models.DefaultCurveSegments,
			},
		},
	}
}

func (b *SketchBuilder) findOrCreateVertex(p models.Point) string {
	p = b.transform(p)

	// Ищем существующую близкую точку
	ids := make([]string, 0, len(b.vertices))
	for id := range b.vertices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if Distance(p, b.vertices[id]) < tolerance {
			return id
		}
	}

	b.vertexID++
	id := fmt.Sprintf("v%d", b.vertexID)
	b.vertices[id] = p
	return id
}

// snapAxisAligned выравнивает почти горизонтальные/вертикальные линии.
func (b *SketchBuilder) snapAxisAligned() {
	type agg struct {
		sumX float64
		cntX int
		sumY float64
		cntY int
	}

	aggMap := make(map[string]*agg)
	get := func(id string) *agg {
		a := aggMap[id]
		if a == nil {
			a = &agg{}
			aggMap[id] = a
		}
		return a
	}

	for _, c := range b.contours {
		for _, e := range c.Elements {
			line, ok := e.(models.Line)
			if !ok {
				continue
			}
			v1, v2 := b.vertices[line.From], b.vertices[line.To]
			dx := v1.X - v2.X
			dy := v1.Y - v2.Y

			if math.Abs(dy) <= axisSnapTolerance && math.Abs(dx) > axisSnapTolerance {
				targetY := (v1.Y + v2.Y) / 2
				for _, id := range []string{line.From, line.To} {
					a := get(id)
					a.sumY += targetY
					a.cntY++
				}
			} else if math.Abs(dx) <= axisSnapTolerance && math.Abs(dy) > axisSnapTolerance {
				targetX := (v1.X + v2.X) / 2
				for _, id := range []string{line.From, line.To} {
					a := get(id)
					a.sumX += targetX
					a.cntX++
				}
			}
		}
	}

	for id, a := range aggMap {
		v := b.vertices[id]
		if a.cntX > 0 {
			v.X = a.sumX / float64(a.cntX)
		}
		if a.cntY > 0 {
			v.Y = a.sumY / float64(a.cntY)
		}
		b.vertices[id] = v
	}
}
