package extrude

import (
	"fmt"
	"log"
	"math"
	"slices"

	"sketch-engine/internal/sketch/expr"
	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Contour tessellation
// ============================================================

type ringBuilder struct {
	positions models.Positions
	params    map[string]float64
	segments  int
	ev        *expr.Evaluator
	warnings  []string
}

func (b *ringBuilder) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[EXTRUDE] %s", msg)
	b.warnings = append(b.warnings, msg)
}

// contour превращает контур в замкнутую ломаную.
func (b *ringBuilder) contour(c models.Contour) []models.Point {
	var ring []models.Point

	for i, e := range c.Elements {
		from, to := e.Endpoints()
		p0, ok0 := b.positions[from]
		p1, ok1 := b.positions[to]
		if !ok0 || !ok1 {
			b.warnf("contour %q element %d skipped: missing endpoint", c.ID, i)
			continue
		}

		if len(ring) == 0 || !graph.SamePoint(ring[len(ring)-1], p0) {
			ring = append(ring, p0)
		}

		switch el := e.(type) {
		case models.Line:
			ring = append(ring, p1)
		case models.Arc:
			ring = append(ring, b.arc(c.ID, i, p0, p1, el)...)
		case models.QuadraticBezier:
			ctrl, ok := b.positions[el.Control]
			if !ok {
				b.warnf("contour %q element %d: control vertex %q missing, drawing a straight line", c.ID, i, el.Control)
				ring = append(ring, p1)
				continue
			}
			ring = append(ring, sample(b.segments, func(t float64) models.Point {
				u := 1 - t
				return models.Point{
					X: u*u*p0.X + 2*u*t*ctrl.X + t*t*p1.X,
					Y: u*u*p0.Y + 2*u*t*ctrl.Y + t*t*p1.Y,
				}
			})...)
		case models.CubicBezier:
			c1, ok1 := b.positions[el.Control1]
			c2, ok2 := b.positions[el.Control2]
			if !ok1 || !ok2 {
				b.warnf("contour %q element %d: control vertices %q/%q missing, drawing a straight line", c.ID, i, el.Control1, el.Control2)
				ring = append(ring, p1)
				continue
			}
			ring = append(ring, sample(b.segments, func(t float64) models.Point {
				u := 1 - t
				return models.Point{
					X: u*u*u*p0.X + 3*u*u*t*c1.X + 3*u*t*t*c2.X + t*t*t*p1.X,
					Y: u*u*u*p0.Y + 3*u*u*t*c1.Y + 3*u*t*t*c2.Y + t*t*t*p1.Y,
				}
			})...)
		}
	}
	return cleanRing(ring)
}

// arc строит дугу заданного радиуса через две точки. Центр лежит справа
// от направления хода для clockwise и слева для обратного хода.
func (b *ringBuilder) arc(contourID string, i int, p0, p1 models.Point, el models.Arc) []models.Point {
	r := b.ev.Evaluate(el.Radius, b.params)
	chord := graph.Distance(p0, p1)
	if chord < 1e-9 {
		return nil
	}
	// допуск в половину рабочей точности: координаты концов округлены
	if r < chord/2-graph.Precision/2 {
		b.warnf("contour %q element %d: arc radius %g is smaller than half the chord %g, drawing a straight line", contourID, i, r, chord/2)
		return []models.Point{p1}
	}

	h := math.Sqrt(math.Max(0, r*r-chord*chord/4))
	ux, uy := (p1.X-p0.X)/chord, (p1.Y-p0.Y)/chord
	nx, ny := -uy, ux // левая нормаль
	if el.Clockwise {
		nx, ny = -nx, -ny
	}
	center := models.Point{
		X: (p0.X+p1.X)/2 + h*nx,
		Y: (p0.Y+p1.Y)/2 + h*ny,
	}

	a0 := math.Atan2(p0.Y-center.Y, p0.X-center.X)
	a1 := math.Atan2(p1.Y-center.Y, p1.X-center.X)
	sweep := a1 - a0
	if el.Clockwise {
		for sweep >= 0 {
			sweep -= 2 * math.Pi
		}
	} else {
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
	}

	pts := sample(b.segments, func(t float64) models.Point {
		a := a0 + sweep*t
		return models.Point{X: center.X + r*math.Cos(a), Y: center.Y + r*math.Sin(a)}
	})
	pts[len(pts)-1] = p1
	return pts
}

// circle строит окружность-отверстие по центру и точке на окружности.
func (b *ringBuilder) circle(c models.Circle) []models.Point {
	center, ok1 := b.positions[c.Center]
	edge, ok2 := b.positions[c.RadiusPoint]
	if !ok1 || !ok2 {
		b.warnf("circle %q skipped: missing vertex", c.ID)
		return nil
	}
	r := graph.Distance(center, edge)
	if r < 1e-9 {
		b.warnf("circle %q skipped: zero radius", c.ID)
		return nil
	}

	n := b.segments * 4
	ring := make([]models.Point, 0, n)
	for k := 0; k < n; k++ {
		a := 2 * math.Pi * float64(k) / float64(n)
		ring = append(ring, models.Point{X: center.X + r*math.Cos(a), Y: center.Y + r*math.Sin(a)})
	}
	return ring
}

// sample возвращает точки кривой для t в (0, 1].
func sample(segments int, f func(float64) models.Point) []models.Point {
	pts := make([]models.Point, 0, segments)
	for k := 1; k <= segments; k++ {
		pts = append(pts, f(float64(k)/float64(segments)))
	}
	return pts
}

// cleanRing убирает повторяющиеся соседние точки и замыкающий дубликат.
func cleanRing(ring []models.Point) []models.Point {
	out := make([]models.Point, 0, len(ring))
	for _, p := range ring {
		if len(out) > 0 && graph.SamePoint(out[len(out)-1], p) {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && graph.SamePoint(out[0], out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

func signedArea(ring []models.Point) float64 {
	var a float64
	for i := range ring {
		j := (i + 1) % len(ring)
		a += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return a / 2
}

// orient разворачивает кольцо в нужное направление обхода.
func orient(ring []models.Point, ccw bool) []models.Point {
	if (signedArea(ring) > 0) == ccw {
		return ring
	}
	out := slices.Clone(ring)
	slices.Reverse(out)
	return out
}

// insetRing сдвигает кольцо на d влево от направления обхода,
// то есть внутрь материала и для внешнего контура, и для отверстий.
func insetRing(ring []models.Point, d float64) []models.Point {
	if d == 0 {
		return ring
	}
	n := len(ring)
	out := make([]models.Point, n)
	for i, cur := range ring {
		n1 := leftNormal(ring[(i+n-1)%n], cur)
		n2 := leftNormal(cur, ring[(i+1)%n])
		denom := 1 + n1.X*n2.X + n1.Y*n2.Y
		if denom < 0.25 {
			denom = 0.25
		}
		out[i] = models.Point{
			X: cur.X + (n1.X+n2.X)*d/denom,
			Y: cur.Y + (n1.Y+n2.Y)*d/denom,
		}
	}
	return out
}

func leftNormal(a, b models.Point) models.Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l < 1e-12 {
		return models.Point{}
	}
	return models.Point{X: -dy / l, Y: dx / l}
}
