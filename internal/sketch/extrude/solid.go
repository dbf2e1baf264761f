package extrude

import (
	"errors"
	"log"
	"math"

	"sketch-engine/internal/sketch/expr"
	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"
)

var ErrNoOuterContour = errors.New("no outer contour")

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Bounds struct {
	Min models.Point `json:"min"`
	Max models.Point `json:"max"`
}

// Solid описывает треугольную сетку выдавленного сечения.
type Solid struct {
	Vertices  []Vec3           `json:"vertices"`
	Triangles [][3]int         `json:"triangles"`
	Outline   []models.Point   `json:"outline"`
	Holes     [][]models.Point `json:"holes,omitempty"`
	Height    float64          `json:"height"`
	Footprint Bounds           `json:"footprint"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// Volume считает объем замкнутой сетки по теореме о дивергенции.
func (s *Solid) Volume() float64 {
	var v float64
	for _, t := range s.Triangles {
		a, b, c := s.Vertices[t[0]], s.Vertices[t[1]], s.Vertices[t[2]]
		v += a.X*(b.Y*c.Z-b.Z*c.Y) - a.Y*(b.X*c.Z-b.Z*c.X) + a.Z*(b.X*c.Y-b.Y*c.X)
	}
	return v / 6
}

// ============================================================
// Build
// ============================================================

// BuildSolid выдавливает внешний контур за вычетом отверстий и окружностей.
// Единственная фатальная ошибка: отсутствие внешнего контура; остальные
// проблемы заменяются прямыми отрезками и попадают в Warnings.
func BuildSolid(doc *models.Document, params map[string]float64) (*Solid, error) {
	outers := doc.Geometry.OuterContours()
	if len(outers) == 0 {
		return nil, ErrNoOuterContour
	}

	positions, diags := graph.ResolvePositions(&doc.Geometry, params)

	ext := models.Extrusion{}
	if doc.Geometry.Extrusion != nil {
		ext = *doc.Geometry.Extrusion
	}
	ext = ext.WithDefaults()

	b := &ringBuilder{
		positions: positions,
		params:    params,
		segments:  ext.CurveSegments,
		ev:        expr.NewEvaluator(),
	}
	for _, d := range diags {
		b.warnf("expression %q evaluated to 0: %s", d.Expression, d.Message)
	}
	if doc.Geometry.Extrusion == nil {
		b.warnf("extrusion settings are missing")
	}
	if len(outers) > 1 {
		b.warnf("%d outer contours found, using %q", len(outers), outers[0].ID)
	}

	var height float64
	if ext.Height != nil {
		height = b.ev.Evaluate(*ext.Height, params)
	}
	if height <= 0 {
		b.warnf("extrusion height %g is not positive", height)
		height = math.Max(height, 0)
	}

	solid := &Solid{Height: height}

	outer := b.contour(outers[0])
	if len(outer) < 3 {
		b.warnf("outer contour %q has fewer than 3 distinct points", outers[0].ID)
		solid.Warnings = b.warnings
		return solid, nil
	}
	solid.Outline = orient(outer, true)
	solid.Footprint = boundsOf(solid.Outline)

	for _, c := range doc.Geometry.Contours {
		if c.Type != models.ContourHole {
			continue
		}
		ring := b.contour(c)
		if len(ring) < 3 {
			b.warnf("hole %q has fewer than 3 distinct points, skipped", c.ID)
			continue
		}
		solid.Holes = append(solid.Holes, orient(ring, false))
	}
	for _, c := range doc.Geometry.Circles {
		if ring := b.circle(c); len(ring) >= 3 {
			solid.Holes = append(solid.Holes, orient(ring, false))
		}
	}

	forced := solid.mesh(ext)
	if forced > 0 {
		b.warnf("cap triangulation forced %d cuts, contour may self-intersect", forced)
	}

	for _, d := range b.ev.Diagnostics() {
		b.warnf("expression %q evaluated to 0: %s", d.Expression, d.Message)
	}
	solid.Warnings = b.warnings
	log.Printf("[EXTRUDE] solid built: %d vertices, %d triangles, %d holes", len(solid.Vertices), len(solid.Triangles), len(solid.Holes))
	return solid, nil
}

// layer задает одно сечение по высоте: отступ от контура и уровень z.
type layer struct {
	inset float64
	z     float64
}

// profile строит сечения снизу вверх. Фаска имеет профиль четверти окружности
// из bevelSegments шагов, толщина не больше половины высоты.
func profile(ext models.Extrusion, height float64) []layer {
	if !ext.Bevel || height <= 0 {
		return []layer{{0, 0}, {0, height}}
	}

	thickness := math.Min(ext.BevelThickness, height/2)
	size := ext.BevelSize
	segs := ext.BevelSegments

	out := make([]layer, 0, 2*(segs+1))
	for k := 0; k <= segs; k++ {
		t := float64(k) / float64(segs) * math.Pi / 2
		out = append(out, layer{inset: size * (1 - math.Sin(t)), z: thickness * (1 - math.Cos(t))})
	}
	for k := segs; k >= 0; k-- {
		t := float64(k) / float64(segs) * math.Pi / 2
		l := layer{inset: size * (1 - math.Sin(t)), z: height - thickness*(1-math.Cos(t))}
		if k == segs && math.Abs(l.z-out[len(out)-1].z) < 1e-9 {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (s *Solid) mesh(ext models.Extrusion) int {
	rings := append([][]models.Point{s.Outline}, s.Holes...)

	offsets := make([]int, len(rings))
	var pts []models.Point
	for i, r := range rings {
		offsets[i] = len(pts)
		pts = append(pts, r...)
	}
	perLayer := len(pts)

	layers := profile(ext, s.Height)
	for _, l := range layers {
		for _, r := range rings {
			for _, p := range insetRing(r, l.inset) {
				s.Vertices = append(s.Vertices, Vec3{X: p.X, Y: p.Y, Z: l.z})
			}
		}
	}

	outer := make([]int, len(s.Outline))
	for i := range outer {
		outer[i] = i
	}
	holes := make([][]int, 0, len(s.Holes))
	for h := range s.Holes {
		ring := make([]int, len(s.Holes[h]))
		for i := range ring {
			ring[i] = offsets[h+1] + i
		}
		holes = append(holes, ring)
	}
	caps, forced := triangulate(pts, outer, holes)

	top := (len(layers) - 1) * perLayer
	for _, t := range caps {
		s.Triangles = append(s.Triangles,
			[3]int{t[0], t[2], t[1]},
			[3]int{top + t[0], top + t[1], top + t[2]},
		)
	}

	for l := 0; l+1 < len(layers); l++ {
		lo, hi := l*perLayer, (l+1)*perLayer
		for r, ring := range rings {
			n := len(ring)
			for i := 0; i < n; i++ {
				j := (i + 1) % n
				a, b := lo+offsets[r]+i, lo+offsets[r]+j
				c, d := hi+offsets[r]+j, hi+offsets[r]+i
				s.Triangles = append(s.Triangles, [3]int{a, b, c}, [3]int{a, c, d})
			}
		}
	}
	return forced
}

func boundsOf(ring []models.Point) Bounds {
	b := Bounds{Min: ring[0], Max: ring[0]}
	for _, p := range ring[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}
