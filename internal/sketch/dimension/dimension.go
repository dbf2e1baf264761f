package dimension

import (
	"errors"
	"fmt"
	"math"

	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"
	"sketch-engine/internal/sketch/solver"
)

var (
	ErrNoSharedVertex = errors.New("lines do not share a vertex")
	ErrDegenerate     = errors.New("degenerate dimension")
	ErrMissingVertex  = errors.New("missing vertex")
	ErrMalformed      = errors.New("malformed dimension")
)

// tolerance: допуск проверки после применения, и для длины, и для угла.
const tolerance = graph.Precision + 1e-6

// maxRadiusChange: насколько подбор точки угла может изменить длину линии (доля).
const maxRadiusChange = 0.5

// ============================================================
// Measurement
// ============================================================

// CalculateDimensionValue измеряет размер на текущих координатах.
// Угол всегда внутренний, в [0, 180].
func CalculateDimensionValue(d models.Dimension, vertices models.Positions) (float64, error) {
	v, err := measure(d, vertices)
	if err != nil {
		return 0, err
	}
	return graph.Round(v), nil
}

// DisplayValue возвращает значение, которое видит и задает пользователь.
func DisplayValue(d models.Dimension, value float64) float64 {
	if d.Type == models.DimensionAngular && d.Inverted {
		return 360 - value
	}
	return value
}

func measure(d models.Dimension, vertices models.Positions) (float64, error) {
	switch d.Type {
	case models.DimensionLinear:
		a, b, err := linearEnds(d, vertices)
		if err != nil {
			return 0, err
		}
		return graph.Distance(a, b), nil
	case models.DimensionAngular:
		ang, err := angularEnds(d, vertices)
		if err != nil {
			return 0, err
		}
		return ang.interior(), nil
	default:
		return 0, fmt.Errorf("%w: unknown type %q", ErrMalformed, d.Type)
	}
}

func linearEnds(d models.Dimension, vertices models.Positions) (models.Point, models.Point, error) {
	if len(d.Elements.Nodes) != 2 {
		return models.Point{}, models.Point{}, fmt.Errorf("%w: linear dimension %q needs 2 nodes, got %d", ErrMalformed, d.ID, len(d.Elements.Nodes))
	}
	a, ok := vertices[d.Elements.Nodes[0]]
	if !ok {
		return models.Point{}, models.Point{}, fmt.Errorf("%w: %q", ErrMissingVertex, d.Elements.Nodes[0])
	}
	b, ok := vertices[d.Elements.Nodes[1]]
	if !ok {
		return models.Point{}, models.Point{}, fmt.Errorf("%w: %q", ErrMissingVertex, d.Elements.Nodes[1])
	}
	return a, b, nil
}

// angle: две линии вокруг общей вершины.
type angle struct {
	pivotID    string
	pivot      models.Point
	ends       [2]string
	directions [2]models.Point
}

func angularEnds(d models.Dimension, vertices models.Positions) (*angle, error) {
	if len(d.Elements.Lines) != 2 {
		return nil, fmt.Errorf("%w: angular dimension %q needs 2 lines, got %d", ErrMalformed, d.ID, len(d.Elements.Lines))
	}
	l1, l2 := d.Elements.Lines[0], d.Elements.Lines[1]
	pivotID, ok := graph.SharedVertex(l1, l2)
	if !ok {
		return nil, fmt.Errorf("angular dimension %q: %w", d.ID, ErrNoSharedVertex)
	}
	pivot, ok := vertices[pivotID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingVertex, pivotID)
	}

	a := &angle{pivotID: pivotID, pivot: pivot}
	for i, l := range []models.LineRef{l1, l2} {
		end := l.To
		if end == pivotID {
			end = l.From
		}
		p, ok := vertices[end]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingVertex, end)
		}
		dir := models.Point{X: p.X - pivot.X, Y: p.Y - pivot.Y}
		if math.Hypot(dir.X, dir.Y) < 1e-9 {
			return nil, fmt.Errorf("angular dimension %q: %w: zero-length line", d.ID, ErrDegenerate)
		}
		a.ends[i] = end
		a.directions[i] = dir
	}
	return a, nil
}

func (a *angle) interior() float64 {
	return between(a.directions[0], a.directions[1])
}

func between(u, v models.Point) float64 {
	cos := (u.X*v.X + u.Y*v.Y) / (math.Hypot(u.X, u.Y) * math.Hypot(v.X, v.Y))
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// orientation: знак поворота от первой линии ко второй.
func (a *angle) orientation() float64 {
	u, v := a.directions[0], a.directions[1]
	if u.X*v.Y-u.Y*v.X < 0 {
		return -1
	}
	return 1
}

// ============================================================
// Applying a target value
// ============================================================

// ApplyResult: итог применения размера. При неудаче обновлений нет.
type ApplyResult struct {
	Success bool             `json:"success"`
	Updates models.Positions `json:"updates"`
	Reason  string           `json:"reason,omitempty"`
}

func failed(format string, args ...any) ApplyResult {
	return ApplyResult{Reason: fmt.Sprintf(format, args...), Updates: models.Positions{}}
}

// ApplyDimension вычисляет новые координаты, при которых размер равен target.
// Для углов target задается в отображаемом виде (с учетом inverted).
// Каждое перемещение проверяется решателем ограничений.
func ApplyDimension(d models.Dimension, target float64, vertices models.Positions, constraints []models.Constraint) ApplyResult {
	var (
		moverID   string
		proposed  models.Point
		canonical = target
	)

	switch d.Type {
	case models.DimensionLinear:
		if target <= 0 {
			return failed("linear dimension %q needs a positive value, got %v", d.ID, target)
		}
		a, b, err := linearEnds(d, vertices)
		if err != nil {
			return failed("%v", err)
		}
		anchor, mover := a, b
		moverID = d.Elements.Nodes[1]
		if solver.IsFixed(moverID, constraints) {
			anchor, mover = b, a
			moverID = d.Elements.Nodes[0]
			if solver.IsFixed(moverID, constraints) {
				return failed("both endpoints of %q are fixed", d.ID)
			}
		}
		length := graph.Distance(anchor, mover)
		if length < 1e-9 {
			return failed("linear dimension %q: %v: endpoints coincide", d.ID, ErrDegenerate)
		}
		scale := target / length
		proposed = models.Point{
			X: anchor.X + (mover.X-anchor.X)*scale,
			Y: anchor.Y + (mover.Y-anchor.Y)*scale,
		}

	case models.DimensionAngular:
		canonical = DisplayValue(d, target)
		if canonical < 0 || canonical > 180 {
			return failed("angle %v is out of range for %q", target, d.ID)
		}
		ang, err := angularEnds(d, vertices)
		if err != nil {
			return failed("%v", err)
		}

		rotate, ref := 1, 0
		if solver.IsFixed(ang.ends[1], constraints) {
			rotate, ref = 0, 1
			if solver.IsFixed(ang.ends[0], constraints) {
				return failed("both rotated endpoints of %q are fixed", d.ID)
			}
		}
		// поворот сохраняет направление обхода от первой линии ко второй
		sign := ang.orientation()
		if rotate == 0 {
			sign = -sign
		}
		base := ang.directions[ref]
		length := math.Hypot(ang.directions[rotate].X, ang.directions[rotate].Y)
		theta := math.Atan2(base.Y, base.X) + sign*canonical*math.Pi/180

		moverID = ang.ends[rotate]
		proposed = snapAngle(ang.pivot, base, theta, length, canonical)

	default:
		return failed("unknown dimension type %q", d.Type)
	}

	res := solver.SolveNodeMove(moverID, proposed, vertices, constraints)
	if res.Blocked {
		return failed("%s", res.Reason)
	}

	after := vertices.Clone()
	for id, p := range res.Updates {
		after[id] = p
	}
	got, err := measure(d, after)
	if err != nil {
		return failed("%v", err)
	}
	if !within(got, canonical) {
		return failed("%q lands at %.1f instead of %.1f", d.ID, DisplayValue(d, got), target)
	}
	return ApplyResult{Success: true, Updates: res.Updates}
}

// within: измеренное значение и его округление до 0.1 совпадают с целью в пределах допуска.
func within(got, target float64) bool {
	return math.Abs(got-target) <= tolerance && math.Abs(graph.Round(got)-target) <= tolerance
}

// snapAngle подбирает точку сетки 0.1 на луче theta, дающую угол target к base.
// Сначала проверяются углы ячейки вокруг точки на исходном радиусе, затем
// радиус меняется шагами по половине сетки в обе стороны.
// Если подходящей точки нет, возвращается лучшая найденная.
func snapAngle(pivot, base models.Point, theta, length, target float64) models.Point {
	const step = graph.Precision / 2

	best := models.Point{X: pivot.X + length*math.Cos(theta), Y: pivot.Y + length*math.Sin(theta)}
	bestErr := math.Inf(1)

	maxK := int(math.Ceil(length * maxRadiusChange / step))
	for i := 0; i <= 2*maxK; i++ {
		k := (i + 1) / 2
		if i%2 == 0 {
			k = -k
		}
		r := length + float64(k)*step
		if r < graph.Precision {
			continue
		}

		x := pivot.X + r*math.Cos(theta)
		y := pivot.Y + r*math.Sin(theta)
		for _, cx := range []float64{gridFloor(x), gridCeil(x)} {
			for _, cy := range []float64{gridFloor(y), gridCeil(y)} {
				c := models.Point{X: cx, Y: cy}
				dir := models.Point{X: c.X - pivot.X, Y: c.Y - pivot.Y}
				if math.Hypot(dir.X, dir.Y) < 1e-9 {
					continue
				}
				got := between(base, dir)
				if e := math.Abs(got - target); e < bestErr && within(got, target) {
					best, bestErr = c, e
				}
			}
		}
		if !math.IsInf(bestErr, 1) {
			break
		}
	}
	return best
}

func gridFloor(v float64) float64 {
	return graph.Round(math.Floor(v/graph.Precision+1e-9) * graph.Precision)
}

func gridCeil(v float64) float64 {
	return graph.Round(math.Ceil(v/graph.Precision-1e-9) * graph.Precision)
}
