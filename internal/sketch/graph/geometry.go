package graph

import (
	"math"

	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Geometry helpers
// ============================================================

// Precision задает рабочую точность эскиза (один знак после запятой).
const Precision = 0.1

func Distance(p1, p2 models.Point) float64 {
	dx := p1.X - p2.X
	dy := p1.Y - p2.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Round округляет до рабочей точности, чтобы шум не копился между перемещениями.
func Round(v float64) float64 {
	r := math.Round(v/Precision) * Precision
	// убираем артефакты вида 0.30000000000000004
	return math.Round(r*1e9) / 1e9
}

func RoundPoint(p models.Point) models.Point {
	return models.Point{X: Round(p.X), Y: Round(p.Y)}
}

func AlmostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func SamePoint(a, b models.Point) bool {
	return AlmostEqual(a.X, b.X) && AlmostEqual(a.Y, b.Y)
}
