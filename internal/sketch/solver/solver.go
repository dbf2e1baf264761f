package solver

import (
	"fmt"
	"math"
	"sort"

	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Constraint Solver
// ============================================================
//
// Только прямое распространение: ограничения применяются по очереди
// (fixed → distance → horizontal/vertical), первое блокирующее побеждает.
// Совместного решения системы нет.

// MoveResult: результат проверки перемещения. При Blocked обновлений нет.
type MoveResult struct {
	Blocked bool             `json:"blocked"`
	Reason  string           `json:"reason,omitempty"`
	Updates models.Positions `json:"updates"`
}

func blocked(format string, args ...any) MoveResult {
	return MoveResult{Blocked: true, Reason: fmt.Sprintf(format, args...), Updates: models.Positions{}}
}

const ReasonFixed = "node is fixed"

// SolveNodeMove проверяет предложенную позицию вершины и вычисляет все
// вытекающие из ограничений обновления.
func SolveNodeMove(nodeID string, proposed models.Point, vertices models.Positions, constraints []models.Constraint) MoveResult {
	current, ok := vertices[nodeID]
	if !ok {
		return blocked("unknown node %q", nodeID)
	}

	if IsFixed(nodeID, constraints) {
		return blocked("%s", ReasonFixed)
	}

	target, res := applyDistance(nodeID, proposed, vertices, constraints)
	if res != nil {
		return *res
	}

	updates := models.Positions{}
	mover := target

	for _, c := range enabled(constraints) {
		if !c.Involves(nodeID) {
			continue
		}
		switch c.Type {
		case models.ConstraintHorizontal:
			delta := mover.X - current.X
			mover.Y = groupAxis(c, nodeID, vertices, pointY, current.Y)
			if reason, ok := propagate(c, nodeID, vertices, constraints, updates, func(p models.Point) models.Point {
				return models.Point{X: p.X + delta, Y: mover.Y}
			}); !ok {
				return blocked("%s", reason)
			}
		case models.ConstraintVertical:
			delta := mover.Y - current.Y
			mover.X = groupAxis(c, nodeID, vertices, pointX, current.X)
			if reason, ok := propagate(c, nodeID, vertices, constraints, updates, func(p models.Point) models.Point {
				return models.Point{X: mover.X, Y: p.Y + delta}
			}); !ok {
				return blocked("%s", reason)
			}
		}
	}

	updates[nodeID] = mover
	for id, p := range updates {
		updates[id] = graph.RoundPoint(p)
	}
	if reason, ok := checkDistances([]string{nodeID}, vertices, updates, constraints); !ok {
		return blocked("%s", reason)
	}
	return MoveResult{Updates: updates}
}

// SolveGroupMove проверяет перемещение нескольких вершин сразу.
// Каждая вершина проверяется относительно предложенных позиций всей группы;
// если хоть одна заблокирована, отклоняется вся группа.
// Участники horizontal/vertical получают одну общую координату: ее задает
// участник с наименьшим id среди перемещаемых.
func SolveGroupMove(moves models.Positions, vertices models.Positions, constraints []models.Constraint) MoveResult {
	ids := make([]string, 0, len(moves))
	for id := range moves {
		if _, ok := vertices[id]; !ok {
			return blocked("unknown node %q", id)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	moves = alignMoves(ids, moves, constraints)
	working := vertices.Clone()
	for id, p := range moves {
		working[id] = p
	}

	updates := models.Positions{}
	own := make(map[string]bool, len(ids))
	for _, id := range ids {
		// текущая позиция вершины исходная, остальные участники уже на новых местах
		table := working.Clone()
		table[id] = vertices[id]

		res := SolveNodeMove(id, moves[id], table, constraints)
		if res.Blocked {
			return blocked("%s: %s", id, res.Reason)
		}
		for other, p := range res.Updates {
			if other == id {
				updates[other] = p
				own[other] = true
				continue
			}
			// собственная позиция участника группы важнее распространенной
			if !own[other] {
				if _, moving := moves[other]; !moving {
					updates[other] = p
				}
			}
		}
	}

	if reason, ok := lockAxes(ids, vertices, updates, constraints); !ok {
		return blocked("%s", reason)
	}
	if reason, ok := checkDistances(ids, vertices, updates, constraints); !ok {
		return blocked("%s", reason)
	}
	return MoveResult{Updates: updates}
}

// axisOf: координата, общая для участников ограничения, и ее установка.
func axisOf(c models.Constraint) (func(models.Point) float64, func(models.Point, float64) models.Point, bool) {
	switch c.Type {
	case models.ConstraintHorizontal:
		return pointY, withY, true
	case models.ConstraintVertical:
		return pointX, withX, true
	}
	return nil, nil, false
}

func pointX(p models.Point) float64 { return p.X }

func pointY(p models.Point) float64 { return p.Y }

func withX(p models.Point, v float64) models.Point {
	p.X = v
	return p
}

func withY(p models.Point, v float64) models.Point {
	p.Y = v
	return p
}

// leader: перемещаемый участник ограничения с наименьшим id.
func leader(ids []string, c models.Constraint) (string, bool) {
	for _, id := range ids {
		if c.Involves(id) {
			return id, true
		}
	}
	return "", false
}

// alignMoves выравнивает предложенные позиции участников одной группы по общей оси.
func alignMoves(ids []string, moves models.Positions, constraints []models.Constraint) models.Positions {
	aligned := moves.Clone()
	for _, c := range enabled(constraints) {
		get, set, ok := axisOf(c)
		if !ok {
			continue
		}
		lead, ok := leader(ids, c)
		if !ok {
			continue
		}
		v := get(aligned[lead])
		for _, id := range c.Nodes {
			if p, moving := aligned[id]; moving {
				aligned[id] = set(p, v)
			}
		}
	}
	return aligned
}

// lockAxes приводит всех участников затронутых групп к координате лидера.
func lockAxes(ids []string, vertices, updates models.Positions, constraints []models.Constraint) (string, bool) {
	for _, c := range enabled(constraints) {
		get, set, ok := axisOf(c)
		if !ok {
			continue
		}
		lead, ok := leader(ids, c)
		if !ok {
			continue
		}
		v := get(updates[lead])
		for _, id := range c.Nodes {
			p, ok := updates[id]
			if !ok {
				if p, ok = vertices[id]; !ok {
					return fmt.Sprintf("%s constraint %q references missing vertex %q", c.Type, c.ID, id), false
				}
			}
			if graph.AlmostEqual(get(p), v) {
				continue
			}
			if IsFixed(id, constraints) {
				return fmt.Sprintf("%s constraint %q would move fixed node %q", c.Type, c.ID, id), false
			}
			updates[id] = set(p, v)
		}
	}
	return "", true
}

// checkDistances проверяет, что после всех шагов вершины остались на своих окружностях.
func checkDistances(nodes []string, vertices, updates models.Positions, constraints []models.Constraint) (string, bool) {
	at := func(id string) (models.Point, bool) {
		if p, ok := updates[id]; ok {
			return p, true
		}
		p, ok := vertices[id]
		return p, ok
	}

	for _, c := range enabled(constraints) {
		if c.Type != models.ConstraintDistance || len(c.Nodes) != 2 || c.Value == nil {
			continue
		}
		involved := false
		for _, id := range nodes {
			if c.Involves(id) {
				involved = true
				break
			}
		}
		if !involved {
			continue
		}
		a, okA := at(c.Nodes[0])
		b, okB := at(c.Nodes[1])
		if !okA || !okB {
			continue
		}
		if math.Abs(graph.Distance(a, b)-*c.Value) > graph.Precision+1e-6 {
			return fmt.Sprintf("distance constraint %q conflicts with an axis constraint", c.ID), false
		}
	}
	return "", true
}

// ============================================================
// Constraint helpers
// ============================================================

func enabled(constraints []models.Constraint) []models.Constraint {
	out := make([]models.Constraint, 0, len(constraints))
	for _, c := range constraints {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// IsFixed сообщает, закреплена ли вершина включенным ограничением fixed.
func IsFixed(nodeID string, constraints []models.Constraint) bool {
	for _, c := range enabled(constraints) {
		if c.Type == models.ConstraintFixed && c.Involves(nodeID) {
			return true
		}
	}
	return false
}

// applyDistance проецирует вершину на окружность вокруг второго конца.
func applyDistance(nodeID string, proposed models.Point, vertices models.Positions, constraints []models.Constraint) (models.Point, *MoveResult) {
	target := proposed
	var applied []models.Constraint

	for _, c := range enabled(constraints) {
		if c.Type != models.ConstraintDistance || len(c.Nodes) != 2 || !c.Involves(nodeID) || c.Value == nil {
			continue
		}

		otherID := c.Nodes[0]
		if otherID == nodeID {
			otherID = c.Nodes[1]
		}
		anchor, ok := vertices[otherID]
		if !ok {
			res := blocked("distance constraint %q references missing vertex %q", c.ID, otherID)
			return target, &res
		}

		d := graph.Distance(target, anchor)
		if d < 1e-9 {
			res := blocked("distance constraint %q: cannot project onto a coincident point", c.ID)
			return target, &res
		}

		scale := *c.Value / d
		target = models.Point{
			X: anchor.X + (target.X-anchor.X)*scale,
			Y: anchor.Y + (target.Y-anchor.Y)*scale,
		}
		applied = append(applied, c)
	}

	// несколько расстояний на одной вершине применяются по очереди; итог должен удовлетворять всем
	for _, c := range applied {
		otherID := c.Nodes[0]
		if otherID == nodeID {
			otherID = c.Nodes[1]
		}
		if d := graph.Distance(target, vertices[otherID]); d-*c.Value > graph.Precision || *c.Value-d > graph.Precision {
			res := blocked("distance constraint %q conflicts with another distance constraint", c.ID)
			return target, &res
		}
	}
	return target, nil
}

// groupAxis возвращает общую координату группы по зафиксированной оси.
func groupAxis(c models.Constraint, nodeID string, vertices models.Positions, axis func(models.Point) float64, fallback float64) float64 {
	for _, id := range c.Nodes {
		if id == nodeID {
			continue
		}
		if p, ok := vertices[id]; ok {
			return axis(p)
		}
	}
	return fallback
}

// propagate сдвигает остальных участников группы. Закрепленный участник блокирует сдвиг.
func propagate(c models.Constraint, nodeID string, vertices models.Positions, constraints []models.Constraint, updates models.Positions, move func(models.Point) models.Point) (string, bool) {
	for _, id := range c.Nodes {
		if id == nodeID {
			continue
		}
		p, ok := vertices[id]
		if !ok {
			return fmt.Sprintf("%s constraint %q references missing vertex %q", c.Type, c.ID, id), false
		}
		if prev, ok := updates[id]; ok {
			p = prev
		}
		next := move(p)
		if graph.SamePoint(next, p) {
			continue
		}
		if IsFixed(id, constraints) {
			return fmt.Sprintf("%s constraint %q would move fixed node %q", c.Type, c.ID, id), false
		}
		updates[id] = next
	}
	return "", true
}
