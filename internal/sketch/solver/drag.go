package solver

import (
	"errors"
	"fmt"

	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Drag gesture
// ============================================================

type DragState string

const (
	DragIdle     DragState = "idle"
	DragDragging DragState = "dragging"
	DragReleased DragState = "released"
)

type DragOutcome string

const (
	OutcomeCommitted DragOutcome = "committed"
	OutcomeReverted  DragOutcome = "reverted"
	OutcomeCancelled DragOutcome = "cancelled"
)

var ErrDragState = errors.New("invalid drag state")

// Drag описывает один жест перетаскивания: idle → dragging → released.
// Пока жест не отпущен, результаты только для предпросмотра.
type Drag struct {
	nodes       []string
	origin      models.Positions
	vertices    models.Positions
	constraints []models.Constraint
	state       DragState
	outcome     DragOutcome
	last        MoveResult
}

// NewDrag запоминает исходные позиции перетаскиваемых вершин.
func NewDrag(nodes []string, vertices models.Positions, constraints []models.Constraint) (*Drag, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes to drag", ErrDragState)
	}
	origin := make(models.Positions, len(nodes))
	for _, id := range nodes {
		p, ok := vertices[id]
		if !ok {
			return nil, fmt.Errorf("unknown node %q", id)
		}
		origin[id] = p
	}

	return &Drag{
		nodes:       append([]string(nil), nodes...),
		origin:      origin,
		vertices:    vertices.Clone(),
		constraints: constraints,
		state:       DragIdle,
	}, nil
}

func (d *Drag) State() DragState { return d.state }
func (d *Drag) Outcome() DragOutcome { return d.outcome }
func (d *Drag) Nodes() []string { return d.nodes }
func (d *Drag) Origin() models.Positions { return d.origin.Clone() }
func (d *Drag) Preview() MoveResult { return d.last }

// Move передает промежуточную позицию: idle → dragging, изменений в эскизе нет.
func (d *Drag) Move(proposed models.Positions) (MoveResult, error) {
	if d.state == DragReleased {
		return MoveResult{}, fmt.Errorf("%w: gesture already released", ErrDragState)
	}
	d.state = DragDragging
	d.last = d.solve(proposed)
	return d.last, nil
}

// Release финально проверяет позицию. При Committed обновления можно применять,
// при Reverted вызывающий возвращает вершины в Origin.
func (d *Drag) Release(proposed models.Positions) (DragOutcome, MoveResult, error) {
	if d.state != DragDragging {
		return "", MoveResult{}, fmt.Errorf("%w: release from %s", ErrDragState, d.state)
	}
	d.state = DragReleased
	d.last = d.solve(proposed)
	if d.last.Blocked {
		d.outcome = OutcomeReverted
	} else {
		d.outcome = OutcomeCommitted
	}
	return d.outcome, d.last, nil
}

// Cancel прерывает жест до отпускания (например, по Escape).
func (d *Drag) Cancel() error {
	if d.state == DragReleased {
		return fmt.Errorf("%w: gesture already released", ErrDragState)
	}
	d.state = DragReleased
	d.outcome = OutcomeCancelled
	d.last = MoveResult{Updates: models.Positions{}}
	return nil
}

func (d *Drag) solve(proposed models.Positions) MoveResult {
	moves := make(models.Positions, len(d.nodes))
	for _, id := range d.nodes {
		p, ok := proposed[id]
		if !ok {
			p = d.origin[id]
		}
		moves[id] = p
	}
	if len(moves) == 1 {
		id := d.nodes[0]
		return SolveNodeMove(id, moves[id], d.vertices, d.constraints)
	}
	return SolveGroupMove(moves, d.vertices, d.constraints)
}
