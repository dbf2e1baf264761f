package service

import (
	"testing"

	"sketch-engine/internal/sketch/models"
	"sketch-engine/internal/sketch/solver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDrag(t *testing.T) (*solver.Drag, models.Positions) {
	t.Helper()
	pos := models.Positions{"a": {X: 0, Y: 0}, "b": {X: 10, Y: 0}}
	d, err := solver.NewDrag([]string{"a"}, pos, nil)
	require.NoError(t, err)
	return d, pos
}

func TestDragSessions(t *testing.T) {
	m := NewDragSessions()
	d, pos := newDrag(t)

	s := m.Start("sketch-1", pos, d)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, d, got.Drag)
	assert.Equal(t, "sketch-1", got.SketchID)

	fin, ok := m.Finish(s.ID)
	require.True(t, ok)
	assert.Same(t, s, fin)
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	_, ok = m.Finish(s.ID)
	assert.False(t, ok)
}

func TestDragSessions_DropSketch(t *testing.T) {
	m := NewDragSessions()
	d1, pos := newDrag(t)
	d2, _ := newDrag(t)
	d3, _ := newDrag(t)

	m.Start("s1", pos, d1)
	m.Start("s1", pos, d2)
	keep := m.Start("s2", pos, d3)

	assert.Equal(t, 2, m.DropSketch("s1"))
	assert.Equal(t, 1, m.Len())
	_, ok := m.Get(keep.ID)
	assert.True(t, ok)
}
