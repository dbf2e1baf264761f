package service

import (
	"sync"

	"sketch-engine/internal/sketch/models"
	"sketch-engine/internal/sketch/solver"

	"github.com/google/uuid"
)

// ============================================================
// Drag Sessions
// ============================================================

// DragSession: открытый жест перетаскивания над сохраненным эскизом.
// Positions хранит координаты эскиза на момент начала жеста.
// Сам Drag не потокобезопасен: обращения к нему идут под Lock.
type DragSession struct {
	sync.Mutex

	ID        string
	SketchID  string
	Positions models.Positions
	Drag      *solver.Drag
}

type DragSessions struct {
	mu    sync.Mutex
	drags map[string]*DragSession
}

func NewDragSessions() *DragSessions {
	return &DragSessions{
		drags: make(map[string]*DragSession),
	}
}

func (m *DragSessions) Start(sketchID string, positions models.Positions, drag *solver.Drag) *DragSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &DragSession{
		ID:        uuid.NewString(),
		SketchID:  sketchID,
		Positions: positions,
		Drag:      drag,
	}
	m.drags[s.ID] = s
	return s
}

func (m *DragSessions) Get(id string) (*DragSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.drags[id]
	return s, ok
}

// Finish забирает жест из хранилища: отпущенный или отмененный жест больше не нужен.
func (m *DragSessions) Finish(id string) (*DragSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.drags[id]
	if ok {
		delete(m.drags, id)
	}
	return s, ok
}

// DropSketch закрывает все жесты удаленного эскиза.
func (m *DragSessions) DropSketch(sketchID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.drags {
		if s.SketchID == sketchID {
			delete(m.drags, id)
			n++
		}
	}
	return n
}

func (m *DragSessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drags)
}
