package expr

import (
	"fmt"
	"sort"
	"strings"

	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Parameter dependency graph
// ============================================================

type CycleResult struct {
	Circular bool     `json:"circular"`
	Cycle    []string `json:"cycle,omitempty"`
}

const (
	unvisited = iota
	onStack
	done
)

type depGraph struct {
	names []string
	edges map[string][]string
}

func buildDepGraph(defs map[string]models.Value) depGraph {
	g := depGraph{
		names: make([]string, 0, len(defs)),
		edges: make(map[string][]string, len(defs)),
	}
	for name := range defs {
		g.names = append(g.names, name)
	}
	sort.Strings(g.names)

	for _, name := range g.names {
		for _, ref := range References(defs[name]) {
			// ссылки на неизвестные параметры проверяет валидация
			if _, ok := defs[ref]; ok {
				g.edges[name] = append(g.edges[name], ref)
			}
		}
	}
	return g
}

// DetectCircularDependencies ищет цикл поиском в глубину со стеком рекурсии.
// Найденный цикл замкнут: первое имя повторяется в конце.
func DetectCircularDependencies(defs map[string]models.Value) CycleResult {
	g := buildDepGraph(defs)
	state := make(map[string]int, len(g.names))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = onStack
		stack = append(stack, name)

		for _, next := range g.edges[name] {
			switch state[next] {
			case onStack:
				for i, s := range stack {
					if s == next {
						cycle := append([]string{}, stack[i:]...)
						return append(cycle, next)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, name := range g.names {
		if state[name] != unvisited {
			continue
		}
		if cycle := visit(name); cycle != nil {
			return CycleResult{Circular: true, Cycle: cycle}
		}
	}
	return CycleResult{}
}

// ResolveParameters вычисляет таблицу параметров в порядке зависимостей.
func ResolveParameters(defs map[string]models.Value) (map[string]float64, []Diagnostic, error) {
	if res := DetectCircularDependencies(defs); res.Circular {
		return nil, nil, fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(res.Cycle, " -> "))
	}

	g := buildDepGraph(defs)
	ev := NewEvaluator()
	values := make(map[string]float64, len(defs))
	visited := make(map[string]bool, len(defs))

	var resolve func(name string)
	resolve = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range g.edges[name] {
			resolve(dep)
		}
		values[name] = ev.Evaluate(defs[name], values)
	}

	for _, name := range g.names {
		resolve(name)
	}
	return values, ev.Diagnostics(), nil
}
