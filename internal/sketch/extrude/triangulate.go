package extrude

import (
	"math"
	"sort"

	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Triangulation (hole bridging + ear clipping)
// ============================================================

const areaEpsilon = 1e-10

func cross(o, a, b models.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// triangulate режет область outer минус holes на треугольники.
// Индексы относятся к pts; outer обходится против часовой, holes по часовой.
// forced: число вынужденных отсечений на самопересекающейся области.
func triangulate(pts []models.Point, outer []int, holes [][]int) (tris [][3]int, forced int) {
	poly := bridgeHoles(pts, outer, holes)
	return earClip(pts, poly)
}

// bridgeHoles вклеивает каждое отверстие в внешний контур через мост
// от самой правой точки отверстия к ближайшей видимой вершине.
func bridgeHoles(pts []models.Point, outer []int, holes [][]int) []int {
	type hole struct {
		ring      []int
		rightmost int
	}
	ordered := make([]hole, 0, len(holes))
	for _, ring := range holes {
		if len(ring) < 3 {
			continue
		}
		m := 0
		for k, idx := range ring {
			if pts[idx].X > pts[ring[m]].X {
				m = k
			}
		}
		ordered = append(ordered, hole{ring: ring, rightmost: m})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return pts[ordered[i].ring[ordered[i].rightmost]].X > pts[ordered[j].ring[ordered[j].rightmost]].X
	})

	poly := append([]int(nil), outer...)
	for hi, h := range ordered {
		mIdx := h.ring[h.rightmost]
		m := pts[mIdx]

		obstacles := make([][]int, 0, len(ordered)-hi+1)
		obstacles = append(obstacles, poly)
		for _, rest := range ordered[hi:] {
			obstacles = append(obstacles, rest.ring)
		}

		best, fallback := -1, -1
		bestDist, fallbackDist := math.Inf(1), math.Inf(1)
		for k, vi := range poly {
			v := pts[vi]
			if v.X < m.X-1e-9 {
				continue
			}
			d := graph.Distance(m, v)
			if d < fallbackDist {
				fallback, fallbackDist = k, d
			}
			if d < bestDist && visible(pts, m, v, obstacles) {
				best, bestDist = k, d
			}
		}
		if best < 0 {
			best = fallback
		}
		if best < 0 {
			best = 0
		}

		bridged := make([]int, 0, len(poly)+len(h.ring)+2)
		bridged = append(bridged, poly[:best+1]...)
		bridged = append(bridged, h.ring[h.rightmost:]...)
		bridged = append(bridged, h.ring[:h.rightmost]...)
		bridged = append(bridged, mIdx, poly[best])
		bridged = append(bridged, poly[best+1:]...)
		poly = bridged
	}
	return poly
}

// visible проверяет, что отрезок a-b не пересекает ни одно ребро.
func visible(pts []models.Point, a, b models.Point, rings [][]int) bool {
	for _, ring := range rings {
		for i := range ring {
			p, q := pts[ring[i]], pts[ring[(i+1)%len(ring)]]
			if graph.SamePoint(p, a) || graph.SamePoint(p, b) || graph.SamePoint(q, a) || graph.SamePoint(q, b) {
				continue
			}
			if segmentsCross(a, b, p, q) {
				return false
			}
		}
	}
	return true
}

func segmentsCross(a, b, p, q models.Point) bool {
	d1 := cross(p, q, a)
	d2 := cross(p, q, b)
	d3 := cross(a, b, p)
	d4 := cross(a, b, q)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func earClip(pts []models.Point, poly []int) (tris [][3]int, forced int) {
	idx := append([]int(nil), poly...)

	for len(idx) > 3 {
		n := len(idx)
		clipped := false

		for i := 0; i < n; i++ {
			a, b, c := idx[(i+n-1)%n], idx[i], idx[(i+1)%n]
			cr := cross(pts[a], pts[b], pts[c])
			if math.Abs(cr) < areaEpsilon {
				// вершина на прямой: убираем без треугольника
				idx = append(idx[:i], idx[i+1:]...)
				clipped = true
				break
			}
			if cr < 0 || containsVertex(pts, idx, a, b, c) {
				continue
			}
			tris = append(tris, [3]int{a, b, c})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}

		if !clipped {
			best, bestCr := 0, math.Inf(-1)
			for i := 0; i < n; i++ {
				cr := cross(pts[idx[(i+n-1)%n]], pts[idx[i]], pts[idx[(i+1)%n]])
				if cr > bestCr {
					best, bestCr = i, cr
				}
			}
			if bestCr > 0 {
				tris = append(tris, [3]int{idx[(best+n-1)%n], idx[best], idx[(best+1)%n]})
			}
			idx = append(idx[:best], idx[best+1:]...)
			forced++
		}
	}

	if len(idx) == 3 && cross(pts[idx[0]], pts[idx[1]], pts[idx[2]]) > areaEpsilon {
		tris = append(tris, [3]int{idx[0], idx[1], idx[2]})
	}
	return tris, forced
}

// containsVertex проверяет, попадает ли другая вершина в треугольник abc.
// Точки, совпадающие с вершинами треугольника (концы мостов), не считаются.
func containsVertex(pts []models.Point, idx []int, a, b, c int) bool {
	pa, pb, pc := pts[a], pts[b], pts[c]
	for _, j := range idx {
		if j == a || j == b || j == c {
			continue
		}
		p := pts[j]
		if graph.SamePoint(p, pa) || graph.SamePoint(p, pb) || graph.SamePoint(p, pc) {
			continue
		}
		if cross(pa, pb, p) >= 0 && cross(pb, pc, p) >= 0 && cross(pc, pa, p) >= 0 {
			return true
		}
	}
	return false
}
