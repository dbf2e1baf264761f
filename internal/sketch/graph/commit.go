package graph

import (
	"log"
	"math"
	"sort"

	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Commit
// ============================================================

// Commit применяет принятые обновления к копии документа.
//
// Координата меняется, только если новое значение отличается от текущего больше
// чем на половину рабочей точности: иначе выражение сохраняется. Координата вида
// "params.<name>" с литеральным параметром переписывает сам параметр.
func Commit(doc *models.Document, current, updates models.Positions) *models.Document {
	out := doc.Clone()

	ids := make([]string, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		def, ok := out.Geometry.Vertices[id]
		if !ok {
			log.Printf("[SKETCH] commit skipped unknown vertex %q", id)
			continue
		}
		next := updates[id]
		cur := current[id]

		if changed(cur.X, next.X) {
			def.X = writeBack(out, def.X, next.X)
		}
		if changed(cur.Y, next.Y) {
			def.Y = writeBack(out, def.Y, next.Y)
		}
		out.Geometry.Vertices[id] = def
	}
	return out
}

func changed(cur, next float64) bool {
	return math.Abs(cur-next) > Precision/2+1e-9
}

func writeBack(doc *models.Document, def models.Value, v float64) models.Value {
	if name, ok := models.ParameterName(def); ok {
		if p, exists := doc.Params[name]; exists && !p.IsExpr() {
			doc.Params[name] = models.Num(v)
			return def
		}
	}
	return models.Num(v)
}
