package expr

import (
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"

	"sketch-engine/internal/sketch/models"
)

// ============================================================
// Evaluator
// ============================================================

// Diagnostic описывает выражение, вместо которого подставлен 0.
type Diagnostic struct {
	Expression string `json:"expression"`
	Message    string `json:"message"`
}

// Evaluator вычисляет значения и копит диагностику. Не потокобезопасен.
type Evaluator struct {
	diagnostics []Diagnostic
}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate возвращает число для литерала или выражения. Ошибки не
// пробрасываются: результат 0, причина попадает в Diagnostics.
func (e *Evaluator) Evaluate(v models.Value, params map[string]float64) float64 {
	if f, ok := v.Literal(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			e.report(v.String(), fmt.Errorf("%w: %v", ErrNotFinite, f))
			return 0
		}
		return f
	}

	prog, err := Compile(v.Expr)
	if err != nil {
		e.report(v.Expr, err)
		return 0
	}

	f, err := prog.Eval(params)
	if err != nil {
		e.report(v.Expr, err)
		return 0
	}
	return f
}

// EvaluateBatch вычисляет каждое выражение таблицы.
func (e *Evaluator) EvaluateBatch(exprs map[string]models.Value, params map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(exprs))
	for name, v := range exprs {
		out[name] = e.Evaluate(v, params)
	}
	return out
}

func (e *Evaluator) Diagnostics() []Diagnostic {
	return e.diagnostics
}

func (e *Evaluator) report(src string, err error) {
	log.Printf("[EXPR] %q evaluated to 0: %v", src, err)
	e.diagnostics = append(e.diagnostics, Diagnostic{Expression: src, Message: err.Error()})
}

// Evaluate вычисляет значение без сбора диагностики.
func Evaluate(v models.Value, params map[string]float64) float64 {
	return NewEvaluator().Evaluate(v, params)
}

// EvaluateString вычисляет строковое выражение.
func EvaluateString(src string, params map[string]float64) float64 {
	return Evaluate(models.Expr(src), params)
}

func EvaluateBatch(exprs map[string]models.Value, params map[string]float64) map[string]float64 {
	return NewEvaluator().EvaluateBatch(exprs, params)
}

// ============================================================
// Validation
// ============================================================

type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

var allowedChars = regexp.MustCompile(`^[\w\s.+\-*/(),]*$`)

// Validate проверяет выражение без реальных значений параметров:
// каждая ссылка подставляется как 1.
func Validate(src string, available []string) ValidationResult {
	src = strings.TrimSpace(src)
	if src == "" {
		return ValidationResult{Error: "expression is empty"}
	}
	if _, ok := models.Expr(src).Literal(); ok {
		return ValidationResult{Valid: true}
	}
	if !allowedChars.MatchString(src) {
		return ValidationResult{Error: "expression contains forbidden characters"}
	}

	prog, err := Compile(src)
	if err != nil {
		return ValidationResult{Error: err.Error()}
	}

	known := make(map[string]bool, len(available))
	for _, name := range available {
		known[name] = true
	}

	placeholders := make(map[string]float64, len(prog.Refs))
	for _, name := range prog.Refs {
		if !known[name] {
			return ValidationResult{Error: fmt.Sprintf("unknown parameter: %s", name)}
		}
		placeholders[name] = 1
	}

	if _, err := prog.Eval(placeholders); err != nil {
		return ValidationResult{Error: err.Error()}
	}
	return ValidationResult{Valid: true}
}

// References возвращает параметры, на которые ссылается значение.
// Неразбираемое выражение ссылок не имеет: оно все равно вычисляется в 0.
func References(v models.Value) []string {
	if _, ok := v.Literal(); ok {
		return nil
	}
	prog, err := Compile(v.Expr)
	if err != nil {
		return nil
	}
	return prog.Refs
}
