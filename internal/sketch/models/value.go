package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ============================================================
// Literal-or-expression value
// ============================================================

// Value хранит координату или параметр: число либо строковое выражение.
type Value struct {
	Num  float64
	Expr string
}

// Num создает литерал.
func Num(v float64) Value {
	return Value{Num: v}
}

// Expr создает выражение вида "params.width / 2".
func Expr(src string) Value {
	return Value{Expr: strings.TrimSpace(src)}
}

// IsExpr сообщает, задано ли значение строкой.
func (v Value) IsExpr() bool {
	return v.Expr != ""
}

// Literal возвращает число, если значение не требует вычисления.
// Строка, которая целиком является конечным числом, тоже считается литералом;
// "NaN" и "Inf" остаются выражениями.
func (v Value) Literal() (float64, bool) {
	if !v.IsExpr() {
		return v.Num, true
	}
	f, err := strconv.ParseFloat(v.Expr, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (v Value) String() string {
	if v.IsExpr() {
		return v.Expr
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsExpr() {
		return json.Marshal(v.Expr)
	}
	return json.Marshal(v.Num)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Expr(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("value must be a number or an expression string: %w", err)
	}
	*v = Num(f)
	return nil
}
