package expr

import (
	"fmt"
	"math"
	"sync"
)

// ============================================================
// Compiled expressions
// ============================================================

// Program: выражение, разобранное один раз. Ссылки на параметры
// привязаны к слотам таблицы Refs.
type Program struct {
	Source string
	// Refs: уникальные имена параметров в порядке появления.
	Refs []string
	root node
}

type node interface {
	eval(slots []float64) float64
}

type numberNode float64

type paramNode int

type negNode struct {
	x node
}

type binaryNode struct {
	op   byte
	l, r node
}

type callNode struct {
	fn   func(args []float64) float64
	args []node
}

func (n numberNode) eval([]float64) float64 { return float64(n) }

func (n paramNode) eval(slots []float64) float64 { return slots[n] }

func (n negNode) eval(slots []float64) float64 { return -n.x.eval(slots) }

func (n binaryNode) eval(slots []float64) float64 {
	l, r := n.l.eval(slots), n.r.eval(slots)
	switch n.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	default:
		return l / r
	}
}

func (n callNode) eval(slots []float64) float64 {
	args := make([]float64, len(n.args))
	for i, a := range n.args {
		args[i] = a.eval(slots)
	}
	return n.fn(args)
}

// Compile разбирает выражение, используя кэш по исходному тексту.
func Compile(src string) (*Program, error) {
	if p, ok := programs.get(src); ok {
		return p, nil
	}

	ast, err := parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	c := &compiler{slots: map[string]int{}}
	root, err := c.expr(ast)
	if err != nil {
		return nil, err
	}

	p := &Program{Source: src, Refs: c.refs, root: root}
	programs.put(src, p)
	return p, nil
}

// Eval вычисляет программу; отсутствующий параметр или нечисловой результат дают ошибку.
func (p *Program) Eval(params map[string]float64) (float64, error) {
	slots := make([]float64, len(p.Refs))
	for i, name := range p.Refs {
		v, ok := params[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
		slots[i] = v
	}

	v := p.root.eval(slots)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotFinite, v)
	}
	return v, nil
}

// ============================================================
// AST → nodes
// ============================================================

type compiler struct {
	refs  []string
	slots map[string]int
}

func (c *compiler) expr(a *exprAST) (node, error) {
	left, err := c.term(a.Head)
	if err != nil {
		return nil, err
	}
	for _, t := range a.Tail {
		right, err := c.term(t.Term)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.Op[0], l: left, r: right}
	}
	return left, nil
}

func (c *compiler) term(a *termAST) (node, error) {
	left, err := c.unary(a.Head)
	if err != nil {
		return nil, err
	}
	for _, f := range a.Tail {
		right, err := c.unary(f.Unary)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: f.Op[0], l: left, r: right}
	}
	return left, nil
}

func (c *compiler) unary(a *unaryAST) (node, error) {
	if a.Unary != nil {
		x, err := c.unary(a.Unary)
		if err != nil {
			return nil, err
		}
		if a.Op == "-" {
			return negNode{x: x}, nil
		}
		return x, nil
	}
	return c.primary(a.Primary)
}

func (c *compiler) primary(a *primaryAST) (node, error) {
	switch {
	case a.Number != nil:
		return numberNode(*a.Number), nil
	case a.Param != nil:
		return c.param(*a.Param), nil
	case a.Math != nil:
		return c.math(a.Math)
	case a.Group != nil:
		return c.expr(a.Group)
	}
	return nil, ErrSyntax
}

func (c *compiler) param(name string) node {
	slot, ok := c.slots[name]
	if !ok {
		slot = len(c.refs)
		c.slots[name] = slot
		c.refs = append(c.refs, name)
	}
	return paramNode(slot)
}

func (c *compiler) math(a *mathAST) (node, error) {
	if v, ok := mathConsts[a.Name]; ok {
		if a.Call {
			return nil, fmt.Errorf("%w: Math.%s is not a function", ErrForbidden, a.Name)
		}
		return numberNode(v), nil
	}

	fn, ok := mathFuncs[a.Name]
	if !ok {
		return nil, fmt.Errorf("%w: Math.%s", ErrForbidden, a.Name)
	}
	if !a.Call {
		return nil, fmt.Errorf("%w: Math.%s must be called", ErrSyntax, a.Name)
	}
	if fn.arity >= 0 && len(a.Args) != fn.arity {
		return nil, fmt.Errorf("%w: Math.%s expects %d argument(s), got %d", ErrArity, a.Name, fn.arity, len(a.Args))
	}
	if fn.arity < 0 && len(a.Args) == 0 {
		return nil, fmt.Errorf("%w: Math.%s expects at least one argument", ErrArity, a.Name)
	}

	args := make([]node, 0, len(a.Args))
	for _, arg := range a.Args {
		n, err := c.expr(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	return callNode{fn: fn.fn, args: args}, nil
}

// ============================================================
// Math allow-list
// ============================================================

type mathFunc struct {
	arity int // -1: произвольное число аргументов (не меньше одного)
	fn    func(args []float64) float64
}

func unary(f func(float64) float64) mathFunc {
	return mathFunc{arity: 1, fn: func(a []float64) float64 { return f(a[0]) }}
}

func binary(f func(float64, float64) float64) mathFunc {
	return mathFunc{arity: 2, fn: func(a []float64) float64 { return f(a[0], a[1]) }}
}

var mathConsts = map[string]float64{
	"PI": math.Pi,
	"E":  math.E,
}

var mathFuncs = map[string]mathFunc{
	"sqrt":  unary(math.Sqrt),
	"cbrt":  unary(math.Cbrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"trunc": unary(math.Trunc),
	"round": unary(func(x float64) float64 { return math.Floor(x + 0.5) }),
	"sign": unary(func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return x
	}),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"log":   unary(math.Log),
	"exp":   unary(math.Exp),
	"pow":   binary(math.Pow),
	"atan2": binary(math.Atan2),
	"min": {arity: -1, fn: func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {arity: -1, fn: func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
	"hypot": {arity: -1, fn: func(a []float64) float64 {
		var sum float64
		for _, v := range a {
			sum += v * v
		}
		return math.Sqrt(sum)
	}},
}

// ============================================================
// Cache
// ============================================================

const maxCachedPrograms = 4096

type programCache struct {
	mu    sync.Mutex
	items map[string]*Program
}

var programs = &programCache{items: make(map[string]*Program)}

func (c *programCache) get(src string) (*Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.items[src]
	return p, ok
}

func (c *programCache) put(src string, p *Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= maxCachedPrograms {
		c.items = make(map[string]*Program)
	}
	c.items[src] = p
}
