package expr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ============================================================
// Grammar
// ============================================================

// Разрешены только числа, params.<name>, Math.<name>, + - * / и скобки.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
	{Name: "Punct", Pattern: `[-+*/(),.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var exprParser = participle.MustBuild[exprAST](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
)

type exprAST struct {
	Pos  lexer.Position
	Head *termAST  `parser:"@@"`
	Tail []*opTerm `parser:"@@*"`
}

type opTerm struct {
	Op   string   `parser:"@('+' | '-')"`
	Term *termAST `parser:"@@"`
}

type termAST struct {
	Head *unaryAST   `parser:"@@"`
	Tail []*opFactor `parser:"@@*"`
}

type opFactor struct {
	Op    string    `parser:"@('*' | '/')"`
	Unary *unaryAST `parser:"@@"`
}

type unaryAST struct {
	Op      string      `parser:"  ( @('-' | '+')"`
	Unary   *unaryAST   `parser:"    @@ )"`
	Primary *primaryAST `parser:"| @@"`
}

type primaryAST struct {
	Number *float64 `parser:"  @Number"`
	Param  *string  `parser:"| 'params' '.' @Ident"`
	Math   *mathAST `parser:"| @@"`
	Group  *exprAST `parser:"| '(' @@ ')'"`
}

type mathAST struct {
	Pos  lexer.Position
	Name string     `parser:"'Math' '.' @Ident"`
	Call bool       `parser:"( @'('"`
	Args []*exprAST `parser:"  ( @@ ( ',' @@ )* )? ')' )?"`
}

func parse(src string) (*exprAST, error) {
	return exprParser.ParseString("", src)
}
