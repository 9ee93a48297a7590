// Package runner executes generated program text against a hook table. The
// genetic engine only depends on the Runner interface, so the built-in
// restricted interpreter can be swapped for another evaluator without touching
// the evolution machinery.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrSyntax  = errors.New("program syntax error")
	ErrRuntime = errors.New("program runtime error")
)

// Kind names the primitive type a generated program may request from the
// genotype at run time.
type Kind string

const (
	KindStr   Kind = "str"
	KindInt   Kind = "int"
	KindFloat Kind = "float"
	KindBool  Kind = "bool"
)

// Hooks is the table of reserved callbacks exposed to a generated program.
// RequestValue draws a codon against the live cursor and resolves a
// nonterminal to a primitive; ReportFitness records the program's final score.
type Hooks struct {
	RequestValue  func(name string, kind Kind) (Value, error)
	ReportFitness func(value float64)
}

// Runner executes generated program text. Implementations must treat the
// program as untrusted in the sense that any failure is returned as an error
// rather than a panic.
type Runner interface {
	Run(ctx context.Context, program string, hooks Hooks) error
}

type valueTag int

const (
	tagNil valueTag = iota
	tagNum
	tagStr
	tagBool
)

// Value is the single runtime value representation of the interpreter.
// Numbers are always float64; int requests are integral floats.
type Value struct {
	tag valueTag
	num float64
	str string
	b   bool
}

func Nil() Value          { return Value{} }
func Num(f float64) Value { return Value{tag: tagNum, num: f} }
func Str(s string) Value  { return Value{tag: tagStr, str: s} }
func Bool(b bool) Value   { return Value{tag: tagBool, b: b} }

func (v Value) IsNum() bool  { return v.tag == tagNum }
func (v Value) IsStr() bool  { return v.tag == tagStr }
func (v Value) IsBool() bool { return v.tag == tagBool }

// Float coerces the value to float64; booleans and strings are errors.
func (v Value) Float() (float64, error) {
	if v.tag != tagNum {
		return 0, fmt.Errorf("%w: expected number, have %s", ErrRuntime, v.TypeName())
	}
	return v.num, nil
}

func (v Value) Text() string { return v.str }

func (v Value) TypeName() string {
	switch v.tag {
	case tagNum:
		return "number"
	case tagStr:
		return "string"
	case tagBool:
		return "boolean"
	default:
		return "nil"
	}
}

// Truthy follows numeric truthiness: false for zero, empty string, nil.
func (v Value) Truthy() bool {
	switch v.tag {
	case tagNum:
		return v.num != 0
	case tagStr:
		return v.str != ""
	case tagBool:
		return v.b
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.tag {
	case tagNum:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case tagStr:
		return v.str
	case tagBool:
		return strconv.FormatBool(v.b)
	default:
		return "nil"
	}
}

// EvalExpression evaluates a standalone expression with no variables or hooks
// in scope. The genotype uses it as the literal-expression fallback when
// coercing runtime-resolved values.
func EvalExpression(src string) (Value, error) {
	toks, err := lex(src)
	if err != nil {
		return Nil(), err
	}
	p := &parser{toks: toks}
	expr, err := p.parseExpr()
	if err != nil {
		return Nil(), err
	}
	if !p.atEnd() {
		return Nil(), fmt.Errorf("%w: trailing input after expression", ErrSyntax)
	}
	ev := &evaluator{env: map[string]Value{}}
	return ev.eval(context.Background(), expr)
}
