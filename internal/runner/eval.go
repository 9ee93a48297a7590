package runner

import (
	"context"
	"fmt"
	"math"
)

// Interpreter is the built-in restricted evaluator for generated programs.
// It supports assignments, if/else, condition-driven for loops, arithmetic
// and comparison expressions, a small math builtin set, and the two reserved
// hooks. It is deliberately not a general-purpose language.
type Interpreter struct{}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

func (in *Interpreter) Run(ctx context.Context, program string, hooks Hooks) error {
	stmts, err := parseProgram(program)
	if err != nil {
		return err
	}
	ev := &evaluator{env: map[string]Value{}, hooks: hooks}
	return ev.execBlock(ctx, stmts)
}

type evaluator struct {
	env   map[string]Value
	hooks Hooks
}

func (ev *evaluator) execBlock(ctx context.Context, stmts []stmt) error {
	for _, s := range stmts {
		if err := ev.exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) exec(ctx context.Context, s stmt) error {
	switch node := s.(type) {
	case assignStmt:
		value, err := ev.eval(ctx, node.expr)
		if err != nil {
			return err
		}
		ev.env[node.name] = value
		return nil
	case exprStmt:
		_, err := ev.eval(ctx, node.expr)
		return err
	case ifStmt:
		cond, err := ev.eval(ctx, node.cond)
		if err != nil {
			return err
		}
		if cond.Truthy() {
			return ev.execBlock(ctx, node.then)
		}
		return ev.execBlock(ctx, node.otherwise)
	case forStmt:
		for {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrRuntime, err)
			}
			cond, err := ev.eval(ctx, node.cond)
			if err != nil {
				return err
			}
			if !cond.Truthy() {
				return nil
			}
			if err := ev.execBlock(ctx, node.body); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unknown statement", ErrRuntime)
	}
}

func (ev *evaluator) eval(ctx context.Context, e expr) (Value, error) {
	switch node := e.(type) {
	case literalExpr:
		return node.value, nil
	case identExpr:
		value, ok := ev.env[node.name]
		if !ok {
			return Nil(), fmt.Errorf("%w: line %d: undefined variable %q", ErrRuntime, node.line, node.name)
		}
		return value, nil
	case unaryExpr:
		operand, err := ev.eval(ctx, node.expr)
		if err != nil {
			return Nil(), err
		}
		switch node.op {
		case tokMinus:
			f, err := operand.Float()
			if err != nil {
				return Nil(), err
			}
			return Num(-f), nil
		case tokNot:
			return Bool(!operand.Truthy()), nil
		}
		return Nil(), fmt.Errorf("%w: line %d: bad unary operator", ErrRuntime, node.line)
	case binaryExpr:
		return ev.evalBinary(ctx, node)
	case callExpr:
		return ev.evalCall(ctx, node)
	default:
		return Nil(), fmt.Errorf("%w: unknown expression", ErrRuntime)
	}
}

func (ev *evaluator) evalBinary(ctx context.Context, node binaryExpr) (Value, error) {
	// Short-circuit logical operators.
	if node.op == tokAnd || node.op == tokOr {
		left, err := ev.eval(ctx, node.left)
		if err != nil {
			return Nil(), err
		}
		if node.op == tokAnd && !left.Truthy() {
			return Bool(false), nil
		}
		if node.op == tokOr && left.Truthy() {
			return Bool(true), nil
		}
		right, err := ev.eval(ctx, node.right)
		if err != nil {
			return Nil(), err
		}
		return Bool(right.Truthy()), nil
	}

	left, err := ev.eval(ctx, node.left)
	if err != nil {
		return Nil(), err
	}
	right, err := ev.eval(ctx, node.right)
	if err != nil {
		return Nil(), err
	}

	switch node.op {
	case tokEq:
		return Bool(valuesEqual(left, right)), nil
	case tokNeq:
		return Bool(!valuesEqual(left, right)), nil
	}

	if left.IsStr() && right.IsStr() {
		switch node.op {
		case tokPlus:
			return Str(left.Text() + right.Text()), nil
		case tokLt:
			return Bool(left.Text() < right.Text()), nil
		case tokLte:
			return Bool(left.Text() <= right.Text()), nil
		case tokGt:
			return Bool(left.Text() > right.Text()), nil
		case tokGte:
			return Bool(left.Text() >= right.Text()), nil
		}
	}

	lf, err := left.Float()
	if err != nil {
		return Nil(), fmt.Errorf("%w: line %d: %v", ErrRuntime, node.line, err)
	}
	rf, err := right.Float()
	if err != nil {
		return Nil(), fmt.Errorf("%w: line %d: %v", ErrRuntime, node.line, err)
	}

	switch node.op {
	case tokPlus:
		return Num(lf + rf), nil
	case tokMinus:
		return Num(lf - rf), nil
	case tokStar:
		return Num(lf * rf), nil
	case tokSlash:
		if rf == 0 {
			return Nil(), fmt.Errorf("%w: line %d: division by zero", ErrRuntime, node.line)
		}
		return Num(lf / rf), nil
	case tokPercent:
		if rf == 0 {
			return Nil(), fmt.Errorf("%w: line %d: modulo by zero", ErrRuntime, node.line)
		}
		return Num(math.Mod(lf, rf)), nil
	case tokLt:
		return Bool(lf < rf), nil
	case tokLte:
		return Bool(lf <= rf), nil
	case tokGt:
		return Bool(lf > rf), nil
	case tokGte:
		return Bool(lf >= rf), nil
	default:
		return Nil(), fmt.Errorf("%w: line %d: bad operator", ErrRuntime, node.line)
	}
}

func valuesEqual(a, b Value) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case tagNum:
		return a.num == b.num
	case tagStr:
		return a.str == b.str
	case tagBool:
		return a.b == b.b
	default:
		return true
	}
}

const (
	hookRequestValue  = "request_value"
	hookReportFitness = "report_fitness"
)

func (ev *evaluator) evalCall(ctx context.Context, node callExpr) (Value, error) {
	switch node.name {
	case hookRequestValue:
		if ev.hooks.RequestValue == nil {
			return Nil(), fmt.Errorf("%w: line %d: %s hook not available", ErrRuntime, node.line, node.name)
		}
		if len(node.args) != 2 {
			return Nil(), fmt.Errorf("%w: line %d: %s takes (nonterminal, type)", ErrRuntime, node.line, node.name)
		}
		name, err := ev.eval(ctx, node.args[0])
		if err != nil {
			return Nil(), err
		}
		kind, err := ev.eval(ctx, node.args[1])
		if err != nil {
			return Nil(), err
		}
		if !name.IsStr() || !kind.IsStr() {
			return Nil(), fmt.Errorf("%w: line %d: %s arguments must be strings", ErrRuntime, node.line, node.name)
		}
		return ev.hooks.RequestValue(name.Text(), Kind(kind.Text()))
	case hookReportFitness:
		if ev.hooks.ReportFitness == nil {
			return Nil(), fmt.Errorf("%w: line %d: %s hook not available", ErrRuntime, node.line, node.name)
		}
		if len(node.args) != 1 {
			return Nil(), fmt.Errorf("%w: line %d: %s takes one value", ErrRuntime, node.line, node.name)
		}
		value, err := ev.eval(ctx, node.args[0])
		if err != nil {
			return Nil(), err
		}
		f, err := value.Float()
		if err != nil {
			return Nil(), fmt.Errorf("%w: line %d: %v", ErrRuntime, node.line, err)
		}
		ev.hooks.ReportFitness(f)
		return Nil(), nil
	}

	args := make([]float64, len(node.args))
	for i, argExpr := range node.args {
		value, err := ev.eval(ctx, argExpr)
		if err != nil {
			return Nil(), err
		}
		f, err := value.Float()
		if err != nil {
			return Nil(), fmt.Errorf("%w: line %d: %s: %v", ErrRuntime, node.line, node.name, err)
		}
		args[i] = f
	}
	return callBuiltin(node.name, args, node.line)
}

func callBuiltin(name string, args []float64, line int) (Value, error) {
	unary := map[string]func(float64) float64{
		"abs":   math.Abs,
		"sqrt":  math.Sqrt,
		"log":   math.Log,
		"exp":   math.Exp,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"floor": math.Floor,
		"round": math.Round,
	}
	if fn, ok := unary[name]; ok {
		if len(args) != 1 {
			return Nil(), fmt.Errorf("%w: line %d: %s takes one argument", ErrRuntime, line, name)
		}
		return Num(fn(args[0])), nil
	}

	switch name {
	case "pow":
		if len(args) != 2 {
			return Nil(), fmt.Errorf("%w: line %d: pow takes two arguments", ErrRuntime, line)
		}
		return Num(math.Pow(args[0], args[1])), nil
	case "min", "max":
		if len(args) == 0 {
			return Nil(), fmt.Errorf("%w: line %d: %s needs arguments", ErrRuntime, line, name)
		}
		out := args[0]
		for _, f := range args[1:] {
			if name == "min" && f < out || name == "max" && f > out {
				out = f
			}
		}
		return Num(out), nil
	default:
		return Nil(), fmt.Errorf("%w: line %d: unknown function %q", ErrRuntime, line, name)
	}
}
