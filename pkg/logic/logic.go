package logic

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CompiledExpr is an opaque, immutable, concurrency-safe evaluator produced
// by Compile. The zero value is not usable; obtain one from Compile or a
// Cache.
type CompiledExpr struct {
	eval func(ctx *EvalContext) (interface{}, error)
}

// Evaluate runs the compiled expression against ctx. Safe to call from any
// number of goroutines concurrently; CompiledExpr holds no mutable state.
func (c *CompiledExpr) Evaluate(ctx *EvalContext) (interface{}, error) {
	return c.eval(ctx)
}

// StrictlyTrue reports whether evaluating c against ctx yields exactly the
// boolean value true, per the executor's condition semantics (truthy
// values other than true do not count).
func (c *CompiledExpr) StrictlyTrue(ctx *EvalContext) (bool, error) {
	v, err := c.eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	return ok && b, nil
}

func constant(v interface{}) *CompiledExpr {
	return &CompiledExpr{eval: func(*EvalContext) (interface{}, error) { return v, nil }}
}

// Compile turns a decoded JSON value (scalar, []interface{}, or
// map[string]interface{} with exactly one key) into a CompiledExpr.
func Compile(expr interface{}) (*CompiledExpr, error) {
	switch v := expr.(type) {
	case nil, bool, float64, string:
		return constant(v), nil
	case []interface{}:
		return compileArrayLiteral(v)
	case map[string]interface{}:
		return compileOperator(v)
	default:
		return nil, &CompileError{Reason: fmt.Sprintf("unsupported expression value of type %T", expr)}
	}
}

func compileArrayLiteral(items []interface{}) (*CompiledExpr, error) {
	compiled := make([]*CompiledExpr, len(items))
	for i, item := range items {
		c, err := Compile(item)
		if err != nil {
			return nil, err
		}
		compiled[i] = c
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		out := make([]interface{}, len(compiled))
		for i, c := range compiled {
			v, err := c.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}}, nil
}

func compileOperator(obj map[string]interface{}) (*CompiledExpr, error) {
	if len(obj) != 1 {
		return nil, &CompileError{Reason: fmt.Sprintf("operator object must have exactly one key, got %d", len(obj))}
	}
	var op string
	var rawArgs interface{}
	for k, v := range obj {
		op, rawArgs = k, v
	}

	build, ok := operators[op]
	if !ok {
		return nil, &CompileError{Operator: op, Reason: fmt.Sprintf("unknown operator %q", op)}
	}
	return build(rawArgs)
}

// argList normalizes an operator's value into a flat argument list: a bare
// value is treated as a single argument, an array as the argument list
// itself.
func argList(v interface{}) []interface{} {
	if arr, ok := v.([]interface{}); ok {
		return arr
	}
	return []interface{}{v}
}

func compileArgs(v interface{}) ([]*CompiledExpr, error) {
	args := argList(v)
	compiled := make([]*CompiledExpr, len(args))
	for i, a := range args {
		c, err := Compile(a)
		if err != nil {
			return nil, err
		}
		compiled[i] = c
	}
	return compiled, nil
}

func evalAll(ctx *EvalContext, args []*CompiledExpr) ([]interface{}, error) {
	out := make([]interface{}, len(args))
	for i, a := range args {
		v, err := a.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type operatorBuilder func(rawArgs interface{}) (*CompiledExpr, error)

var operators map[string]operatorBuilder

func init() {
	operators = map[string]operatorBuilder{
		"var": buildVar,

		"+": buildArith("+", func(acc float64, v float64) float64 { return acc + v }, 0),
		"-": buildSubtract,
		"*": buildArith("*", func(acc float64, v float64) float64 { return acc * v }, 1),
		"/": buildDivide,
		"%": buildModulo,

		"==":  buildCompareEq(false, true),
		"===": buildCompareEq(true, true),
		"!=":  buildCompareEq(false, false),
		"!==": buildCompareEq(true, false),
		">":   buildCompareOrder(func(a, b float64) bool { return a > b }),
		">=":  buildCompareOrder(func(a, b float64) bool { return a >= b }),
		"<":   buildCompareOrder(func(a, b float64) bool { return a < b }),
		"<=":  buildCompareOrder(func(a, b float64) bool { return a <= b }),

		"and": buildAnd,
		"or":  buildOr,
		"!":   buildNot,
		"!!":  buildDoubleNot,

		"if": buildIf,

		"cat":         buildCat,
		"substr":      buildSubstr,
		"in":          buildIn,
		"lower":       buildCase(cases.Lower(language.Und)),
		"upper":       buildCase(cases.Upper(language.Und)),
		"strlen":      buildStrlen,
		"regex_match": buildRegexMatch,

		"map":    buildMap,
		"filter": buildFilter,
		"reduce": buildReduce,
		"all":    buildAllOf,
		"some":   buildSomeOf,
		"none":   buildNoneOf,
		"merge":  buildMerge,
	}
}

func buildVar(raw interface{}) (*CompiledExpr, error) {
	args := argList(raw)
	if len(args) == 0 {
		return nil, &CompileError{Reason: "var requires a path argument"}
	}
	pathExpr, err := Compile(args[0])
	if err != nil {
		return nil, err
	}
	var defaultExpr *CompiledExpr
	if len(args) > 1 {
		defaultExpr, err = Compile(args[1])
		if err != nil {
			return nil, err
		}
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		pv, err := pathExpr.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		path, _ := pv.(string)
		if v, ok := ctx.lookup(path); ok {
			return v, nil
		}
		if defaultExpr != nil {
			return defaultExpr.Evaluate(ctx)
		}
		return nil, nil
	}}, nil
}

func buildArith(name string, fold func(acc, v float64) float64, identity float64) operatorBuilder {
	return func(raw interface{}) (*CompiledExpr, error) {
		args, err := compileArgs(raw)
		if err != nil {
			return nil, err
		}
		return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
			vals, err := evalAll(ctx, args)
			if err != nil {
				return nil, err
			}
			acc := identity
			for _, v := range vals {
				f, ok := toFloat64(v)
				if !ok {
					return nil, &EvalError{Operator: name, Reason: fmt.Sprintf("operand %v is not numeric", v)}
				}
				acc = fold(acc, f)
			}
			return acc, nil
		}}, nil
	}
}

func buildSubtract(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		vals, err := evalAll(ctx, args)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return 0.0, nil
		}
		first, ok := toFloat64(vals[0])
		if !ok {
			return nil, &EvalError{Operator: "-", Reason: fmt.Sprintf("operand %v is not numeric", vals[0])}
		}
		if len(vals) == 1 {
			return -first, nil
		}
		acc := first
		for _, v := range vals[1:] {
			f, ok := toFloat64(v)
			if !ok {
				return nil, &EvalError{Operator: "-", Reason: fmt.Sprintf("operand %v is not numeric", v)}
			}
			acc -= f
		}
		return acc, nil
	}}, nil
}

func buildDivide(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		vals, err := evalAll(ctx, args)
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, &EvalError{Operator: "/", Reason: "requires at least one operand"}
		}
		acc, ok := toFloat64(vals[0])
		if !ok {
			return nil, &EvalError{Operator: "/", Reason: fmt.Sprintf("operand %v is not numeric", vals[0])}
		}
		for _, v := range vals[1:] {
			f, ok := toFloat64(v)
			if !ok {
				return nil, &EvalError{Operator: "/", Reason: fmt.Sprintf("operand %v is not numeric", v)}
			}
			if f == 0 {
				return nil, &EvalError{Operator: "/", Reason: "division by zero"}
			}
			acc /= f
		}
		return acc, nil
	}}, nil
}

func buildModulo(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, &CompileError{Reason: "% requires exactly two operands"}
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		vals, err := evalAll(ctx, args)
		if err != nil {
			return nil, err
		}
		a, aok := toFloat64(vals[0])
		b, bok := toFloat64(vals[1])
		if !aok || !bok {
			return nil, &EvalError{Operator: "%", Reason: "operands must be numeric"}
		}
		if b == 0 {
			return nil, &EvalError{Operator: "%", Reason: "division by zero"}
		}
		return math.Mod(a, b), nil
	}}, nil
}

func buildCompareEq(strict, wantEqual bool) operatorBuilder {
	return func(raw interface{}) (*CompiledExpr, error) {
		args, err := compileArgs(raw)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, &CompileError{Reason: "equality operators require exactly two operands"}
		}
		return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
			vals, err := evalAll(ctx, args)
			if err != nil {
				return nil, err
			}
			var eq bool
			if strict {
				eq = strictEqual(vals[0], vals[1])
			} else {
				eq = looseEqual(vals[0], vals[1])
			}
			return eq == wantEqual, nil
		}}, nil
	}
}

func buildCompareOrder(cmp func(a, b float64) bool) operatorBuilder {
	return func(raw interface{}) (*CompiledExpr, error) {
		args, err := compileArgs(raw)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, &CompileError{Reason: "ordering operators require exactly two operands"}
		}
		return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
			vals, err := evalAll(ctx, args)
			if err != nil {
				return nil, err
			}
			if as, aok := vals[0].(string); aok {
				if bs, bok := vals[1].(string); bok {
					return cmp(float64(strings.Compare(as, bs)), 0), nil
				}
			}
			a, aok := toFloat64(vals[0])
			b, bok := toFloat64(vals[1])
			if !aok || !bok {
				return nil, &EvalError{Operator: "compare", Reason: "operands are not comparable"}
			}
			return cmp(a, b), nil
		}}, nil
	}
}

func buildAnd(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		var last interface{}
		for _, a := range args {
			v, err := a.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			last = v
			if !truthy(v) {
				return v, nil
			}
		}
		return last, nil
	}}, nil
}

func buildOr(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		var last interface{}
		for _, a := range args {
			v, err := a.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			last = v
			if truthy(v) {
				return v, nil
			}
		}
		return last, nil
	}}, nil
}

func buildNot(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, &CompileError{Reason: "! requires exactly one operand"}
	}
	arg := args[0]
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		v, err := arg.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	}}, nil
}

func buildDoubleNot(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, &CompileError{Reason: "!! requires exactly one operand"}
	}
	arg := args[0]
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		v, err := arg.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		return truthy(v), nil
	}}, nil
}

func buildIf(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		i := 0
		for ; i+1 < len(args); i += 2 {
			cond, err := args[i].Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			if truthy(cond) {
				return args[i+1].Evaluate(ctx)
			}
		}
		if i < len(args) {
			return args[i].Evaluate(ctx)
		}
		return nil, nil
	}}, nil
}

func buildCat(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		var sb strings.Builder
		for _, a := range args {
			v, err := a.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			sb.WriteString(toDisplayString(v))
		}
		return sb.String(), nil
	}}, nil
}

func buildSubstr(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, &CompileError{Reason: "substr requires at least a string and a start index"}
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		vals, err := evalAll(ctx, args)
		if err != nil {
			return nil, err
		}
		s, ok := vals[0].(string)
		if !ok {
			return nil, &EvalError{Operator: "substr", Reason: "first operand must be a string"}
		}
		runes := []rune(s)
		start, ok := toFloat64(vals[1])
		if !ok {
			return nil, &EvalError{Operator: "substr", Reason: "start index must be numeric"}
		}
		startIdx := normalizeIndex(int(start), len(runes))
		length := len(runes) - startIdx
		if len(vals) > 2 {
			l, ok := toFloat64(vals[2])
			if !ok {
				return nil, &EvalError{Operator: "substr", Reason: "length must be numeric"}
			}
			length = int(l)
			if length < 0 {
				length = len(runes) - startIdx + length
			}
		}
		end := startIdx + length
		if end > len(runes) {
			end = len(runes)
		}
		if end < startIdx {
			end = startIdx
		}
		return string(runes[startIdx:end]), nil
	}}, nil
}

func normalizeIndex(idx, length int) int {
	if idx < 0 {
		idx = length + idx
	}
	if idx < 0 {
		idx = 0
	}
	if idx > length {
		idx = length
	}
	return idx
}

func buildIn(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, &CompileError{Reason: "in requires exactly two operands"}
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		vals, err := evalAll(ctx, args)
		if err != nil {
			return nil, err
		}
		needle, haystack := vals[0], vals[1]
		switch hs := haystack.(type) {
		case string:
			ns, ok := needle.(string)
			if !ok {
				return false, nil
			}
			return strings.Contains(hs, ns), nil
		case []interface{}:
			for _, item := range hs {
				if strictEqual(item, needle) {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, nil
		}
	}}, nil
}

func buildCase(caser cases.Caser) operatorBuilder {
	return func(raw interface{}) (*CompiledExpr, error) {
		args, err := compileArgs(raw)
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, &CompileError{Reason: "lower/upper require exactly one operand"}
		}
		arg := args[0]
		return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
			v, err := arg.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			s, ok := v.(string)
			if !ok {
				return nil, &EvalError{Operator: "lower/upper", Reason: "operand must be a string"}
			}
			return caser.String(s), nil
		}}, nil
	}
}

func buildStrlen(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, &CompileError{Reason: "strlen requires exactly one operand"}
	}
	arg := args[0]
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		v, err := arg.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		s, ok := v.(string)
		if !ok {
			return nil, &EvalError{Operator: "strlen", Reason: "operand must be a string"}
		}
		return float64(len([]rune(s))), nil
	}}, nil
}

func buildRegexMatch(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, &CompileError{Reason: "regex_match requires exactly two operands"}
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		vals, err := evalAll(ctx, args)
		if err != nil {
			return nil, err
		}
		s, ok := vals[0].(string)
		if !ok {
			return nil, &EvalError{Operator: "regex_match", Reason: "first operand must be a string"}
		}
		pattern, ok := vals[1].(string)
		if !ok {
			return nil, &EvalError{Operator: "regex_match", Reason: "second operand must be a string"}
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &EvalError{Operator: "regex_match", Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
		return re.MatchString(s), nil
	}}, nil
}

func buildMap(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, &CompileError{Reason: "map requires exactly two operands"}
	}
	arrExpr, itemExpr := args[0], args[1]
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		items, err := evalArray(ctx, arrExpr, "map")
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			v, err := itemExpr.Evaluate(ctx.withItem(item))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}}, nil
}

func buildFilter(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, &CompileError{Reason: "filter requires exactly two operands"}
	}
	arrExpr, predExpr := args[0], args[1]
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		items, err := evalArray(ctx, arrExpr, "filter")
		if err != nil {
			return nil, err
		}
		out := make([]interface{}, 0, len(items))
		for _, item := range items {
			v, err := predExpr.Evaluate(ctx.withItem(item))
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				out = append(out, item)
			}
		}
		return out, nil
	}}, nil
}

func buildReduce(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 3 {
		return nil, &CompileError{Reason: "reduce requires exactly three operands"}
	}
	arrExpr, logicExpr, initExpr := args[0], args[1], args[2]
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		items, err := evalArray(ctx, arrExpr, "reduce")
		if err != nil {
			return nil, err
		}
		acc, err := initExpr.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			scope := map[string]interface{}{"current": item, "accumulator": acc}
			acc, err = logicExpr.Evaluate(ctx.withItem(scope))
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}}, nil
}

func buildAllOf(raw interface{}) (*CompiledExpr, error) { return buildQuantifier(raw, "all") }
func buildSomeOf(raw interface{}) (*CompiledExpr, error) { return buildQuantifier(raw, "some") }
func buildNoneOf(raw interface{}) (*CompiledExpr, error) { return buildQuantifier(raw, "none") }

func buildQuantifier(raw interface{}, kind string) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, &CompileError{Reason: fmt.Sprintf("%s requires exactly two operands", kind)}
	}
	arrExpr, predExpr := args[0], args[1]
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		items, err := evalArray(ctx, arrExpr, kind)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			switch kind {
			case "all":
				return false, nil
			case "some":
				return false, nil
			default: // none
				return true, nil
			}
		}
		for _, item := range items {
			v, err := predExpr.Evaluate(ctx.withItem(item))
			if err != nil {
				return nil, err
			}
			switch kind {
			case "all":
				if !truthy(v) {
					return false, nil
				}
			case "some":
				if truthy(v) {
					return true, nil
				}
			case "none":
				if truthy(v) {
					return false, nil
				}
			}
		}
		switch kind {
		case "all":
			return true, nil
		case "some":
			return false, nil
		default:
			return true, nil
		}
	}}, nil
}

func buildMerge(raw interface{}) (*CompiledExpr, error) {
	args, err := compileArgs(raw)
	if err != nil {
		return nil, err
	}
	return &CompiledExpr{eval: func(ctx *EvalContext) (interface{}, error) {
		out := make([]interface{}, 0, len(args))
		for _, a := range args {
			v, err := a.Evaluate(ctx)
			if err != nil {
				return nil, err
			}
			if arr, ok := v.([]interface{}); ok {
				out = append(out, arr...)
			} else {
				out = append(out, v)
			}
		}
		return out, nil
	}}, nil
}

func evalArray(ctx *EvalContext, expr *CompiledExpr, op string) ([]interface{}, error) {
	v, err := expr.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, &EvalError{Operator: op, Reason: "first operand did not evaluate to an array"}
	}
	return arr, nil
}
