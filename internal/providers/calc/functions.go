package calc

import (
	"fmt"
	"math"

	conduiterrors "conduit/internal/errors"
)

type mathFunc func(args []any) (any, error)

// functionTable is the whitelist of callable functions. Calls to anything
// else fail with a validation error.
var functionTable = map[string]mathFunc{
	"sin":   unary1(math.Sin),
	"cos":   unary1(math.Cos),
	"tan":   unary1(math.Tan),
	"asin":  unary1(math.Asin),
	"acos":  unary1(math.Acos),
	"atan":  unary1(math.Atan),
	"sinh":  unary1(math.Sinh),
	"cosh":  unary1(math.Cosh),
	"tanh":  unary1(math.Tanh),
	"exp":   unary1(math.Exp),
	"log":   logFn,
	"log2":  unary1(math.Log2),
	"log10": unary1(math.Log10),
	"sqrt":  sqrtFn,
	"pow":   powFn,
	"ceil":  unary1(math.Ceil),
	"floor": unary1(math.Floor),
	"abs":   unary1(math.Abs),
	"round": roundFn,
	"degrees": unary1(func(x float64) float64 {
		return x * 180 / math.Pi
	}),
	"radians": unary1(func(x float64) float64 {
		return x * math.Pi / 180
	}),
	"factorial": factorialFn,
	"gcd":       gcdFn,
	"lcm":       lcmFn,
	"min":       aggregateFn("min", func(acc, x float64) float64 { return math.Min(acc, x) }),
	"max":       aggregateFn("max", func(acc, x float64) float64 { return math.Max(acc, x) }),
	"sum":       sumFn,
}

func unary1(fn func(float64) float64) mathFunc {
	return func(args []any) (any, error) {
		x, err := oneNumber(args)
		if err != nil {
			return nil, err
		}
		return fn(x), nil
	}
}

func oneNumber(args []any) (float64, error) {
	if len(args) != 1 {
		return 0, &conduiterrors.ValidationError{Reason: "expected exactly one argument"}
	}
	x, ok := args[0].(float64)
	if !ok {
		return 0, &conduiterrors.ValidationError{Reason: fmt.Sprintf("expected number, got %T", args[0])}
	}
	return x, nil
}

// logFn is natural log with one argument, arbitrary base with two.
func logFn(args []any) (any, error) {
	switch len(args) {
	case 1:
		x, err := oneNumber(args)
		if err != nil {
			return nil, err
		}
		if x <= 0 {
			return nil, fmt.Errorf("log of non-positive value")
		}
		return math.Log(x), nil
	case 2:
		x, xok := args[0].(float64)
		base, bok := args[1].(float64)
		if !xok || !bok {
			return nil, &conduiterrors.ValidationError{Reason: "log expects numbers"}
		}
		if x <= 0 || base <= 0 || base == 1 {
			return nil, fmt.Errorf("invalid log arguments")
		}
		return math.Log(x) / math.Log(base), nil
	}
	return nil, &conduiterrors.ValidationError{Reason: "log expects one or two arguments"}
}

func sqrtFn(args []any) (any, error) {
	x, err := oneNumber(args)
	if err != nil {
		return nil, err
	}
	if x < 0 {
		return nil, fmt.Errorf("sqrt of negative value")
	}
	return math.Sqrt(x), nil
}

func powFn(args []any) (any, error) {
	if len(args) != 2 {
		return nil, &conduiterrors.ValidationError{Reason: "pow expects two arguments"}
	}
	x, xok := args[0].(float64)
	y, yok := args[1].(float64)
	if !xok || !yok {
		return nil, &conduiterrors.ValidationError{Reason: "pow expects numbers"}
	}
	return math.Pow(x, y), nil
}

func roundFn(args []any) (any, error) {
	switch len(args) {
	case 1:
		x, err := oneNumber(args)
		if err != nil {
			return nil, err
		}
		return math.Round(x), nil
	case 2:
		x, xok := args[0].(float64)
		digits, dok := args[1].(float64)
		if !xok || !dok {
			return nil, &conduiterrors.ValidationError{Reason: "round expects numbers"}
		}
		scale := math.Pow(10, math.Trunc(digits))
		return math.Round(x*scale) / scale, nil
	}
	return nil, &conduiterrors.ValidationError{Reason: "round expects one or two arguments"}
}

func factorialFn(args []any) (any, error) {
	x, err := oneNumber(args)
	if err != nil {
		return nil, err
	}
	if x < 0 || x != math.Trunc(x) {
		return nil, fmt.Errorf("factorial requires a non-negative integer")
	}
	if x > 170 {
		return nil, fmt.Errorf("factorial overflow")
	}
	result := 1.0
	for i := 2.0; i <= x; i++ {
		result *= i
	}
	return result, nil
}

func gcdFn(args []any) (any, error) {
	ints, err := allIntegers(args, "gcd")
	if err != nil {
		return nil, err
	}
	g := int64(0)
	for _, n := range ints {
		g = gcd(g, abs64(n))
	}
	return float64(g), nil
}

func lcmFn(args []any) (any, error) {
	ints, err := allIntegers(args, "lcm")
	if err != nil {
		return nil, err
	}
	l := int64(1)
	for _, n := range ints {
		n = abs64(n)
		if n == 0 {
			return float64(0), nil
		}
		l = l / gcd(l, n) * n
	}
	return float64(l), nil
}

func allIntegers(args []any, fn string) ([]int64, error) {
	flat := flatten(args)
	if len(flat) < 2 {
		return nil, &conduiterrors.ValidationError{Reason: fn + " expects at least two integers"}
	}
	ints := make([]int64, len(flat))
	for i, a := range flat {
		x, ok := a.(float64)
		if !ok || x != math.Trunc(x) {
			return nil, &conduiterrors.ValidationError{Reason: fn + " expects integers"}
		}
		ints[i] = int64(x)
	}
	return ints, nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// aggregateFn folds over scalar arguments or a single list argument.
func aggregateFn(name string, fold func(acc, x float64) float64) mathFunc {
	return func(args []any) (any, error) {
		values, err := numberList(args, name)
		if err != nil {
			return nil, err
		}
		acc := values[0]
		for _, x := range values[1:] {
			acc = fold(acc, x)
		}
		return acc, nil
	}
}

func sumFn(args []any) (any, error) {
	values, err := numberList(args, "sum")
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, x := range values {
		total += x
	}
	return total, nil
}

func numberList(args []any, fn string) ([]float64, error) {
	flat := flatten(args)
	if len(flat) == 0 {
		return nil, &conduiterrors.ValidationError{Reason: fn + " expects at least one value"}
	}
	values := make([]float64, len(flat))
	for i, a := range flat {
		x, ok := a.(float64)
		if !ok {
			return nil, &conduiterrors.ValidationError{Reason: fn + " expects numbers"}
		}
		values[i] = x
	}
	return values, nil
}

func flatten(args []any) []any {
	var flat []any
	for _, a := range args {
		if list, ok := a.([]any); ok {
			flat = append(flat, flatten(list)...)
			continue
		}
		flat = append(flat, a)
	}
	return flat
}

func (e *evaluator) evalCall(n *callNode) (any, error) {
	fn, ok := functionTable[n.name]
	if !ok {
		return nil, &conduiterrors.ValidationError{Reason: fmt.Sprintf("unknown function %q", n.name)}
	}
	args := make([]any, len(n.args))
	for i, argNode := range n.args {
		v, err := e.eval(argNode)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(args)
}
