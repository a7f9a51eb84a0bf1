// Package mathtools implements the small deterministic math tools exposed
// over MCP: a calculator, lookup tables for common derivatives and
// integrals, and a linear equation solver.
package mathtools

import (
	"math"
	"strings"
)

const equationNotRecognized = "Equation format not recognized"

var derivatives = map[string]string{
	"x^2":    "2x",
	"x^3":    "3x^2",
	"sin(x)": "cos(x)",
	"cos(x)": "-sin(x)",
	"e^x":    "e^x",
	"ln(x)":  "1/x",
}

var integrals = map[string]string{
	"x":      "x^2/2 + C",
	"x^2":    "x^3/3 + C",
	"sin(x)": "-cos(x) + C",
	"cos(x)": "sin(x) + C",
	"1/x":    "ln(x) + C",
}

// Calculate evaluates expression and reports "Result: <value>" or
// "Error: <reason>".
func Calculate(expression string) string {
	v, err := Eval(expression, nil)
	if err != nil {
		return "Error: " + err.Error()
	}
	return "Result: " + FormatNumber(v)
}

func normalize(f string) string {
	return strings.Join(strings.Fields(f), "")
}

// Derivative looks up the derivative of a common function of x.
func Derivative(function string) string {
	if d, ok := derivatives[normalize(function)]; ok {
		return d
	}
	return "Derivative of " + strings.TrimSpace(function) + " requires advanced calculation"
}

// Integral looks up the indefinite integral of a common function of x.
func Integral(function string) string {
	if i, ok := integrals[normalize(function)]; ok {
		return i
	}
	return "Integral of " + strings.TrimSpace(function) + " requires advanced calculation"
}

// SolveEquation solves a linear equation in x such as "3x + 5 = 2x - 1".
// Both sides are evaluated at sample points; a side that is not affine in
// x is rejected.
func SolveEquation(equation string) string {
	sides := strings.Split(equation, "=")
	if len(sides) != 2 || !strings.Contains(strings.ToLower(equation), "x") {
		return equationNotRecognized
	}
	a, b, ok := affine(sides[0])
	if !ok {
		return equationNotRecognized
	}
	c, d, ok := affine(sides[1])
	if !ok {
		return equationNotRecognized
	}

	coef := a - c
	rhs := d - b
	if nearlyZero(coef) {
		if nearlyZero(rhs) {
			return "Infinitely many solutions"
		}
		return "No solution"
	}
	return "x = " + FormatNumber(cleanZero(rhs/coef))
}

// affine returns slope and intercept of side as a function of x.
func affine(side string) (slope, intercept float64, ok bool) {
	at := func(x float64) (float64, bool) {
		v, err := Eval(side, map[string]float64{"x": x})
		return v, err == nil
	}
	f0, ok0 := at(0)
	f1, ok1 := at(1)
	f2, ok2 := at(2)
	f5, ok5 := at(-5)
	if !ok0 || !ok1 || !ok2 || !ok5 {
		return 0, 0, false
	}
	slope = f1 - f0
	if !nearlyEqual(f2-f0, 2*slope) || !nearlyEqual(f5-f0, -5*slope) {
		return 0, 0, false
	}
	return slope, f0, true
}

const epsilon = 1e-9

func nearlyZero(v float64) bool { return math.Abs(v) < epsilon }

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= epsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func cleanZero(v float64) float64 {
	if nearlyZero(v) {
		return 0
	}
	return v
}
