package assistant

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
)

const calculationFailed = "Sorry, I couldn't perform that calculation"

var (
	errEmptyExpression = errors.New("empty expression")
	errNotANumber      = errors.New("result is not a finite number")
)

// sanitizeExpression keeps only digits, arithmetic operators, parentheses,
// dots and spaces.
func sanitizeExpression(expr string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || strings.ContainsRune("+-*/(). ", r) {
			return r
		}
		return -1
	}, expr)
}

func calculate(expr string) string {
	value, err := evaluate(expr)
	if err != nil {
		return calculationFailed
	}
	return "The result is " + strconv.FormatFloat(value, 'f', -1, 64)
}

func evaluate(expr string) (float64, error) {
	expr = strings.TrimSpace(sanitizeExpression(expr))
	if expr == "" {
		return 0, errEmptyExpression
	}
	expression, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return 0, err
	}
	raw, err := expression.Evaluate(nil)
	if err != nil {
		return 0, err
	}
	value, ok := raw.(float64)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errNotANumber
	}
	return value, nil
}
