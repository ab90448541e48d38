package utils

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"
)

// Compare compares an observed value against an expected one.
// Both operands are coerced to numbers first; if either is not numeric only
// == and != are defined, as string (in)equality. Ordering operators on
// non-numeric operands and unknown operators evaluate to false.
func Compare(actual interface{}, op string, expected interface{}) bool {
	a, aok := ToFloat(actual)
	e, eok := ToFloat(expected)
	if aok && eok {
		switch op {
		case "==":
			return a == e
		case "!=":
			return a != e
		case "<":
			return a < e
		case "<=":
			return a <= e
		case ">":
			return a > e
		case ">=":
			return a >= e
		}
		log.Printf("UTILS: Unsupported operator %q", op)
		return false
	}

	if actual == nil || expected == nil {
		switch op {
		case "==":
			return actual == nil && expected == nil
		case "!=":
			return actual != nil || expected != nil
		}
		return false
	}

	switch op {
	case "==":
		return Stringify(actual) == Stringify(expected)
	case "!=":
		return Stringify(actual) != Stringify(expected)
	}
	return false
}

// ToFloat coerces JSON-decoded scalars and numeric strings to float64
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Stringify renders a JSON-decoded value the way it reads in a payload:
// strings verbatim, integral floats without a fraction, everything else
// as compact JSON.
func Stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	}
	if raw, err := json.Marshal(v); err == nil {
		return string(raw)
	}
	return ""
}
