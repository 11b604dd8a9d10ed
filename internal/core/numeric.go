// Package core holds the session domain model and the pure scalar rules the
// rest of the module builds on.
//
// This file normalizes loosely typed numeric values. Stored records mix
// floats, integers, currency strings ("$4.00") and decimal-comma strings
// ("2,50"); all of them collapse to a finite, non-negative float64.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseNumeric converts v to a float64.
//
// A nil value is treated as absent and yields 0 without error. Every other
// value that cannot be read as a finite, non-negative number yields 0 and an
// error wrapping ErrMalformedValue.
//
// Examples:
//
//	ParseNumeric("$4.00")   -> 4, nil
//	ParseNumeric("2,50")    -> 2.5, nil
//	ParseNumeric("1,234.5") -> 1234.5, nil
//	ParseNumeric("abc")     -> 0, ErrMalformedValue
func ParseNumeric(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return checkFinite(n)
	case float32:
		return checkFinite(float64(n))
	case int:
		return checkFinite(float64(n))
	case int32:
		return checkFinite(float64(n))
	case int64:
		return checkFinite(float64(n))
	case uint:
		return checkFinite(float64(n))
	case uint32:
		return checkFinite(float64(n))
	case uint64:
		return checkFinite(float64(n))
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedValue, string(n))
		}
		return checkFinite(f)
	case string:
		return parseNumericString(n)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrMalformedValue, v)
	}
}

// NormalizeNumeric is ParseNumeric with the error dropped. It never fails.
func NormalizeNumeric(v any) float64 {
	f, _ := ParseNumeric(v)
	return f
}

func checkFinite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-finite number", ErrMalformedValue)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: negative number %v", ErrMalformedValue, f)
	}
	return f, nil
}

func parseNumericString(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrMalformedValue)
	}

	if isDecimalComma(s) {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedValue, raw)
	}
	return checkFinite(f)
}

// isDecimalComma reports whether the single comma in s separates decimals,
// as in "2,50". "1,234" is read as a thousands separator instead.
func isDecimalComma(s string) bool {
	if strings.Contains(s, ".") || strings.Count(s, ",") != 1 {
		return false
	}
	frac := len(s) - strings.LastIndex(s, ",") - 1
	return frac == 1 || frac == 2
}
