package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ToDecimal converts a numeric cell to a decimal. ok is false for nil and for
// non-numeric values.
func ToDecimal(v any) (d decimal.Decimal, ok bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int64:
		return decimal.NewFromInt(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case float64:
		return decimal.NewFromFloat(n), true
	}
	return decimal.Zero, false
}

// ToInt64 converts an integer cell to int64. ok is false for nil and for
// non-integer values.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// KeyString renders a cell as a join/group key. nil keys are reported with
// ok=false so callers can keep NULL out of equality matches.
func KeyString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case decimal.Decimal:
		return t.String(), true
	case time.Time:
		return t.Format(time.DateOnly), true
	default:
		return fmt.Sprint(t), true
	}
}

// MatchKey is KeyString with surrounding whitespace removed, the form a raw
// text key takes once coerced. Blank keys count as NULL.
func MatchKey(v any) (string, bool) {
	k, ok := KeyString(v)
	if !ok {
		return "", false
	}
	k = strings.TrimSpace(k)
	return k, k != ""
}

// Compare orders two cells. nil sorts before every non-nil value. Values of
// different kinds fall back to comparing their key strings.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case int64, int, decimal.Decimal, float64:
		if xi, ok := ToInt64(a); ok {
			if yi, ok := ToInt64(b); ok {
				switch {
				case xi < yi:
					return -1
				case xi > yi:
					return 1
				}
				return 0
			}
		}
		xd, _ := ToDecimal(x)
		if yd, ok := ToDecimal(b); ok {
			return xd.Cmp(yd)
		}
	}
	as, _ := KeyString(a)
	bs, _ := KeyString(b)
	return strings.Compare(as, bs)
}
