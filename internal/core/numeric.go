package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"envirotrack/pkg/domain"
)

// ParseNumber interprets a record value as a number. Blank strings, nil,
// non-numeric strings, NaN and infinities all report ok=false. It never panics.
func ParseNumber(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case string:
		return parseNumeric(t)
	case json.Number:
		return parseNumeric(t.String())
	case float64:
		return fromFloat(t)
	case float32:
		return fromFloat(float64(t))
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case int32:
		return decimal.NewFromInt32(t), true
	default:
		return decimal.Zero, false
	}
}

// maxExponent bounds the decimal exponent. Arithmetic rescales operands to a
// common exponent, so an unbounded one such as "1e200000000" never finishes.
const maxExponent = 400

// parseNumeric accepts only values inside float64 range. Values that
// underflow fall back to their float64 rounding.
func parseNumeric(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.NewFromFloat(f), true
	}
	return d, true
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// FieldNumber parses field of rec.
func FieldNumber(rec domain.Record, field string) (decimal.Decimal, bool) {
	return ParseNumber(rec[field])
}

// SumField adds field across recs; values that are not numbers contribute 0.
func SumField(recs []domain.Record, field string) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range recs {
		if d, ok := FieldNumber(rec, field); ok {
			total = total.Add(d)
		}
	}
	return total
}

// MaxField returns the largest numeric value of field across recs, ignoring
// values that are not numbers. With nothing numeric it returns 0.
func MaxField(recs []domain.Record, field string) decimal.Decimal {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, rec := range recs {
		d, ok := FieldNumber(rec, field)
		if !ok {
			continue
		}
		if !found || d.GreaterThan(best) {
			best, found = d, true
		}
	}
	if !found {
		return decimal.Zero
	}
	return best
}
