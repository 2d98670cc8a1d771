package core

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrUnknownFuel is returned by CombustionCO2 for a fuel without an emission factor.
var ErrUnknownFuel = errors.New("unknown fuel")

// emissionFactors are 40 CFR Part 98 Table C-1 defaults in kg CO2 per MMBtu.
var emissionFactors = map[string]decimal.Decimal{
	"Natural Gas":       decimal.RequireFromString("53.06"),
	"Diesel":            decimal.RequireFromString("73.96"),
	"Residual Fuel Oil": decimal.RequireFromString("75.1"),
	"Propane":           decimal.RequireFromString("62.87"),
	"Coal (bituminous)": decimal.RequireFromString("94.35"),
}

var kgPerMetricTon = decimal.NewFromInt(1000)

// Fuels lists the fuels CombustionCO2 knows, sorted.
func Fuels() []string {
	out := make([]string, 0, len(emissionFactors))
	for f := range emissionFactors {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// EmissionFactor returns the kg CO2/MMBtu factor for fuel.
func EmissionFactor(fuel string) (decimal.Decimal, bool) {
	ef, ok := emissionFactors[fuel]
	return ef, ok
}

// CombustionCO2 estimates metric tons of CO2 from annual heat input:
// MMBtu × EF ÷ 1000, rounded to two places.
func CombustionCO2(mmbtu decimal.Decimal, fuel string) (decimal.Decimal, error) {
	ef, ok := emissionFactors[fuel]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownFuel, fuel)
	}
	return mmbtu.Mul(ef).Div(kgPerMetricTon).Round(2), nil
}
