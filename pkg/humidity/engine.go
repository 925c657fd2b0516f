// Package humidity converts HCZ-J3 impedance readings into relative humidity
// by bilinear interpolation over the datasheet calibration table.
package humidity

import "math"

// Engine estimates relative humidity from temperature and impedance.
// An Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	legacyReuseAnchor bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLegacyAnchorReuse selects how the upper temperature row is interpolated.
// When on (the default) the upper row's ratio is computed with the lower row's
// anchor while its RH offset comes from its own anchor, which reproduces the
// reference outputs. When off the upper row uses its own anchor for both.
func WithLegacyAnchorReuse(on bool) Option {
	return func(e *Engine) {
		e.legacyReuseAnchor = on
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{legacyReuseAnchor: true}
	for _, o := range opts {
		o(e)
	}
	return e
}

// LegacyAnchorReuse reports whether the engine reuses the lower row's anchor.
func (e *Engine) LegacyAnchorReuse() bool {
	return e.legacyReuseAnchor
}

var defaultEngine = New()

// EstimateRH is Engine.EstimateRH with the default (legacy) engine.
func EstimateRH(temperature, impedance float64) float64 {
	return defaultEngine.EstimateRH(temperature, impedance)
}

// EstimateRH returns the relative humidity in percent for a temperature in °C
// and an impedance in ohms. Out-of-range inputs are clamped to the table edges
// (0..50 °C, 0..20000 Ω); no input is rejected. Infinities clamp like any
// other out-of-range value and NaN is treated as the lower table edge.
func (e *Engine) EstimateRH(temperature, impedance float64) float64 {
	z := clamp(impedance, minImpedance, maxImpedance)
	line, tempRatio := binTemperature(temperature)

	lower := calibration.row(line)
	upper := calibration.row(line + 1)

	a1 := FindAnchor(lower, z)
	rh1 := ReferenceRH(a1) - stepRH*RowRatio(lower, z, a1)

	a2 := FindAnchor(upper, z)
	ratioAnchor := a2
	if e.legacyReuseAnchor {
		ratioAnchor = a1
	}
	rh2 := ReferenceRH(a2) - stepRH*RowRatio(upper, z, ratioAnchor)

	return rh2*tempRatio + rh1*(1-tempRatio)
}

// binTemperature maps a temperature to its lower table row and the fractional
// position inside that 5 °C bin.
func binTemperature(temperature float64) (line int, tempRatio float64) {
	t := clamp(temperature, minTemperature, maxTemperature) / tempStep
	return int(math.Floor(t)), math.Mod(t, 1)
}

// FindAnchor scans row from its second-to-last column down to column 0 and
// returns the lowest column c such that z >= row[i] for every i in
// [c, len(row)-2]. If z is below row[len(row)-2] it returns len(row)-1, the
// sentinel column. Rows shorter than two columns have no bracket and yield 0.
func FindAnchor(row []float64, z float64) int {
	if len(row) < 2 {
		return 0
	}
	anchor := len(row) - 1
	for c := len(row) - 2; c >= 0; c-- {
		if z < row[c] {
			break
		}
		anchor = c
	}
	return anchor
}

// RowRatio returns the fractional position of z between row[anchor] and the
// column before it. For anchor 0 the column before is the last column of the
// row (the 0 ohm sentinel). Equal bracketing values, rows shorter than two
// columns and anchors outside the row yield 0.
func RowRatio(row []float64, z float64, anchor int) float64 {
	if len(row) < 2 || anchor < 0 || anchor >= len(row) {
		return 0
	}
	var prev float64
	if anchor == 0 {
		prev = row[len(row)-1]
	} else {
		prev = row[anchor-1]
	}
	den := prev - row[anchor]
	if den == 0 {
		return 0
	}
	return (z - row[anchor]) / den
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
