package similarity

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DaysBetween returns the absolute number of calendar days separating d1 and d2.
// Times of day and zones are ignored.
func DaysBetween(d1, d2 time.Time) int {
	a := time.Date(d1.Year(), d1.Month(), d1.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(d2.Year(), d2.Month(), d2.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Round(a.Sub(b).Hours() / 24))
	if days < 0 {
		return -days
	}
	return days
}

// DateWithinTolerance reports whether the two dates are at most toleranceDays apart.
func DateWithinTolerance(d1, d2 time.Time, toleranceDays int) bool {
	return DaysBetween(d1, d2) <= toleranceDays
}

// DateDistanceScore is 1.0 at zero distance and decays linearly to 0.0 at
// toleranceDays. Distances beyond the tolerance score exactly 0.
func DateDistanceScore(d1, d2 time.Time, toleranceDays int) float64 {
	days := DaysBetween(d1, d2)
	if toleranceDays <= 0 {
		if days == 0 {
			return 1.0
		}
		return 0.0
	}
	if days >= toleranceDays {
		return 0.0
	}
	return Clamp01(1.0 - float64(days)/float64(toleranceDays))
}

// AmountVariance returns the absolute difference between a1 and a2 and that
// difference as a percentage of the larger magnitude. Two zero amounts have no variance.
func AmountVariance(a1, a2 float64) (absDiff, pctDiff float64) {
	x, y := decimal.NewFromFloat(a1), decimal.NewFromFloat(a2)
	diff := x.Sub(y).Abs()
	base := decimal.Max(x.Abs(), y.Abs())

	absDiff = diff.Round(2).InexactFloat64()
	if base.IsZero() {
		return absDiff, 0
	}
	pctDiff = diff.Div(base).Mul(hundred).Round(4).InexactFloat64()
	return absDiff, pctDiff
}

// AmountWithinThreshold reports whether the percentage variance is at most pctThreshold.
func AmountWithinThreshold(a1, a2, pctThreshold float64) bool {
	_, pct := AmountVariance(a1, a2)
	return pct <= pctThreshold
}

// AmountScore is 1.0 at zero variance and decays linearly to 0 at pctThreshold.
func AmountScore(a1, a2, pctThreshold float64) float64 {
	_, pct := AmountVariance(a1, a2)
	if pctThreshold <= 0 {
		if pct == 0 {
			return 1.0
		}
		return 0.0
	}
	return Clamp01(1.0 - pct/pctThreshold)
}
