package matcher

import (
	"SpinTrack/internal/domain/models"
	"SpinTrack/internal/services/wheel"
)

// Matches reports whether n satisfies element v. Target-numbers elements
// match on their base set; the engine drives the target phase itself.
func Matches(n int, v models.StrategyValue) bool {
	if !models.ValidNumber(n) {
		return false
	}
	switch v.Kind {
	case models.KindColor:
		return wheel.ColorOf(n) == v.Attr
	case models.KindParity:
		return attrMatch(wheel.ParityOf(n), v.Attr)
	case models.KindRange:
		return attrMatch(wheel.RangeOf(n), v.Attr)
	case models.KindDozen:
		return attrMatch(wheel.DozenOf(n), v.Attr)
	case models.KindColumn:
		return attrMatch(wheel.ColumnOf(n), v.Attr)
	case models.KindNumber:
		return n == v.Number
	case models.KindNumberSet:
		return Contains(v.Numbers, n)
	case models.KindTargetNumbers:
		return Contains(v.Base, n)
	default:
		return false
	}
}

// Contains is a linear membership test; sets hold at most 37 numbers.
func Contains(nums []int, n int) bool {
	for _, m := range nums {
		if m == n {
			return true
		}
	}
	return false
}

// zero classifies as "" and must never match an attribute.
func attrMatch(got, want string) bool {
	return got != "" && got == want
}
