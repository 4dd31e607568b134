package matcher

import (
	"testing"

	"SpinTrack/internal/domain/models"
)

func TestMatches(t *testing.T) {
	cases := []struct {
		name string
		n    int
		v    models.StrategyValue
		want bool
	}{
		{"red", 1, models.ColorValue("red"), true},
		{"black on red", 1, models.ColorValue("black"), false},
		{"green zero", 0, models.ColorValue("green"), true},
		{"zero not even", 0, models.ParityValue("even"), false},
		{"zero not low", 0, models.RangeValue("low"), false},
		{"zero not first dozen", 0, models.DozenValue("first"), false},
		{"zero not third column", 0, models.ColumnValue("third"), false},
		{"odd", 3, models.ParityValue("odd"), true},
		{"high", 19, models.RangeValue("high"), true},
		{"second dozen", 13, models.DozenValue("second"), true},
		{"second column", 35, models.ColumnValue("second"), true},
		{"number", 17, models.NumberValue(17), true},
		{"number zero", 0, models.NumberValue(0), true},
		{"set member", 2, models.NumberSetValue(1, 2, 3), true},
		{"set non member", 5, models.NumberSetValue(1, 2, 3), false},
		{"target base", 0, models.TargetNumbersValue([]int{0}, []int{32}), true},
		{"target uses base only", 32, models.TargetNumbersValue([]int{0}, []int{32}), false},
		{"out of range", 37, models.NumberValue(37), false},
		{"unknown kind", 1, models.StrategyValue{Kind: "bogus"}, false},
	}
	for _, c := range cases {
		if got := Matches(c.n, c.v); got != c.want {
			t.Fatalf("%s: Matches(%d)=%v want %v", c.name, c.n, got, c.want)
		}
	}
}
