package wheel

import (
	"reflect"
	"testing"

	"SpinTrack/internal/domain/models"
)

func TestOrderIsPermutation(t *testing.T) {
	var seen [models.MaxNumber + 1]bool
	for _, n := range Order {
		if seen[n] {
			t.Fatalf("duplicate %d in wheel order", n)
		}
		seen[n] = true
	}
	if len(Order) != 37 {
		t.Fatalf("expected 37 pockets, got %d", len(Order))
	}
}

func TestClassifiers(t *testing.T) {
	cases := []struct {
		n                                  int
		color, parity, rng, dozen, column string
	}{
		{0, "green", "", "", "", ""},
		{1, "red", "odd", "low", "first", "first"},
		{2, "black", "even", "low", "first", "second"},
		{3, "red", "odd", "low", "first", "third"},
		{12, "red", "even", "low", "first", "third"},
		{13, "black", "odd", "low", "second", "first"},
		{18, "red", "even", "low", "second", "third"},
		{19, "red", "odd", "high", "second", "first"},
		{24, "black", "even", "high", "second", "third"},
		{25, "red", "odd", "high", "third", "first"},
		{36, "red", "even", "high", "third", "third"},
	}
	for _, c := range cases {
		if got := ColorOf(c.n); got != c.color {
			t.Fatalf("ColorOf(%d)=%q want %q", c.n, got, c.color)
		}
		if got := ParityOf(c.n); got != c.parity {
			t.Fatalf("ParityOf(%d)=%q want %q", c.n, got, c.parity)
		}
		if got := RangeOf(c.n); got != c.rng {
			t.Fatalf("RangeOf(%d)=%q want %q", c.n, got, c.rng)
		}
		if got := DozenOf(c.n); got != c.dozen {
			t.Fatalf("DozenOf(%d)=%q want %q", c.n, got, c.dozen)
		}
		if got := ColumnOf(c.n); got != c.column {
			t.Fatalf("ColumnOf(%d)=%q want %q", c.n, got, c.column)
		}
	}
}

func TestRedCount(t *testing.T) {
	red := 0
	for n := 0; n <= 36; n++ {
		if IsRed(n) {
			red++
		}
	}
	if red != 18 {
		t.Fatalf("expected 18 red numbers, got %d", red)
	}
	if ColorOf(37) != "" || ColorOf(-1) != "" {
		t.Fatalf("out of range numbers must have no color")
	}
}

func TestNeighborsOf(t *testing.T) {
	if got := NeighborsOf(0, 2); !reflect.DeepEqual(got, []int{3, 26, 0, 32, 15}) {
		t.Fatalf("unexpected neighbors of 0: %v", got)
	}
	if got := NeighborsOf(26, 1); !reflect.DeepEqual(got, []int{3, 26, 0}) {
		t.Fatalf("unexpected neighbors of 26: %v", got)
	}
	if got := NeighborsOf(17, 0); !reflect.DeepEqual(got, []int{17}) {
		t.Fatalf("count 0 must return only base: %v", got)
	}
	if got := NeighborsOf(5, 30); len(got) != 37 {
		t.Fatalf("large count must cover the wheel once, got %d", len(got))
	}
	if got := NeighborsOf(40, 1); len(got) != 0 {
		t.Fatalf("unknown base must return empty, got %v", got)
	}
}

func TestExpandNeighbors(t *testing.T) {
	got := ExpandNeighbors([]int{0, 32}, 1)
	want := []int{26, 0, 32, 15}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
