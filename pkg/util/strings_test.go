package util

import (
	"reflect"
	"testing"
)

func TestParseNumbers(t *testing.T) {
	cases := []struct {
		in      string
		want    []int
		invalid []string
	}{
		{"12 5 33", []int{12, 5, 33}, nil},
		{"0,36,\n7\t 19", []int{0, 36, 7, 19}, nil},
		{"12 -5 3.5", []int{12, -5}, []string{"3.5"}},
		{"+7 40", []int{7, 40}, nil},
		{"red 3", []int{3}, []string{"red"}},
		{"1;2", []int{}, []string{"1;2"}},
		{"", []int{}, nil},
	}
	for _, c := range cases {
		got, invalid := ParseNumbers(c.in)
		if !reflect.DeepEqual(got, c.want) || !reflect.DeepEqual(invalid, c.invalid) {
			t.Fatalf("ParseNumbers(%q)=%v,%v want %v,%v", c.in, got, invalid, c.want, c.invalid)
		}
	}
}

func TestParseIntDefault(t *testing.T) {
	if ParseIntDefault("", 7) != 7 || ParseIntDefault("x", 7) != 7 || ParseIntDefault(" 12 ", 7) != 12 {
		t.Fatal("unexpected ParseIntDefault result")
	}
}
