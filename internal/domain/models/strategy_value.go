package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind tags a pattern element. Strategy types use the same tags.
type ValueKind string

const (
	KindColor         ValueKind = "color"
	KindParity        ValueKind = "parity"
	KindRange         ValueKind = "range"
	KindDozen         ValueKind = "dozen"
	KindColumn        ValueKind = "column"
	KindNumber        ValueKind = "number"
	KindNumberSet     ValueKind = "number-set"
	KindTargetNumbers ValueKind = "target-numbers"
)

// Attribute labels. Dozen and column share first/second/third.
const (
	ColorRed   = "red"
	ColorBlack = "black"
	ColorGreen = "green"

	ParityEven = "even"
	ParityOdd  = "odd"

	RangeLow  = "low"
	RangeHigh = "high"

	First  = "first"
	Second = "second"
	Third  = "third"
)

// MinNumber and MaxNumber bound a European wheel.
const (
	MinNumber = 0
	MaxNumber = 36
)

// ValidNumber reports whether n is a number on the wheel.
func ValidNumber(n int) bool { return n >= MinNumber && n <= MaxNumber }

// Valid reports whether k is a known kind.
func (k ValueKind) Valid() bool {
	switch k {
	case KindColor, KindParity, KindRange, KindDozen, KindColumn, KindNumber, KindNumberSet, KindTargetNumbers:
		return true
	}
	return false
}

// Ordered reports whether k is matched positionally inside a sequence.
func (k ValueKind) Ordered() bool {
	return k.Valid() && k != KindNumberSet && k != KindTargetNumbers
}

// StrategyValue is one pattern element. Kind selects which payload is set:
// Attr for color/parity/range/dozen/column, Number for number, Numbers for
// number-set, Base and Targets for target-numbers.
type StrategyValue struct {
	Kind    ValueKind
	Attr    string
	Number  int
	Numbers []int
	Base    []int
	Targets []int
}

func ColorValue(c string) StrategyValue { return StrategyValue{Kind: KindColor, Attr: c} }
func ParityValue(p string) StrategyValue { return StrategyValue{Kind: KindParity, Attr: p} }
func RangeValue(r string) StrategyValue { return StrategyValue{Kind: KindRange, Attr: r} }
func DozenValue(d string) StrategyValue { return StrategyValue{Kind: KindDozen, Attr: d} }
func ColumnValue(c string) StrategyValue { return StrategyValue{Kind: KindColumn, Attr: c} }
func NumberValue(n int) StrategyValue { return StrategyValue{Kind: KindNumber, Number: n} }

func NumberSetValue(nums ...int) StrategyValue {
	return StrategyValue{Kind: KindNumberSet, Numbers: append([]int(nil), nums...)}
}

func TargetNumbersValue(base, targets []int) StrategyValue {
	return StrategyValue{
		Kind:    KindTargetNumbers,
		Base:    append([]int(nil), base...),
		Targets: append([]int(nil), targets...),
	}
}

// Clone returns a copy that shares no slices with v.
func (v StrategyValue) Clone() StrategyValue {
	out := v
	out.Numbers = append([]int(nil), v.Numbers...)
	out.Base = append([]int(nil), v.Base...)
	out.Targets = append([]int(nil), v.Targets...)
	return out
}

// Validate checks the payload against the kind.
func (v StrategyValue) Validate() error {
	switch v.Kind {
	case KindColor:
		return oneOf(v.Kind, v.Attr, ColorRed, ColorBlack, ColorGreen)
	case KindParity:
		return oneOf(v.Kind, v.Attr, ParityEven, ParityOdd)
	case KindRange:
		return oneOf(v.Kind, v.Attr, RangeLow, RangeHigh)
	case KindDozen, KindColumn:
		return oneOf(v.Kind, v.Attr, First, Second, Third)
	case KindNumber:
		if !ValidNumber(v.Number) {
			return fmt.Errorf("number %d out of range", v.Number)
		}
		return nil
	case KindNumberSet:
		return validSet("numbers", v.Numbers)
	case KindTargetNumbers:
		if err := validSet("base", v.Base); err != nil {
			return err
		}
		return validSet("targets", v.Targets)
	default:
		return fmt.Errorf("unknown value type %q", v.Kind)
	}
}

// Label renders the element for display names.
func (v StrategyValue) Label() string {
	switch v.Kind {
	case KindNumber:
		return strconv.Itoa(v.Number)
	case KindNumberSet:
		return setLabel(v.Numbers)
	case KindTargetNumbers:
		return setLabel(v.Base) + " ⇒ " + setLabel(v.Targets)
	default:
		return v.Attr
	}
}

type wireValue struct {
	Type  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

type wireTargets struct {
	Base    []int `json:"base"`
	Targets []int `json:"targets"`
}

// MarshalJSON encodes {"type": kind, "value": payload}.
func (v StrategyValue) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch v.Kind {
	case KindNumber:
		payload = v.Number
	case KindNumberSet:
		payload = nonNil(v.Numbers)
	case KindTargetNumbers:
		payload = wireTargets{Base: nonNil(v.Base), Targets: nonNil(v.Targets)}
	default:
		payload = v.Attr
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: v.Kind, Value: raw})
}

// UnmarshalJSON decodes {"type": kind, "value": payload}. Payload content is
// not range-checked here; call Validate.
func (v *StrategyValue) UnmarshalJSON(b []byte) error {
	var w wireValue
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := StrategyValue{Kind: w.Type}
	if len(w.Value) == 0 {
		return fmt.Errorf("value type %q: missing value", w.Type)
	}
	var err error
	switch w.Type {
	case KindColor, KindParity, KindRange, KindDozen, KindColumn:
		err = json.Unmarshal(w.Value, &out.Attr)
	case KindNumber:
		err = json.Unmarshal(w.Value, &out.Number)
	case KindNumberSet:
		err = json.Unmarshal(w.Value, &out.Numbers)
	case KindTargetNumbers:
		var t wireTargets
		err = json.Unmarshal(w.Value, &t)
		out.Base, out.Targets = t.Base, t.Targets
	default:
		return fmt.Errorf("unknown value type %q", w.Type)
	}
	if err != nil {
		return fmt.Errorf("value type %q: %w", w.Type, err)
	}
	*v = out
	return nil
}

func oneOf(kind ValueKind, got string, allowed ...string) error {
	for _, a := range allowed {
		if got == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", kind, strings.Join(allowed, "|"), got)
}

func validSet(name string, nums []int) error {
	if len(nums) == 0 {
		return fmt.Errorf("%s cannot be empty", name)
	}
	for _, n := range nums {
		if !ValidNumber(n) {
			return fmt.Errorf("%s: number %d out of range", name, n)
		}
	}
	return nil
}

func setLabel(nums []int) string {
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = strconv.Itoa(n)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func nonNil(nums []int) []int {
	if nums == nil {
		return []int{}
	}
	return nums
}
