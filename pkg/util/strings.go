package util

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

// ParseNumbers splits text on whitespace and commas and parses every token
// as a whole integer. Tokens that are not integers, such as "3.5" or "x",
// are returned in invalid. Range checks are left to the caller.
func ParseNumbers(text string) (nums []int, invalid []string) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	nums = make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			invalid = append(invalid, f)
			continue
		}
		nums = append(nums, n)
	}
	return nums, invalid
}
