// Package wheel classifies European roulette numbers and walks the physical
// wheel ordering.
package wheel

import "SpinTrack/internal/domain/models"

var redNumbers = [...]int{1, 3, 5, 7, 9, 12, 14, 16, 18, 19, 21, 23, 25, 27, 30, 32, 34, 36}

// Order is the clockwise sequence of pockets on a single-zero wheel.
var Order = [...]int{
	0, 32, 15, 19, 4, 21, 2, 25, 17, 34, 6, 27, 13, 36, 11, 30, 8, 23, 10,
	5, 24, 16, 33, 1, 20, 14, 31, 9, 22, 18, 29, 7, 28, 12, 35, 3, 26,
}

var (
	isRed    [models.MaxNumber + 1]bool
	position [models.MaxNumber + 1]int
)

func init() {
	for _, n := range redNumbers {
		isRed[n] = true
	}
	for i, n := range Order {
		position[n] = i
	}
}

// IsRed reports whether n is one of the 18 red numbers.
func IsRed(n int) bool {
	return models.ValidNumber(n) && isRed[n]
}

// ColorOf returns red, black or green. Out of range numbers have no color.
func ColorOf(n int) string {
	switch {
	case !models.ValidNumber(n):
		return ""
	case n == 0:
		return models.ColorGreen
	case isRed[n]:
		return models.ColorRed
	default:
		return models.ColorBlack
	}
}

// ParityOf returns even or odd, or "" for zero.
func ParityOf(n int) string {
	if !nonZero(n) {
		return ""
	}
	if n%2 == 0 {
		return models.ParityEven
	}
	return models.ParityOdd
}

// RangeOf returns low (1-18) or high (19-36), or "" for zero.
func RangeOf(n int) string {
	if !nonZero(n) {
		return ""
	}
	if n <= 18 {
		return models.RangeLow
	}
	return models.RangeHigh
}

// DozenOf returns first (1-12), second (13-24) or third (25-36).
func DozenOf(n int) string {
	switch {
	case !nonZero(n):
		return ""
	case n <= 12:
		return models.First
	case n <= 24:
		return models.Second
	default:
		return models.Third
	}
}

// ColumnOf follows the table layout: n%3 == 1 first, 2 second, 0 third.
func ColumnOf(n int) string {
	if !nonZero(n) {
		return ""
	}
	switch n % 3 {
	case 1:
		return models.First
	case 2:
		return models.Second
	default:
		return models.Third
	}
}

// NeighborsOf returns base and count pockets on each side of it, in wheel
// order from the leftmost, wrapping around zero. Duplicates are dropped, so a
// count of 18 or more yields the whole wheel. Unknown numbers yield nil.
func NeighborsOf(base, count int) []int {
	if !models.ValidNumber(base) {
		return nil
	}
	if count < 0 {
		count = 0
	}
	size := len(Order)
	idx := position[base]
	out := make([]int, 0, min(2*count+1, size))
	var seen [models.MaxNumber + 1]bool
	for i := -count; i <= count; i++ {
		pos := ((idx+i)%size + size) % size
		n := Order[pos]
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// ExpandNeighbors returns nums plus the neighbors of each, deduplicated, in
// first-seen order.
func ExpandNeighbors(nums []int, count int) []int {
	var seen [models.MaxNumber + 1]bool
	out := make([]int, 0, len(nums))
	for _, n := range nums {
		for _, m := range NeighborsOf(n, count) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

func nonZero(n int) bool { return n > 0 && n <= models.MaxNumber }
