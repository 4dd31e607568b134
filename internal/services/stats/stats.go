// Package stats derives read-only statistics from the results log and the
// strategy collection. Every function takes results newest first.
package stats

import (
	"sort"

	"SpinTrack/internal/domain/models"
	"SpinTrack/internal/services/wheel"

	"github.com/shopspring/decimal"
)

const (
	HotColdSize       = 5
	CorrelationWindow = 100
	TopFollowers      = 3
	MinOccurrences    = 2
	DefaultCorrLimit  = 10
)

var hundred = decimal.NewFromInt(100)

// Percent returns part/total as a percentage rounded to 2 places. A zero
// total yields zero.
func Percent(part, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(total))).Round(2)
}

func share(count, total int) models.Share {
	return models.Share{Count: count, Percent: Percent(count, total)}
}

// Summarize counts colors, parity, halves, dozens and columns.
func Summarize(results []int) models.Summary {
	counts := map[string]int{}
	dozens := map[string]int{}
	cols := map[string]int{}
	for _, n := range results {
		counts[wheel.ColorOf(n)]++
		counts[wheel.ParityOf(n)]++
		counts[wheel.RangeOf(n)]++
		if d := wheel.DozenOf(n); d != "" {
			dozens[d]++
		}
		if c := wheel.ColumnOf(n); c != "" {
			cols[c]++
		}
	}
	total := len(results)
	out := models.Summary{
		Total:  total,
		Red:    share(counts[models.ColorRed], total),
		Black:  share(counts[models.ColorBlack], total),
		Green:  share(counts[models.ColorGreen], total),
		Even:   share(counts[models.ParityEven], total),
		Odd:    share(counts[models.ParityOdd], total),
		Low:    share(counts[models.RangeLow], total),
		High:   share(counts[models.RangeHigh], total),
		Dozens: make(map[string]models.Share, 3),
		Cols:   make(map[string]models.Share, 3),
	}
	for _, k := range []string{models.First, models.Second, models.Third} {
		out.Dozens[k] = share(dozens[k], total)
		out.Cols[k] = share(cols[k], total)
	}
	if total > 0 {
		last := results[0]
		out.Last = &last
	}
	return out
}

// Frequencies returns a count for every number on the wheel, sorted by count
// descending and number ascending.
func Frequencies(results []int) []models.NumberCount {
	var counts [models.MaxNumber + 1]int
	for _, n := range results {
		if models.ValidNumber(n) {
			counts[n]++
		}
	}
	out := make([]models.NumberCount, 0, len(counts))
	for n, c := range counts {
		out = append(out, models.NumberCount{Number: n, Count: c})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// HotAndCold returns the five most frequent numbers and the five least
// frequent ones, least frequent first.
func HotAndCold(results []int) models.HotCold {
	freq := Frequencies(results)
	hot := append([]models.NumberCount(nil), freq[:HotColdSize]...)
	cold := make([]models.NumberCount, 0, HotColdSize)
	for i := len(freq) - 1; i >= len(freq)-HotColdSize; i-- {
		cold = append(cold, freq[i])
	}
	return models.HotCold{Hot: hot, Cold: cold}
}

// Correlate reports which numbers tend to follow each number over the most
// recent CorrelationWindow results. Only numbers seen followed at least
// MinOccurrences times are listed, most frequent first, at most limit of
// them. limit <= 0 uses DefaultCorrLimit.
func Correlate(results []int, limit int) []models.Correlation {
	if limit <= 0 {
		limit = DefaultCorrLimit
	}
	window := results
	if len(window) > CorrelationWindow {
		window = window[:CorrelationWindow]
	}

	var occ [models.MaxNumber + 1]int
	var next [models.MaxNumber + 1][models.MaxNumber + 1]int
	for i := 0; i+1 < len(window); i++ {
		newer, older := window[i], window[i+1]
		if !models.ValidNumber(newer) || !models.ValidNumber(older) {
			continue
		}
		occ[older]++
		next[older][newer]++
	}

	out := make([]models.Correlation, 0)
	for n := range occ {
		if occ[n] < MinOccurrences {
			continue
		}
		followers := make([]models.Follower, 0)
		for f, c := range next[n] {
			if c > 0 {
				followers = append(followers, models.Follower{Number: f, Count: c, Percent: Percent(c, occ[n])})
			}
		}
		sort.SliceStable(followers, func(i, j int) bool {
			return followers[i].Count > followers[j].Count
		})
		if len(followers) > TopFollowers {
			followers = followers[:TopFollowers]
		}
		out = append(out, models.Correlation{Number: n, Occurrences: occ[n], Followers: followers})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Occurrences > out[j].Occurrences
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// StrategyRates lists hit rates in the collection's display order.
func StrategyRates(list []*models.Strategy) []models.StrategyRate {
	out := make([]models.StrategyRate, 0, len(list))
	for _, s := range list {
		name := s.Name
		if name == "" {
			name = s.DefaultName()
		}
		out = append(out, models.StrategyRate{
			ID:       s.ID,
			Name:     name,
			Hits:     s.Hits,
			Misses:   s.Misses,
			HitRate:  Percent(s.Hits, s.Hits+s.Misses),
			Streak:   s.CurrentStreak,
			Priority: s.IsPriority,
		})
	}
	return out
}
