package fetcher

import (
	"math"
	"sort"
	"strconv"
)

// parseFloatOrZero reads subgraph numeric strings, treating absent or
// malformed values as zero.
func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Shared statistics over price series and balance distributions.

// dailyReturns computes simple returns between consecutive prices.
func dailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// percentile uses linear interpolation between closest ranks, matching the
// convention of the reference risk calculations. p is in [0, 100].
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// hhiIndex is the Herfindahl-Hirschman index of the balance distribution,
// scaled 0-10000.
func hhiIndex(balances []float64) float64 {
	total := 0.0
	for _, b := range balances {
		if b > 0 {
			total += b
		}
	}
	if total == 0 {
		return 0
	}
	hhi := 0.0
	for _, b := range balances {
		if b <= 0 {
			continue
		}
		share := b / total
		hhi += share * share
	}
	return hhi * 10000
}

// giniCoefficient measures holding concentration: 0 = uniform, 1 = single
// holder.
func giniCoefficient(balances []float64) float64 {
	var positive []float64
	for _, b := range balances {
		if b > 0 {
			positive = append(positive, b)
		}
	}
	n := len(positive)
	if n == 0 {
		return 0
	}
	sort.Float64s(positive)

	var cumWeighted, total float64
	for i, b := range positive {
		cumWeighted += float64(i+1) * b
		total += b
	}
	if total == 0 {
		return 0
	}
	return (2*cumWeighted)/(float64(n)*total) - float64(n+1)/float64(n)
}

// topNShare returns the percentage of total held by the N largest balances.
func topNShare(balances []float64, n int, total float64) float64 {
	if total <= 0 || len(balances) == 0 {
		return 0
	}
	sorted := append([]float64(nil), balances...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if n > len(sorted) {
		n = len(sorted)
	}
	top := 0.0
	for _, b := range sorted[:n] {
		top += b
	}
	return top / total * 100
}
