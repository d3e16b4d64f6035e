package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

var ErrInsufficientData = errors.New("insufficient data")

// ProbabilityOfOverfitting estimates how likely the in-sample best of several
// parameter sets underperforms out of sample, by combinatorially symmetric cross
// validation.
//
// returns holds one daily return series per parameter set, all of equal length.
// The series are cut into segments equal parts; every choice of half of the parts
// forms an in-sample set and the rest the out-of-sample set. The result is the
// share of choices where the in-sample winner ranks below the out-of-sample median.
func ProbabilityOfOverfitting(returns [][]fixed.Point, segments, annualDays int, riskFree fixed.Point) (fixed.Point, error) {
	if len(returns) < 2 {
		return fixed.Zero, fmt.Errorf("need at least two return series: %w", ErrInsufficientData)
	}
	if segments < 2 {
		return fixed.Zero, fmt.Errorf("need at least two segments: %w", ErrInsufficientData)
	}

	length := len(returns[0])
	for idx, series := range returns {
		if len(series) != length {
			return fixed.Zero, fmt.Errorf("series %d has %d returns, want %d: %w", idx, len(series), length, ErrInsufficientData)
		}
	}
	if length < segments {
		return fixed.Zero, fmt.Errorf("%d returns cannot form %d segments: %w", length, segments, ErrInsufficientData)
	}

	series := make([][]float64, len(returns))
	for idx, r := range returns {
		series[idx] = make([]float64, length)
		for i, p := range r {
			series[idx][i], _ = p.Float64()
		}
	}

	bins := make([]int, length)
	for i := range bins {
		bins[i] = segmentOf(i, length, segments)
	}

	rf, _ := riskFree.Float64()
	dailyRiskFree := rf / float64(annualDays)
	scale := math.Sqrt(float64(annualDays))

	overfit, total := 0, 0
	for _, comb := range combinations(segments, segments/2) {
		inSample := make(map[int]bool, len(comb))
		for _, s := range comb {
			inSample[s] = true
		}

		isSharpe := make([]float64, len(series))
		osSharpe := make([]float64, len(series))
		for idx, r := range series {
			var is, os []float64
			for i, v := range r {
				if inSample[bins[i]] {
					is = append(is, v)
				} else {
					os = append(os, v)
				}
			}
			isSharpe[idx] = sharpe(is, dailyRiskFree, scale)
			osSharpe[idx] = sharpe(os, dailyRiskFree, scale)
		}

		best := argsortStable(isSharpe)[len(series)-1]
		rank := 1
		for _, idx := range argsortStable(osSharpe) {
			if idx == best {
				break
			}
			rank++
		}

		if float64(rank)/float64(len(series)) < 0.5 {
			overfit++
		}
		total++
	}

	return fixed.FromInt(overfit, 0).DivInt(total), nil
}

// segmentOf assigns index i of n to one of k equal width bins over [0, n-1],
// closed on the right.
func segmentOf(i, n, k int) int {
	if i == 0 || n == 1 {
		return 0
	}
	return (i*k+n-2)/(n-1) - 1
}

func combinations(n, k int) [][]int {
	var out [][]int
	comb := make([]int, 0, k)
	var walk func(start int)
	walk = func(start int) {
		if len(comb) == k {
			out = append(out, append([]int(nil), comb...))
			return
		}
		for i := start; i < n; i++ {
			comb = append(comb, i)
			walk(i + 1)
			comb = comb[:len(comb)-1]
		}
	}
	walk(0)
	return out
}

func sharpe(values []float64, dailyRiskFree, scale float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)-1))
	if std == 0 {
		return 0
	}
	return (mean - dailyRiskFree) / std * scale
}

func argsortStable(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
	return idx
}
