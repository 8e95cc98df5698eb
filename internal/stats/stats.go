// Package stats provides the robust statistics used by the validation
// metrics: sigma-clipped medians, least-squares line fits and logarithmic
// flux binning.
package stats

import (
	"math"
	"sort"

	"radioval/internal/errors"
)

// medianToStdErr converts the standard deviation of a sample into the
// standard error of its median, sqrt(pi/2)/sqrt(n) per point.
const medianToStdErr = 1.2533

// Median returns the median of values. It returns NaN for an empty slice.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDevAround returns the standard deviation of values around the given
// center rather than the mean.
func StdDevAround(values []float64, center float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - center
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// SigmaClip iteratively removes points beyond kappa standard deviations from
// the running median until the set is stable or maxIterations is reached.
// The surviving points are returned; the input is not modified.
func SigmaClip(values []float64, kappa float64, maxIterations int) []float64 {
	kept := append([]float64(nil), values...)
	for iter := 0; iter < maxIterations; iter++ {
		if len(kept) < 3 {
			break
		}
		med := Median(kept)
		sd := StdDevAround(kept, med)
		if sd == 0 {
			break
		}
		next := kept[:0]
		for _, v := range kept {
			if math.Abs(v-med) <= kappa*sd {
				next = append(next, v)
			}
		}
		if len(next) == len(kept) {
			break
		}
		kept = next
	}
	return kept
}

// ClippedMedian returns the sigma-clipped median of values with the standard
// error of the median over the surviving points.
func ClippedMedian(values []float64, kappa float64, maxIterations int) (median, uncertainty float64, n int, err error) {
	if len(values) == 0 {
		return 0, 0, 0, errors.ErrInsufficientData
	}
	kept := SigmaClip(values, kappa, maxIterations)
	if len(kept) == 0 {
		return 0, 0, 0, errors.ErrDegenerateStatistics
	}
	med := Median(kept)
	sd := StdDevAround(kept, med)
	return med, medianToStdErr * sd / math.Sqrt(float64(len(kept))), len(kept), nil
}

// LinearFit fits y = slope*x + intercept by unweighted least squares and
// returns the slope with its standard error.
func LinearFit(x, y []float64) (slope, intercept, slopeErr float64, err error) {
	n := len(x)
	if n != len(y) {
		return 0, 0, 0, errors.NewStd("x and y lengths differ")
	}
	if n < 2 {
		return 0, 0, 0, errors.ErrInsufficientData
	}

	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy float64
	for i := range x {
		dx := x[i] - meanX
		sxx += dx * dx
		sxy += dx * (y[i] - meanY)
	}
	if sxx == 0 {
		return 0, 0, 0, errors.ErrDegenerateStatistics
	}

	slope = sxy / sxx
	intercept = meanY - slope*meanX

	if n > 2 {
		var rss float64
		for i := range x {
			r := y[i] - (slope*x[i] + intercept)
			rss += r * r
		}
		slopeErr = math.Sqrt(rss / float64(n-2) / sxx)
	}
	return slope, intercept, slopeErr, nil
}

// LogBins returns n+1 logarithmically spaced bin edges covering [min, max].
func LogBins(minVal, maxVal float64, n int) []float64 {
	edges := make([]float64, n+1)
	logMin := math.Log10(minVal)
	step := (math.Log10(maxVal) - logMin) / float64(n)
	for i := 0; i <= n; i++ {
		edges[i] = math.Pow(10, logMin+float64(i)*step)
	}
	// Pin the outer edges so rounding never excludes the extremes.
	edges[0] = minVal
	edges[n] = maxVal
	return edges
}

// BinCounts assigns each value to a bin defined by edges. The upper edge of
// the final bin is inclusive so the counts sum to the number of in-range
// values.
func BinCounts(values, edges []float64) []int {
	nBins := len(edges) - 1
	counts := make([]int, nBins)
	for _, v := range values {
		if v < edges[0] || v > edges[nBins] {
			continue
		}
		idx := sort.SearchFloat64s(edges, v)
		if idx < len(edges) && edges[idx] == v {
			// On an edge: the value belongs to the bin on the right,
			// except at the top edge which closes the final bin.
			if idx == nBins {
				idx = nBins - 1
			}
		} else {
			idx--
		}
		counts[idx]++
	}
	return counts
}
