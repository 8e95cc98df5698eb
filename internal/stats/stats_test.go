package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radioval/internal/errors"
)

func TestMedian(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 2.0, Median([]float64{3, 1, 2}), 1e-12)
	assert.InDelta(t, 2.5, Median([]float64{4, 1, 2, 3}), 1e-12)
	assert.InDelta(t, 5.0, Median([]float64{5}), 1e-12)
	assert.True(t, math.IsNaN(Median(nil)))
}

func TestSigmaClipRemovesOutliers(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	values := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		values = append(values, 1.0+rng.NormFloat64()*0.05)
	}
	values = append(values, 50.0)
	kept := SigmaClip(values, 3, 10)

	assert.InDelta(t, 20, len(kept), 2)
	for _, v := range kept {
		assert.Less(t, v, 2.0)
	}
}

func TestSigmaClipStableSet(t *testing.T) {
	t.Parallel()

	values := []float64{1, 1.01, 0.99, 1.002, 0.998}
	kept := SigmaClip(values, 3, 10)
	assert.Len(t, kept, len(values))
}

func TestSigmaClipZeroVariance(t *testing.T) {
	t.Parallel()

	values := []float64{2, 2, 2, 2}
	kept := SigmaClip(values, 3, 10)
	assert.Equal(t, values, kept)
}

func TestClippedMedian(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(9))
	values := make([]float64, 0, 16)
	for i := 0; i < 15; i++ {
		values = append(values, 1.0+rng.NormFloat64()*0.05)
	}
	values = append(values, 100.0)

	med, unc, n, err := ClippedMedian(values, 3, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, med, 0.1)
	assert.Greater(t, unc, 0.0)
	assert.InDelta(t, 15, float64(n), 2)
}

func TestClippedMedianEmpty(t *testing.T) {
	t.Parallel()

	_, _, _, err := ClippedMedian(nil, 3, 10)
	require.ErrorIs(t, err, errors.ErrInsufficientData)
}

func TestLinearFitRecoversSlope(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	var x, y []float64
	for i := 0; i < 50; i++ {
		xi := float64(i) * 0.1
		x = append(x, xi)
		y = append(y, -1.5*xi+2.0+rng.NormFloat64()*0.01)
	}

	slope, intercept, slopeErr, err := LinearFit(x, y)
	require.NoError(t, err)
	assert.InDelta(t, -1.5, slope, 0.01)
	assert.InDelta(t, 2.0, intercept, 0.01)
	assert.Greater(t, slopeErr, 0.0)
}

func TestLinearFitDegenerate(t *testing.T) {
	t.Parallel()

	_, _, _, err := LinearFit([]float64{1, 1, 1}, []float64{1, 2, 3})
	require.ErrorIs(t, err, errors.ErrDegenerateStatistics)

	_, _, _, err = LinearFit([]float64{1}, []float64{1})
	require.ErrorIs(t, err, errors.ErrInsufficientData)
}

func TestLogBins(t *testing.T) {
	t.Parallel()

	edges := LogBins(1e-3, 1.0, 3)
	require.Len(t, edges, 4)
	assert.InDelta(t, 1e-3, edges[0], 1e-15)
	assert.InDelta(t, 1e-2, edges[1], 1e-12)
	assert.InDelta(t, 1e-1, edges[2], 1e-10)
	assert.InDelta(t, 1.0, edges[3], 1e-12)
}

func TestBinCountsSumToTotal(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	values := make([]float64, 500)
	minV, maxV := math.Inf(1), math.Inf(-1)
	for i := range values {
		values[i] = math.Pow(10, -3+3*rng.Float64())
		minV = math.Min(minV, values[i])
		maxV = math.Max(maxV, values[i])
	}

	edges := LogBins(minV, maxV, 50)
	counts := BinCounts(values, edges)

	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, len(values), total)
}

func TestBinCountsEdgeValues(t *testing.T) {
	t.Parallel()

	edges := []float64{1, 2, 4, 8}
	counts := BinCounts([]float64{1, 2, 3, 8, 0.5, 9}, edges)

	assert.Equal(t, []int{1, 2, 1}, counts)
}
