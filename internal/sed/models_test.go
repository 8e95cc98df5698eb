package sed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelsForKnownNames(t *testing.T) {
	t.Parallel()

	models := ModelsFor([]string{"pow", "SSA", "FFA", "curve"})
	require.Len(t, models, 4)
	assert.Equal(t, "pow", models[0].Name())
	assert.Equal(t, 2, models[0].NumParams())
	assert.Equal(t, 3, models[1].NumParams())
	assert.Equal(t, 3, models[2].NumParams())
	assert.Equal(t, 3, models[3].NumParams())
}

func TestModelsForSkipsUnknownName(t *testing.T) {
	t.Parallel()

	models := ModelsFor([]string{"pow", "bogus"})
	require.Len(t, models, 1)
	assert.Equal(t, "pow", models[0].Name())
}

func TestPowerLawEval(t *testing.T) {
	t.Parallel()

	m := powerLaw{}
	p := []float64{2.0, -0.5}
	assert.InDelta(t, 2.0, m.Eval(p, 1), 1e-12)
	assert.InDelta(t, 2.0*math.Pow(4, -0.5), m.Eval(p, 4), 1e-12)
	assert.InDelta(t, -0.5, m.Alpha(p), 1e-12)
}

func TestGuessSlopeFromExtremes(t *testing.T) {
	t.Parallel()

	// Exact power law: guess should land on the true slope.
	x := []float64{0.5, 1, 2, 4}
	flux := make([]float64, len(x))
	for i, xi := range x {
		flux[i] = 3.0 * math.Pow(xi, -1.2)
	}
	amp, slope := guessSlope(x, flux)
	assert.InDelta(t, -1.2, slope, 1e-9)
	assert.InDelta(t, 3.0, amp, 1e-9)
}

func TestCurvedPowerLawReducesToPowerLaw(t *testing.T) {
	t.Parallel()

	c := curvedPowerLaw{}
	p := []float64{1.5, -0.9, 0}
	for _, x := range []float64{0.3, 1, 2.7} {
		assert.InDelta(t, 1.5*math.Pow(x, -0.9), c.Eval(p, x), 1e-12)
	}
}

func TestSSAAlphaIsThirdParam(t *testing.T) {
	t.Parallel()

	m := synchrotronSelfAbsorption{}
	p := []float64{1, 0.8, -0.7}
	assert.InDelta(t, -0.7, m.Alpha(p), 1e-12)
}
