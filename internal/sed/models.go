// Package sed fits spectral energy distribution models to multi-frequency
// flux measurements gathered across cross-matched catalogues.
package sed

import (
	"math"
	"sort"
)

// Measurement is one flux measurement of a source at a given frequency.
type Measurement struct {
	Catalogue    string  // catalogue the flux came from
	FrequencyMHz float64 // observing frequency in MHz
	Flux         float64 // flux in Jy
	FluxErr      float64 // 1-sigma flux uncertainty in Jy
}

// Model is one member of the supported spectral model family. Frequencies
// are expressed relative to a reference frequency for numerical conditioning.
type Model interface {
	Name() string
	NumParams() int
	// Eval returns the model flux at x = freq/refFreq.
	Eval(params []float64, x float64) float64
	// Guess returns starting parameters from the measurements, with
	// frequencies already divided by the reference frequency.
	Guess(x, flux []float64) []float64
	// Alpha extracts the spectral index from a fitted parameter vector.
	Alpha(params []float64) float64
}

// ModelsFor resolves configured model names to implementations. Names are
// assumed validated by the configuration layer.
func ModelsFor(names []string) []Model {
	models := make([]Model, 0, len(names))
	for _, name := range names {
		switch name {
		case "pow":
			models = append(models, powerLaw{})
		case "curve":
			models = append(models, curvedPowerLaw{})
		case "SSA":
			models = append(models, synchrotronSelfAbsorption{})
		case "FFA":
			models = append(models, freeFreeAbsorption{})
		}
	}
	return models
}

// guessSlope estimates the spectral index and the flux at x=1 from the
// extreme frequencies of the measurement set.
func guessSlope(x, flux []float64) (amp, alpha float64) {
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return x[order[i]] < x[order[j]] })

	lo, hi := order[0], order[len(order)-1]
	alpha = -0.8 // typical synchrotron spectrum as a fallback
	if flux[lo] > 0 && flux[hi] > 0 && x[lo] != x[hi] {
		alpha = math.Log(flux[hi]/flux[lo]) / math.Log(x[hi]/x[lo])
	}

	// Extrapolate the measurement closest to x=1 back to x=1.
	closest := order[0]
	for _, idx := range order {
		if math.Abs(math.Log(x[idx])) < math.Abs(math.Log(x[closest])) {
			closest = idx
		}
	}
	amp = flux[closest] * math.Pow(1/x[closest], alpha)
	if amp <= 0 || math.IsNaN(amp) || math.IsInf(amp, 0) {
		amp = flux[closest]
	}
	return amp, alpha
}

// powerLaw: S(x) = a * x^alpha.
type powerLaw struct{}

func (powerLaw) Name() string   { return "pow" }
func (powerLaw) NumParams() int { return 2 }

func (powerLaw) Eval(p []float64, x float64) float64 {
	return p[0] * math.Pow(x, p[1])
}

func (powerLaw) Guess(x, flux []float64) []float64 {
	amp, alpha := guessSlope(x, flux)
	return []float64{amp, alpha}
}

func (powerLaw) Alpha(p []float64) float64 { return p[1] }

// curvedPowerLaw: S(x) = a * x^alpha * exp(q * ln(x)^2).
type curvedPowerLaw struct{}

func (curvedPowerLaw) Name() string   { return "curve" }
func (curvedPowerLaw) NumParams() int { return 3 }

func (curvedPowerLaw) Eval(p []float64, x float64) float64 {
	lx := math.Log(x)
	return p[0] * math.Pow(x, p[1]) * math.Exp(p[2]*lx*lx)
}

func (curvedPowerLaw) Guess(x, flux []float64) []float64 {
	amp, alpha := guessSlope(x, flux)
	return []float64{amp, alpha, 0}
}

func (curvedPowerLaw) Alpha(p []float64) float64 { return p[1] }

// synchrotronSelfAbsorption: S(x) = a * (x/xp)^2.5 * (1 - exp(-tau)) with
// tau = (x/xp)^(alpha-2.5), peaking near x = xp.
type synchrotronSelfAbsorption struct{}

func (synchrotronSelfAbsorption) Name() string   { return "SSA" }
func (synchrotronSelfAbsorption) NumParams() int { return 3 }

func (synchrotronSelfAbsorption) Eval(p []float64, x float64) float64 {
	a, xp, alpha := p[0], p[1], p[2]
	if xp <= 0 {
		return math.NaN()
	}
	r := x / xp
	tau := math.Pow(r, alpha-2.5)
	return a * math.Pow(r, 2.5) * (1 - math.Exp(-tau))
}

func (synchrotronSelfAbsorption) Guess(x, flux []float64) []float64 {
	_, alpha := guessSlope(x, flux)
	// Assume the turnover sits at or below the lowest observed frequency.
	minX, maxFlux := math.Inf(1), 0.0
	for i := range x {
		minX = math.Min(minX, x[i])
		maxFlux = math.Max(maxFlux, flux[i])
	}
	return []float64{maxFlux, minX / 2, alpha}
}

func (synchrotronSelfAbsorption) Alpha(p []float64) float64 { return p[2] }

// freeFreeAbsorption: S(x) = a * x^alpha * exp(-b * x^-2.1).
type freeFreeAbsorption struct{}

func (freeFreeAbsorption) Name() string   { return "FFA" }
func (freeFreeAbsorption) NumParams() int { return 3 }

func (freeFreeAbsorption) Eval(p []float64, x float64) float64 {
	return p[0] * math.Pow(x, p[1]) * math.Exp(-p[2]*math.Pow(x, -2.1))
}

func (freeFreeAbsorption) Guess(x, flux []float64) []float64 {
	amp, alpha := guessSlope(x, flux)
	return []float64{amp, alpha, 0.01}
}

func (freeFreeAbsorption) Alpha(p []float64) float64 { return p[1] }
