package sed

import (
	"log/slog"
	"math"
	"time"

	"radioval/internal/conf"
	"radioval/internal/logging"
	obsmetrics "radioval/internal/observability/metrics"
)

// FitStatus classifies the outcome of a spectral fit.
type FitStatus string

const (
	// StatusOK marks a converged fit with finite parameters.
	StatusOK FitStatus = "ok"
	// StatusFailed marks a fit that did not converge or produced
	// non-finite parameters.
	StatusFailed FitStatus = "failed"
	// StatusInsufficient marks a source with fewer than two distinct
	// frequencies, for which fitting was skipped.
	StatusInsufficient FitStatus = "insufficient-data"
)

// FitResult holds the outcome of fitting the model family to one source.
type FitResult struct {
	SourceID      string
	Model         string    // winning model name, empty unless StatusOK
	Params        []float64 // fitted parameter vector of the winning model
	RedChiSq      float64   // reduced chi-squared of the winning model
	FluxAtRef     float64   // winning model evaluated at the reference frequency, Jy
	SpectralIndex float64   // power-law index of the winning model's slope parameter
	Status        FitStatus
	NumFreqs      int // distinct frequencies that entered the fit
}

// Fitter fits the configured spectral models to per-source flux measurement
// sets, weighted by inverse variance.
type Fitter struct {
	models     []Model
	refFreqMHz float64
	maxIter    int
	tolerance  float64
	log        *slog.Logger
	metrics    *obsmetrics.SEDMetrics
}

// NewFitter creates a fitter for the configured models. refFreqMHz is the
// frequency the winning model is evaluated at, normally the primary
// catalogue's. The metrics collector may be nil.
func NewFitter(settings conf.SEDSettings, refFreqMHz float64, m *obsmetrics.SEDMetrics) *Fitter {
	return &Fitter{
		models:     ModelsFor(settings.Models),
		refFreqMHz: refFreqMHz,
		maxIter:    settings.MaxIterations,
		tolerance:  settings.Tolerance,
		log:        logging.ForService("sed"),
		metrics:    m,
	}
}

// Fit fits every configured model to the measurements and selects the best
// by reduced chi-squared; ties go to the model with fewer free parameters.
// Fewer than two distinct frequencies yields StatusInsufficient and
// convergence failures yield StatusFailed; neither is an error.
func (f *Fitter) Fit(sourceID string, measurements []Measurement) FitResult {
	distinct := distinctFrequencies(measurements)
	result := FitResult{SourceID: sourceID, Status: StatusInsufficient, NumFreqs: distinct}
	if distinct < 2 {
		f.log.Debug("skipping spectral fit", "source", sourceID, "distinct_frequencies", distinct)
		return result
	}

	// Normalize frequencies by the reference frequency for conditioning.
	m := len(measurements)
	x := make([]float64, m)
	flux := make([]float64, m)
	weight := make([]float64, m)
	for i, meas := range measurements {
		x[i] = meas.FrequencyMHz / f.refFreqMHz
		flux[i] = meas.Flux
		sigma := meas.FluxErr
		if sigma <= 0 {
			// Missing uncertainties get a nominal 10% error so the
			// inverse-variance weighting stays defined.
			sigma = 0.1 * math.Abs(meas.Flux)
		}
		if sigma == 0 {
			sigma = 1
		}
		weight[i] = 1 / sigma
	}

	result.Status = StatusFailed
	bestChi := math.Inf(1)
	bestParams := 0

	for _, model := range f.models {
		if model.NumParams() > m {
			// Underdetermined for this measurement set.
			continue
		}
		start := time.Now()
		params, redChi, ok := f.fitModel(model, x, flux, weight)
		status := "ok"
		if !ok {
			status = "failed"
		}
		if f.metrics != nil {
			f.metrics.RecordFit(model.Name(), status, redChi, time.Since(start))
		}
		if !ok {
			f.log.Debug("spectral model did not converge", "source", sourceID, "model", model.Name())
			continue
		}

		better := redChi < bestChi-1e-12 ||
			(math.Abs(redChi-bestChi) <= 1e-12 && model.NumParams() < bestParams)
		if better {
			bestChi = redChi
			bestParams = model.NumParams()
			result.Model = model.Name()
			result.Params = params
			result.RedChiSq = redChi
			result.FluxAtRef = model.Eval(params, 1)
			result.SpectralIndex = model.Alpha(params)
			result.Status = StatusOK
		}
	}

	if result.Status == StatusOK {
		f.log.Debug("fitted spectrum",
			"source", sourceID,
			"model", result.Model,
			"red_chi_sq", result.RedChiSq,
			"flux_at_ref", result.FluxAtRef)
	}
	return result
}

// fitModel runs the weighted nonlinear least squares for one model.
func (f *Fitter) fitModel(model Model, x, flux, weight []float64) (params []float64, redChiSq float64, ok bool) {
	m := len(x)
	residuals := func(p, out []float64) bool {
		for i := 0; i < m; i++ {
			v := model.Eval(p, x[i])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
			out[i] = (v - flux[i]) * weight[i]
		}
		return true
	}

	guess := model.Guess(x, flux)
	solution, converged := levenbergMarquardt(residuals, m, model.NumParams(), guess, f.tolerance, f.maxIter)
	if !converged || solution == nil {
		return nil, 0, false
	}

	out := make([]float64, m)
	if !residuals(solution, out) {
		return nil, 0, false
	}
	chi2 := sumOfSquares(out)
	dof := m - model.NumParams()
	if dof < 1 {
		dof = 1
	}
	return solution, chi2 / float64(dof), true
}

// distinctFrequencies counts the distinct observing frequencies present,
// with a relative tolerance so catalogue round-off does not double-count.
func distinctFrequencies(measurements []Measurement) int {
	var freqs []float64
	for _, m := range measurements {
		dup := false
		for _, f := range freqs {
			if math.Abs(m.FrequencyMHz-f) <= 1e-6*math.Max(m.FrequencyMHz, f) {
				dup = true
				break
			}
		}
		if !dup {
			freqs = append(freqs, m.FrequencyMHz)
		}
	}
	return len(freqs)
}
