// Package validation computes the per-reference-catalogue validation
// metrics: astrometric offsets, the flux-scale ratio and the differential
// source-count slope, each with a pass/fail verdict.
package validation

import (
	"log/slog"
	"math"

	"radioval/internal/conf"
	"radioval/internal/crossmatch"
	"radioval/internal/logging"
	obsmetrics "radioval/internal/observability/metrics"
	"radioval/internal/stats"
)

// Metric names. The image-correction step reads the offset and flux-ratio
// metrics back by name.
const (
	MetricRAOffset    = "RA Offset"
	MetricDecOffset   = "DEC Offset"
	MetricFluxRatio   = "Flux Ratio"
	MetricCountsSlope = "Source Counts Slope"
)

// Result is the verdict of one metric.
type Result string

const (
	ResultPass Result = "pass"
	ResultFail Result = "fail"
	// ResultUndetermined marks a metric that could not be computed from
	// the available matches, as opposed to one that was computed and
	// failed its threshold.
	ResultUndetermined Result = "undetermined"
)

// Metric is one computed validation metric. Metrics are immutable once
// computed; image correction reads them but never alters them.
type Metric struct {
	Catalogue   string  // reference catalogue the metric was computed against
	Name        string
	Value       float64
	Uncertainty float64
	Threshold   float64
	Result      Result
	N           int // pairs or bins that survived clipping
}

// Engine computes validation metrics from cross-matched source pairs.
type Engine struct {
	settings conf.ValidationSettings
	log      *slog.Logger
	metrics  *obsmetrics.PipelineMetrics
}

// NewEngine creates a metrics engine. The metrics collector may be nil.
func NewEngine(settings conf.ValidationSettings, m *obsmetrics.PipelineMetrics) *Engine {
	return &Engine{
		settings: settings,
		log:      logging.ForService("validation"),
		metrics:  m,
	}
}

// Compute derives the validation metrics for one reference catalogue from
// its cross-matched pairs. Metrics are independent: an undetermined or
// failing metric never blocks the others. Fewer valid pairs than MinMatches
// marks every metric undetermined.
func (e *Engine) Compute(matches []crossmatch.CrossMatch, refName string) []Metric {
	valid := make([]crossmatch.CrossMatch, 0, len(matches))
	for _, m := range matches {
		if m.Valid {
			valid = append(valid, m)
		}
	}

	out := []Metric{
		e.offsetMetric(valid, refName, false),
		e.offsetMetric(valid, refName, true),
		e.fluxRatioMetric(valid, refName),
		e.countsSlopeMetric(valid, refName),
	}

	for _, metric := range out {
		if e.metrics != nil {
			e.metrics.RecordMetricOutcome(metric.Name, string(metric.Result))
		}
		e.log.Info("computed metric",
			"catalogue", refName,
			"metric", metric.Name,
			"value", metric.Value,
			"uncertainty", metric.Uncertainty,
			"result", metric.Result)
	}
	return out
}

// offsetMetric computes the sigma-clipped median positional offset between
// the matched pairs, in arcsec. RA deltas are scaled by cos(Dec) so the
// offset is a true angular distance on the sky.
func (e *Engine) offsetMetric(matches []crossmatch.CrossMatch, refName string, dec bool) Metric {
	name := MetricRAOffset
	if dec {
		name = MetricDecOffset
	}
	metric := Metric{
		Catalogue: refName,
		Name:      name,
		Threshold: e.settings.Thresholds.PositionOffsetMax,
		Result:    ResultUndetermined,
	}
	if len(matches) < e.settings.MinMatches {
		return metric
	}

	deltas := make([]float64, 0, len(matches))
	for _, m := range matches {
		if dec {
			deltas = append(deltas, (m.Primary.Dec.Value-m.Reference.Dec.Value)*3600)
			continue
		}
		d := m.Primary.RA.Value - m.Reference.RA.Value
		// Wrap across the 0/360 boundary.
		if d > 180 {
			d -= 360
		} else if d < -180 {
			d += 360
		}
		deltas = append(deltas, d*math.Cos(m.Primary.Dec.Value*math.Pi/180)*3600)
	}

	return e.finishClipped(metric, deltas, func(value, unc float64) bool {
		return math.Abs(value)-unc <= metric.Threshold
	})
}

// fluxRatioMetric computes the sigma-clipped median of primary/reference
// flux over pairs where both detections meet the SNR floor. Low-SNR pairs
// bias the ratio and are excluded up front.
func (e *Engine) fluxRatioMetric(matches []crossmatch.CrossMatch, refName string) Metric {
	metric := Metric{
		Catalogue: refName,
		Name:      MetricFluxRatio,
		Threshold: e.settings.Thresholds.FluxRatioTolerance,
		Result:    ResultUndetermined,
	}

	usePeak := e.settings.UsePeakFlux
	snrMin := e.settings.FluxRatioSNRMin
	ratios := make([]float64, 0, len(matches))
	for _, m := range matches {
		refFlux := m.Reference.FluxValue(usePeak)
		if refFlux <= 0 {
			continue
		}
		if m.Primary.SNR(usePeak) < snrMin || m.Reference.SNR(usePeak) < snrMin {
			continue
		}
		ratios = append(ratios, m.Primary.FluxValue(usePeak)/refFlux)
	}
	if len(ratios) < e.settings.MinMatches {
		return metric
	}

	return e.finishClipped(metric, ratios, func(value, unc float64) bool {
		return math.Abs(value-1)-unc <= metric.Threshold
	})
}

// finishClipped runs the sigma-clipped median over values and applies the
// pass predicate. Degenerate statistics leave the metric undetermined.
func (e *Engine) finishClipped(metric Metric, values []float64, pass func(value, unc float64) bool) Metric {
	clip := e.settings.SigmaClip
	median, unc, n, err := stats.ClippedMedian(values, clip.Kappa, clip.MaxIterations)
	if err != nil {
		e.log.Warn("metric left undetermined",
			"catalogue", metric.Catalogue, "metric", metric.Name, "error", err)
		return metric
	}

	metric.Value = median
	metric.Uncertainty = unc
	metric.N = n
	if pass(median, unc) {
		metric.Result = ResultPass
	} else {
		metric.Result = ResultFail
	}
	return metric
}

// countsSlopeMetric bins the matched primary fluxes into logarithmically
// spaced bins and fits the slope of the differential source counts in
// log-log space against the expected reference slope.
func (e *Engine) countsSlopeMetric(matches []crossmatch.CrossMatch, refName string) Metric {
	metric := Metric{
		Catalogue: refName,
		Name:      MetricCountsSlope,
		Threshold: e.settings.SourceCounts.SlopeTolerance,
		Result:    ResultUndetermined,
	}
	if len(matches) < e.settings.MinMatches {
		return metric
	}

	usePeak := e.settings.UsePeakFlux
	fluxes := make([]float64, 0, len(matches))
	minFlux, maxFlux := math.Inf(1), 0.0
	for _, m := range matches {
		f := m.Primary.FluxValue(usePeak)
		if f <= 0 {
			continue
		}
		fluxes = append(fluxes, f)
		minFlux = math.Min(minFlux, f)
		maxFlux = math.Max(maxFlux, f)
	}
	if len(fluxes) < e.settings.MinMatches || minFlux >= maxFlux {
		return metric
	}

	nBins := e.settings.SourceCounts.Bins
	if nBins < 1 {
		nBins = 1
	}
	edges := stats.LogBins(minFlux, maxFlux, nBins)
	counts := stats.BinCounts(fluxes, edges)

	// Differential counts dN/dS at the geometric bin centre, log-log.
	var logS, logN []float64
	for i, c := range counts {
		if c == 0 {
			continue
		}
		width := edges[i+1] - edges[i]
		centre := math.Sqrt(edges[i] * edges[i+1])
		logS = append(logS, math.Log10(centre))
		logN = append(logN, math.Log10(float64(c)/width))
	}
	if len(logS) < 3 {
		return metric
	}

	slope, _, slopeErr, err := stats.LinearFit(logS, logN)
	if err != nil {
		e.log.Warn("source-count fit failed", "catalogue", refName, "error", err)
		return metric
	}

	metric.Value = slope
	metric.Uncertainty = slopeErr
	metric.N = len(logS)
	if math.Abs(slope-e.settings.SourceCounts.ReferenceSlope)-slopeErr <= metric.Threshold {
		metric.Result = ResultPass
	} else {
		metric.Result = ResultFail
	}
	return metric
}
