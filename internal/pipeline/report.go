package pipeline

import (
	"time"

	"radioval/internal/crossmatch"
	"radioval/internal/sed"
	"radioval/internal/validation"
)

// MatchSet is the cross-match outcome for one reference catalogue.
type MatchSet struct {
	Catalogue string
	Frequency float64 // MHz
	Matches   []crossmatch.CrossMatch
	// Validated is false when the catalogue matched too few sources for
	// metric computation.
	Validated bool
}

// Report is the full outcome of one validation run, consumed by the report
// renderer.
type Report struct {
	Name      string // survey name of the primary catalogue
	Suffix    string // artifact naming suffix, e.g. "snr5_int"
	StartedAt time.Time
	Duration  time.Duration

	// Primary catalogue counts at each stage.
	TotalSources    int // as loaded or extracted
	AfterSNRCut     int
	AfterQualityCut int

	MatchSets []MatchSet
	Fits      []sed.FitResult
	// Metrics are appended per reference catalogue, never overwritten.
	Metrics []validation.Metric

	// BranchErrors maps a reference catalogue config path to the error
	// that stopped its branch. Failed branches never block the others.
	BranchErrors map[string]error

	CorrectedImage string // set when image correction ran
	NoiseMap       string // set when a noise map was produced
}

// MetricsFor returns the metrics computed against one reference catalogue.
func (r *Report) MetricsFor(catalogueName string) []validation.Metric {
	var out []validation.Metric
	for _, m := range r.Metrics {
		if m.Catalogue == catalogueName {
			out = append(out, m)
		}
	}
	return out
}
