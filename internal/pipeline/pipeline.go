// Package pipeline sequences a validation run: primary catalogue
// acquisition, filtering, per-reference cross-matching, spectral fitting,
// metric computation and optional image correction.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"radioval/internal/catalogue"
	"radioval/internal/conf"
	"radioval/internal/crossmatch"
	"radioval/internal/datastore"
	"radioval/internal/errors"
	"radioval/internal/logging"
	"radioval/internal/observability"
	obsmetrics "radioval/internal/observability/metrics"
	"radioval/internal/sed"
	"radioval/internal/validation"
)

// Input identifies what a run validates: an image to extract sources from,
// or an already-extracted catalogue file. Exactly one must be set.
type Input struct {
	ImagePath     string
	CataloguePath string
}

// Collaborators are the external capabilities injected into the
// orchestrator. Finder and NoiseMapper are only needed for image input;
// Renderer, Corrector and Store may be nil to disable their stage.
type Collaborators struct {
	Finder      SourceFinder
	NoiseMapper NoiseMapper
	Loader      CatalogueLoader
	Renderer    ReportRenderer
	Corrector   ImageCorrector
	Store       datastore.Interface
}

// Orchestrator runs the validation pipeline.
type Orchestrator struct {
	settings *conf.Settings
	collab   Collaborators
	filter   *catalogue.Filter
	matcher  *crossmatch.Matcher
	engine   *validation.Engine
	metrics  *observability.Metrics
	log      *slog.Logger
}

// New creates an orchestrator. The metrics bundle may be nil.
func New(settings *conf.Settings, collab Collaborators, m *observability.Metrics) *Orchestrator {
	o := &Orchestrator{
		settings: settings,
		collab:   collab,
		filter:   catalogue.NewFilter(),
		metrics:  m,
		log:      logging.ForService("pipeline"),
	}
	if m != nil {
		o.matcher = crossmatch.NewMatcher(m.CrossMatch)
		o.engine = validation.NewEngine(settings.Validation, m.Pipeline)
	} else {
		o.matcher = crossmatch.NewMatcher(nil)
		o.engine = validation.NewEngine(settings.Validation, nil)
	}
	return o
}

// branchResult is the outcome of one reference-catalogue branch. Each branch
// owns its result exclusively until the serialized merge after all branches
// finish.
type branchResult struct {
	configPath string
	cfg        *conf.CatalogueConfig
	reference  *catalogue.Catalogue
	matches    []crossmatch.CrossMatch
	err        error
}

// Run executes one validation run and returns its report. Branch failures
// are reported inside the report; Run itself fails only when the primary
// catalogue cannot be acquired or filtered.
func (o *Orchestrator) Run(ctx context.Context, input Input) (*Report, error) {
	start := time.Now()
	report := &Report{
		Name:         o.settings.Main.Name,
		Suffix:       o.settings.RunSuffix(),
		StartedAt:    start,
		BranchErrors: make(map[string]error),
	}

	primary, err := o.acquirePrimary(ctx, input, report)
	if err != nil {
		return nil, err
	}
	report.TotalSources = primary.UnfilteredCount()

	if err := o.applyFilters(ctx, primary, report); err != nil {
		return nil, err
	}

	results := o.runBranches(ctx, primary)

	// Serialized merge: one writer folds the branch results into the
	// shared accumulator, so branches never share mutable state.
	fluxes := make(map[string][]sed.Measurement)
	matchedCatalogues := 0
	for i := range results {
		res := &results[i]
		if res.err != nil {
			report.BranchErrors[res.configPath] = res.err
			o.recordBranch("failed")
			o.log.Error("reference branch failed", "config", res.configPath, "error", res.err)
			continue
		}

		valid := 0
		for _, m := range res.matches {
			if m.Valid {
				valid++
			}
		}
		set := MatchSet{
			Catalogue: res.cfg.Name,
			Frequency: res.cfg.Frequency,
			Matches:   res.matches,
			Validated: valid > 1,
		}
		report.MatchSets = append(report.MatchSets, set)

		if !set.Validated {
			// A reference that matched at most one source carries no
			// statistical weight.
			o.recordBranch("skipped")
			o.log.Warn("too few matches, skipping validation",
				"catalogue", res.cfg.Name, "matches", valid)
			continue
		}
		o.recordBranch("ok")
		matchedCatalogues++

		usePeak := res.cfg.UsePeak
		for _, m := range res.matches {
			if !m.Valid {
				continue
			}
			fluxes[m.Primary.ID] = append(fluxes[m.Primary.ID], sed.Measurement{
				Catalogue:    res.cfg.Name,
				FrequencyMHz: res.cfg.Frequency,
				Flux:         m.Reference.FluxValue(usePeak),
				FluxErr:      m.Reference.FluxErr(usePeak),
			})
		}

		if o.persistAll() {
			if err := o.collab.Store.SaveCrossMatches(ctx, primary.Name, res.cfg.Name, res.matches); err != nil {
				o.log.Error("failed to persist matches", "catalogue", res.cfg.Name, "error", err)
			}
		}
	}

	o.fitSpectra(ctx, primary, fluxes, matchedCatalogues, report)
	o.computeMetrics(ctx, report)
	o.correctImage(ctx, input, report)

	report.Duration = time.Since(start)
	if o.metrics != nil && o.metrics.Pipeline != nil {
		o.metrics.Pipeline.RecordRun(report.Duration)
	}

	// The report is always rendered; write flags only govern persisted
	// artifacts.
	if o.collab.Renderer != nil {
		if err := o.collab.Renderer.Render(ctx, report); err != nil {
			o.log.Error("report rendering failed", "error", err)
		}
	}

	o.log.Info("validation run complete",
		"name", report.Name,
		"sources", report.TotalSources,
		"references", len(report.MatchSets),
		"metrics", len(report.Metrics),
		"duration", report.Duration)
	return report, nil
}

// acquirePrimary obtains the primary catalogue from the source finder or a
// supplied catalogue file.
func (o *Orchestrator) acquirePrimary(ctx context.Context, input Input, report *Report) (*catalogue.Catalogue, error) {
	switch {
	case input.ImagePath != "" && input.CataloguePath != "":
		return nil, errors.Newf("both an image and a catalogue were given").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()

	case input.ImagePath != "":
		if o.collab.Finder == nil {
			return nil, errors.Newf("image input requires a source finder").
				Component("pipeline").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if o.collab.NoiseMapper != nil {
			noiseMap, err := o.collab.NoiseMapper.NoiseMap(ctx, input.ImagePath)
			if err != nil {
				return nil, errors.New(err).
					Component("pipeline").
					Category(errors.CategoryFileIO).
					Context("image", input.ImagePath).
					Build()
			}
			report.NoiseMap = noiseMap
		}
		cat, err := o.collab.Finder.FindSources(ctx, input.ImagePath)
		if err != nil {
			return nil, errors.New(err).
				Component("pipeline").
				Category(errors.CategoryCatalogue).
				Context("image", input.ImagePath).
				Build()
		}
		o.log.Info("extracted primary catalogue", "image", input.ImagePath, "sources", cat.Count())
		return cat, nil

	case input.CataloguePath != "":
		if o.collab.Loader == nil {
			return nil, errors.Newf("catalogue input requires a catalogue loader").
				Component("pipeline").
				Category(errors.CategoryConfiguration).
				Build()
		}
		cat, err := o.collab.Loader.LoadPrimary(ctx, input.CataloguePath)
		if err != nil {
			return nil, errors.New(err).
				Component("pipeline").
				Category(errors.CategoryCatalogue).
				Context("path", input.CataloguePath).
				Build()
		}
		o.log.Info("loaded primary catalogue", "path", input.CataloguePath, "sources", cat.Count())
		return cat, nil

	default:
		return nil, errors.Newf("no image or catalogue input was given").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// applyFilters runs the SNR cut and then the quality criteria on the primary
// catalogue, recording the per-stage counts.
func (o *Orchestrator) applyFilters(ctx context.Context, primary *catalogue.Catalogue, report *Report) error {
	v := o.settings.Validation

	// The SNR-filtered set persists under the general write flag, the
	// quality-cut set only under the write-all flag.
	snrCriteria := conf.FilterCriteria{SNR: v.SNRCut}
	kept, err := o.filter.Apply(ctx, primary, snrCriteria, o.filterOptions(ctx, primary, snrCriteria, "snr", o.persistAny()))
	if err != nil {
		return err
	}
	report.AfterSNRCut = len(kept)

	quality := conf.DefaultQualityCriteria()
	if v.FilterConfig != "" {
		quality, err = conf.LoadFilterCriteria(v.FilterConfig)
		if err != nil {
			return err
		}
	}
	kept, err = o.filter.Apply(ctx, primary, quality, o.filterOptions(ctx, primary, quality, "quality", o.persistAll()))
	if err != nil {
		return err
	}
	report.AfterQualityCut = len(kept)
	if o.metrics != nil && o.metrics.Pipeline != nil {
		o.metrics.Pipeline.SetFilteredSources(report.AfterQualityCut)
	}

	o.log.Info("filtered primary catalogue",
		"total", report.TotalSources,
		"after_snr_cut", report.AfterSNRCut,
		"after_quality_cut", report.AfterQualityCut)
	return nil
}

// filterOptions derives the filter cache and persistence behaviour for one
// filter stage. A set already persisted under the same criteria is not
// written again unless the run forces a redo.
func (o *Orchestrator) filterOptions(ctx context.Context, cat *catalogue.Catalogue, criteria conf.FilterCriteria, label string, persist bool) catalogue.FilterOptions {
	opts := catalogue.FilterOptions{
		Redo:  o.settings.Validation.Redo,
		Label: label,
	}
	if !persist {
		return opts
	}
	opts.Sink = o.collab.Store
	opts.Write = true
	if !opts.Redo {
		exists, err := o.collab.Store.HasFilteredSet(ctx, cat.Name, criteria.Fingerprint())
		if err == nil && exists {
			opts.Write = false
		}
	}
	return opts
}

// runBranches cross-matches the primary catalogue against every configured
// reference catalogue concurrently. Each branch fills its own slot; a branch
// failure or cancellation never disturbs the others.
func (o *Orchestrator) runBranches(ctx context.Context, primary *catalogue.Catalogue) []branchResult {
	configs := o.settings.Validation.Catalogues
	results := make([]branchResult, len(configs))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range configs {
		results[i].configPath = path
		res := &results[i]
		g.Go(func() error {
			res.err = o.runBranch(ctx, primary, res)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runBranch loads and cross-matches one reference catalogue.
func (o *Orchestrator) runBranch(ctx context.Context, primary *catalogue.Catalogue, res *branchResult) error {
	if err := ctx.Err(); err != nil {
		return errors.New(err).
			Component("pipeline").
			Category(errors.CategoryCancellation).
			Context("config", res.configPath).
			Build()
	}

	cfg, err := conf.LoadCatalogueConfig(res.configPath)
	if err != nil {
		return err
	}
	res.cfg = cfg

	if o.collab.Loader == nil {
		return errors.Newf("reference catalogues require a catalogue loader").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
	ref, err := o.collab.Loader.LoadReference(ctx, cfg)
	if err != nil {
		return errors.New(err).
			Component("pipeline").
			Category(errors.CategoryCatalogue).
			Context("catalogue", cfg.Name).
			Build()
	}
	res.reference = ref

	maxSep := o.settings.Validation.MatchRadius
	if maxSep <= 0 {
		maxSep = crossmatch.DefaultMaxSeparation(primary, ref)
	}
	res.matches = o.matcher.Match(primary, ref, maxSep)
	return nil
}

// fitSpectra fits the configured spectral models to the accumulated flux
// measurements. Any matched reference catalogue is enough to attempt a fit;
// the fitter marks sources without two distinct frequencies as insufficient.
func (o *Orchestrator) fitSpectra(ctx context.Context, primary *catalogue.Catalogue, fluxes map[string][]sed.Measurement, matchedCatalogues int, report *Report) {
	if matchedCatalogues < 1 || len(o.settings.SED.Models) == 0 {
		return
	}

	fitter := sed.NewFitter(o.settings.SED, primary.Frequency, o.metricsSED())

	ids := make([]string, 0, len(fluxes))
	for id := range fluxes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	usePeak := o.settings.Validation.UsePeakFlux
	for _, id := range ids {
		measurements := fluxes[id]
		if o.settings.SED.IncludePrimary {
			if src, ok := primary.Lookup(id); ok {
				measurements = append(measurements, sed.Measurement{
					Catalogue:    primary.Name,
					FrequencyMHz: primary.Frequency,
					Flux:         src.FluxValue(usePeak),
					FluxErr:      src.FluxErr(usePeak),
				})
			}
		}
		report.Fits = append(report.Fits, fitter.Fit(id, measurements))
	}

	if o.persistAny() {
		if err := o.collab.Store.SaveSpectralFits(ctx, report.Fits); err != nil {
			o.log.Error("failed to persist spectral fits", "error", err)
		}
	}
	o.log.Info("fitted spectra", "sources", len(report.Fits), "catalogues", matchedCatalogues)
}

// computeMetrics fills the report's metrics table, one block per validated
// match set. Unless the run forces a redo, a set whose metrics were persisted
// by an earlier run is read back instead of recomputed.
func (o *Orchestrator) computeMetrics(ctx context.Context, report *Report) {
	var fresh []validation.Metric
	for _, set := range report.MatchSets {
		if !set.Validated {
			continue
		}
		if stored, ok := o.storedMetrics(ctx, set.Catalogue); ok {
			report.Metrics = append(report.Metrics, stored...)
			continue
		}
		computed := o.engine.Compute(set.Matches, set.Catalogue)
		report.Metrics = append(report.Metrics, computed...)
		fresh = append(fresh, computed...)
	}

	if len(fresh) > 0 && o.persistAny() {
		if err := o.collab.Store.SaveMetrics(ctx, fresh); err != nil {
			o.log.Error("failed to persist metrics", "error", err)
		}
	}
}

// storedMetrics looks up metrics persisted for a reference catalogue by an
// earlier run. A miss is not an error, just a reason to recompute.
func (o *Orchestrator) storedMetrics(ctx context.Context, catalogueName string) ([]validation.Metric, bool) {
	if o.settings.Validation.Redo || o.collab.Store == nil {
		return nil, false
	}
	stored, err := o.collab.Store.GetMetrics(ctx, catalogueName)
	if err != nil {
		if !errors.Is(err, errors.ErrArtifactNotFound) {
			o.log.Warn("stored metrics lookup failed", "catalogue", catalogueName, "error", err)
		}
		return nil, false
	}
	o.log.Info("reusing stored metrics", "catalogue", catalogueName, "metrics", len(stored))
	return stored, true
}

// correctImage applies the measured offsets back onto the original image
// when correction was requested. Level 1 applies positions only with a flux
// factor of 1; level 2 also applies the flux-ratio factor. Flux is never
// corrected on its own.
func (o *Orchestrator) correctImage(ctx context.Context, input Input, report *Report) {
	level := o.settings.Correction.Level
	if level < 1 || input.ImagePath == "" || o.collab.Corrector == nil {
		return
	}

	raOff, decOff, fluxRatio, found := referenceCorrections(report)
	if !found {
		o.log.Warn("image correction skipped, no determined offset metrics")
		return
	}

	fluxFactor := 1.0
	if level >= 2 && fluxRatio > 0 {
		fluxFactor = fluxRatio
	}

	corrected, err := o.collab.Corrector.Correct(ctx, input.ImagePath, raOff, decOff, fluxFactor)
	if err != nil {
		o.log.Error("image correction failed", "error", errors.New(err).
			Component("pipeline").
			Category(errors.CategoryImageCorrection).
			Build())
		return
	}
	report.CorrectedImage = corrected
	o.log.Info("corrected image",
		"path", corrected,
		"ra_offset_arcsec", raOff,
		"dec_offset_arcsec", decOff,
		"flux_factor", fluxFactor)
}

// referenceCorrections reads the offset and flux-ratio values back from the
// first reference catalogue whose offset metrics were determined.
func referenceCorrections(report *Report) (raOff, decOff, fluxRatio float64, found bool) {
	for _, set := range report.MatchSets {
		var ra, dec, ratio float64
		var haveRA, haveDec bool
		for _, m := range report.MetricsFor(set.Catalogue) {
			if m.Result == validation.ResultUndetermined {
				continue
			}
			switch m.Name {
			case validation.MetricRAOffset:
				ra, haveRA = m.Value, true
			case validation.MetricDecOffset:
				dec, haveDec = m.Value, true
			case validation.MetricFluxRatio:
				ratio = m.Value
			}
		}
		if haveRA && haveDec {
			return ra, dec, ratio, true
		}
	}
	return 0, 0, 0, false
}

func (o *Orchestrator) persistAny() bool {
	return o.settings.Validation.WriteAny && o.collab.Store != nil
}

func (o *Orchestrator) persistAll() bool {
	return o.settings.Validation.WriteAll && o.collab.Store != nil
}

func (o *Orchestrator) recordBranch(outcome string) {
	if o.metrics != nil && o.metrics.Pipeline != nil {
		o.metrics.Pipeline.RecordBranch(outcome)
	}
}

func (o *Orchestrator) metricsSED() *obsmetrics.SEDMetrics {
	if o.metrics == nil {
		return nil
	}
	return o.metrics.SED
}
