// Package datastore persists run artifacts: filtered source sets, matched
// pairs, spectral fits and the final metrics table. Persistence is always an
// explicit request from the pipeline, never an implicit side effect.
package datastore

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"radioval/internal/catalogue"
	"radioval/internal/conf"
	"radioval/internal/crossmatch"
	"radioval/internal/errors"
	"radioval/internal/logging"
	obsmetrics "radioval/internal/observability/metrics"
	"radioval/internal/sed"
	"radioval/internal/validation"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	// SaveFilteredSources satisfies catalogue.Sink.
	SaveFilteredSources(ctx context.Context, cat *catalogue.Catalogue, criteria conf.FilterCriteria, sources []*catalogue.Source) error
	// HasFilteredSet reports whether a filtered set for the catalogue
	// under the given criteria fingerprint already exists.
	HasFilteredSet(ctx context.Context, catalogueName, fingerprint string) (bool, error)

	SaveCrossMatches(ctx context.Context, primaryName, referenceName string, pairs []crossmatch.CrossMatch) error
	SaveSpectralFits(ctx context.Context, fits []sed.FitResult) error
	SaveMetrics(ctx context.Context, metrics []validation.Metric) error
	// GetMetrics returns the stored metrics for one reference catalogue,
	// or errors.ErrArtifactNotFound when none exist.
	GetMetrics(ctx context.Context, catalogueName string) ([]validation.Metric, error)
}

// DataStore implements Interface on a GORM database. The SQLite and MySQL
// stores embed it and differ only in how they open the connection.
type DataStore struct {
	DB      *gorm.DB
	log     *slog.Logger
	metrics *obsmetrics.DatastoreMetrics
}

// New creates a store from the output settings. It returns nil when no
// store is enabled; callers treat a nil store as persistence disabled.
func New(settings *conf.Settings, m *obsmetrics.DatastoreMetrics) Interface {
	base := DataStore{
		log:     logging.ForService("datastore"),
		metrics: m,
	}
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{DataStore: base, Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{DataStore: base, Settings: settings}
	default:
		return nil
	}
}

func (ds *DataStore) observe(operation string, start time.Time, err error) {
	if ds.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ds.metrics.RecordOperation(operation, outcome, time.Since(start))
}

// SaveFilteredSources stores the surviving sources of one filter application
// together with the criteria fingerprint that produced them, in a single
// transaction.
func (ds *DataStore) SaveFilteredSources(ctx context.Context, cat *catalogue.Catalogue, criteria conf.FilterCriteria, sources []*catalogue.Source) (err error) {
	start := time.Now()
	defer func() { ds.observe("save_filtered", start, err) }()

	set := FilteredSet{
		Catalogue:   cat.Name,
		Revision:    cat.Revision(),
		Fingerprint: criteria.Fingerprint(),
		Sources:     make([]FilteredSource, 0, len(sources)),
	}
	for _, s := range sources {
		set.Sources = append(set.Sources, FilteredSource{
			SourceID: s.ID,
			RA:       s.RA.Value,
			Dec:      s.Dec.Value,
			Flux:     s.Flux.Value,
			FluxErr:  s.Flux.Err,
			Peak:     s.Peak.Value,
			RMS:      s.RMS.Value,
			Maj:      s.Maj,
			Min:      s.Min,
			PA:       s.PA,
		})
	}

	if dbErr := ds.DB.WithContext(ctx).Create(&set).Error; dbErr != nil {
		err = errors.New(dbErr).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_filtered").
			Context("catalogue", cat.Name).
			Build()
		return err
	}
	ds.log.Debug("saved filtered set",
		"catalogue", cat.Name, "sources", len(sources), "fingerprint", set.Fingerprint)
	return nil
}

// HasFilteredSet reports whether the catalogue was already filtered under
// the given criteria fingerprint in a previous run.
func (ds *DataStore) HasFilteredSet(ctx context.Context, catalogueName, fingerprint string) (ok bool, err error) {
	start := time.Now()
	defer func() { ds.observe("lookup_filtered", start, err) }()

	var count int64
	dbErr := ds.DB.WithContext(ctx).Model(&FilteredSet{}).
		Where("catalogue = ? AND fingerprint = ?", catalogueName, fingerprint).
		Count(&count).Error
	if dbErr != nil {
		err = errors.New(dbErr).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "lookup_filtered").
			Build()
		return false, err
	}
	result := "miss"
	if count > 0 {
		result = "hit"
	}
	if ds.metrics != nil {
		ds.metrics.RecordCacheLookup("filtered_set", result)
	}
	return count > 0, nil
}

// SaveCrossMatches stores the matched-pairs table for one reference
// catalogue, replacing any pairs an earlier run left for the same
// primary/reference combination.
func (ds *DataStore) SaveCrossMatches(ctx context.Context, primaryName, referenceName string, pairs []crossmatch.CrossMatch) (err error) {
	start := time.Now()
	defer func() { ds.observe("save_matches", start, err) }()

	rows := make([]MatchedPair, 0, len(pairs))
	for _, p := range pairs {
		if !p.Valid {
			continue
		}
		rows = append(rows, MatchedPair{
			Primary:       primaryName,
			Reference:     referenceName,
			PrimaryID:     p.Primary.ID,
			ReferenceID:   p.Reference.ID,
			Separation:    p.Separation,
			PrimaryFlux:   p.Primary.Flux.Value,
			ReferenceFlux: p.Reference.Flux.Value,
		})
	}

	dbErr := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("primary_name = ? AND reference_name = ?", primaryName, referenceName).
			Delete(&MatchedPair{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if dbErr != nil {
		err = errors.New(dbErr).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_matches").
			Context("reference", referenceName).
			Build()
		return err
	}
	return nil
}

// SaveSpectralFits stores per-source spectral fit outcomes.
func (ds *DataStore) SaveSpectralFits(ctx context.Context, fits []sed.FitResult) (err error) {
	start := time.Now()
	defer func() { ds.observe("save_fits", start, err) }()

	rows := make([]SpectralFitRow, 0, len(fits))
	for _, f := range fits {
		rows = append(rows, SpectralFitRow{
			SourceID:      f.SourceID,
			Model:         f.Model,
			RedChiSq:      f.RedChiSq,
			SpectralIndex: f.SpectralIndex,
			FluxAtRef:     f.FluxAtRef,
			Status:        string(f.Status),
			NumFreqs:      f.NumFreqs,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	if dbErr := ds.DB.WithContext(ctx).Create(&rows).Error; dbErr != nil {
		err = errors.New(dbErr).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_fits").
			Build()
		return err
	}
	return nil
}

// SaveMetrics stores metric rows, replacing the previous rows of each
// catalogue present in the batch so GetMetrics always reads one run's worth.
func (ds *DataStore) SaveMetrics(ctx context.Context, metrics []validation.Metric) (err error) {
	start := time.Now()
	defer func() { ds.observe("save_metrics", start, err) }()

	catalogues := make(map[string]struct{})
	rows := make([]MetricRow, 0, len(metrics))
	for _, m := range metrics {
		catalogues[m.Catalogue] = struct{}{}
		rows = append(rows, MetricRow{
			Catalogue:   m.Catalogue,
			Name:        m.Name,
			Value:       m.Value,
			Uncertainty: m.Uncertainty,
			Threshold:   m.Threshold,
			Result:      string(m.Result),
			N:           m.N,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	dbErr := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for name := range catalogues {
			if err := tx.Where("catalogue = ?", name).Delete(&MetricRow{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&rows).Error
	})
	if dbErr != nil {
		err = errors.New(dbErr).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_metrics").
			Build()
		return err
	}
	return nil
}

// GetMetrics returns the stored metrics for one reference catalogue.
func (ds *DataStore) GetMetrics(ctx context.Context, catalogueName string) (out []validation.Metric, err error) {
	start := time.Now()
	defer func() { ds.observe("get_metrics", start, err) }()

	var rows []MetricRow
	dbErr := ds.DB.WithContext(ctx).
		Where("catalogue = ?", catalogueName).
		Order("id").
		Find(&rows).Error
	if dbErr != nil {
		err = errors.New(dbErr).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_metrics").
			Context("catalogue", catalogueName).
			Build()
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrArtifactNotFound).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("catalogue", catalogueName).
			Build()
	}

	out = make([]validation.Metric, 0, len(rows))
	for _, r := range rows {
		out = append(out, validation.Metric{
			Catalogue:   r.Catalogue,
			Name:        r.Name,
			Value:       r.Value,
			Uncertainty: r.Uncertainty,
			Threshold:   r.Threshold,
			Result:      validation.Result(r.Result),
			N:           r.N,
		})
	}
	return out, nil
}
