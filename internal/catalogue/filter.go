package catalogue

import (
	"context"
	"fmt"
	"log/slog"

	gocache "github.com/patrickmn/go-cache"

	"radioval/internal/conf"
	"radioval/internal/errors"
	"radioval/internal/logging"
)

// Sink receives filtered source sets for persistence. Writing is an explicit
// side effect requested through FilterOptions, never implicit.
type Sink interface {
	SaveFilteredSources(ctx context.Context, cat *Catalogue, criteria conf.FilterCriteria, sources []*Source) error
}

// FilterOptions control caching and persistence of one filter application.
type FilterOptions struct {
	Redo  bool   // bypass the result cache unconditionally
	Write bool   // persist the filtered set to Sink
	Sink  Sink   // destination for persisted sets, required when Write is set
	Label string // label for persisted artifacts, e.g. "snr5"
}

// Filter applies combinable source-quality criteria to catalogues, caching
// results keyed by (criteria, source-set revision) so an identical re-run can
// be skipped.
type Filter struct {
	cache *gocache.Cache
	log   *slog.Logger
}

// NewFilter creates a filter with an empty result cache.
func NewFilter() *Filter {
	return &Filter{
		cache: gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		log:   logging.ForService("filter"),
	}
}

func (f *Filter) cacheKey(cat *Catalogue, criteria conf.FilterCriteria) string {
	return fmt.Sprintf("%s|%s", cat.Revision(), criteria.Fingerprint())
}

// Apply filters the catalogue's active source set down to the sources
// satisfying every active criterion, replaces the active set with the result
// and returns it. The unfiltered set loaded into the catalogue is retained.
//
// Re-running with identical criteria on an unchanged catalogue is served from
// the cache unless opts.Redo is set.
func (f *Filter) Apply(ctx context.Context, cat *Catalogue, criteria conf.FilterCriteria, opts FilterOptions) ([]*Source, error) {
	if !cat.Loaded() {
		return nil, errors.Newf("catalogue %s is not loaded", cat.Name).
			Component("filter").
			Category(errors.CategoryCatalogue).
			Build()
	}

	key := f.cacheKey(cat, criteria)
	if !opts.Redo {
		if cached, found := f.cache.Get(key); found {
			kept := cached.([]*Source)
			f.log.Debug("filter cache hit", "catalogue", cat.Name, "kept", len(kept))
			return kept, nil
		}
	}

	before := cat.Count()
	kept := make([]*Source, 0, before)
	for _, s := range cat.Sources() {
		if f.passes(cat, s, criteria) {
			kept = append(kept, s)
		}
	}
	cat.replaceActive(kept)

	// Cache under the new revision too, so filtering the already-filtered
	// set with the same criteria is also a hit.
	f.cache.SetDefault(key, kept)
	f.cache.SetDefault(f.cacheKey(cat, criteria), kept)

	f.log.Info("filtered catalogue",
		"catalogue", cat.Name,
		"criteria", criteria.Fingerprint(),
		"before", before,
		"kept", len(kept))

	if opts.Write {
		if opts.Sink == nil {
			return nil, errors.Newf("write requested but no sink provided").
				Component("filter").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if err := opts.Sink.SaveFilteredSources(ctx, cat, criteria, kept); err != nil {
			return nil, errors.New(fmt.Errorf("persisting filtered catalogue %s: %w", cat.Name, err)).
				Component("filter").
				Category(errors.CategoryFileIO).
				Build()
		}
	}

	return kept, nil
}

// passes reports whether the source satisfies every active criterion.
func (f *Filter) passes(cat *Catalogue, s *Source, criteria conf.FilterCriteria) bool {
	if criteria.SNR > 0 && s.SNR(cat.UsePeak) < criteria.SNR {
		return false
	}
	if criteria.FluxLim > 0 && s.FluxValue(cat.UsePeak) < criteria.FluxLim {
		return false
	}
	if criteria.RatioFrac > 0 && s.Min > 0 && s.Maj/s.Min > criteria.RatioFrac {
		return false
	}
	if criteria.ResidTol > 0 && s.Residual > criteria.ResidTol {
		return false
	}
	if criteria.PSFTol > 0 && cat.Resolution > 0 && s.Maj > criteria.PSFTol*cat.Resolution {
		return false
	}
	if criteria.RejectBlends && s.Blended {
		return false
	}
	if criteria.Flags && (s.BadFit || s.Edge) {
		return false
	}
	return true
}
