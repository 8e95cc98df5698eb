// Package catalogue provides the domain model for radio source catalogues:
// detected sources with positions, fluxes and shape information, and the
// filtering operations applied to them before validation.
//
// A Catalogue keeps its unfiltered source set alongside the active one, so
// source-count statistics can be computed over everything above the SNR cut
// even after the quality cuts have been applied.
package catalogue

import (
	"fmt"

	"github.com/google/uuid"

	"radioval/internal/errors"
)

// Provenance records how a catalogue was obtained.
type Provenance string

const (
	// ProvenanceSourceFinder marks a catalogue extracted from an image by
	// the external source finder.
	ProvenanceSourceFinder Provenance = "source-finder"
	// ProvenanceSupplied marks a catalogue read from a user-supplied file.
	ProvenanceSupplied Provenance = "supplied"
)

// Quantity is a measured value with its 1-sigma uncertainty.
type Quantity struct {
	Value float64
	Err   float64
}

// Source represents one detected radio source.
type Source struct {
	ID string // identifier, unique within its catalogue

	// Sky position in degrees.
	RA  Quantity
	Dec Quantity

	// Flux measurements in Jy; RMS is the local noise estimate.
	Flux Quantity // integrated flux
	Peak Quantity // peak flux
	RMS  Quantity

	// Shape: FWHM axes in arcsec, position angle in degrees, and the
	// axis sizes relative to the restoring beam.
	Maj      float64
	Min      float64
	PA       float64
	MajRatio float64
	MinRatio float64

	// Source-finder quality information.
	Residual float64 // fit residual in units of the local RMS
	Blended  bool    // component shares an island with others
	BadFit   bool    // resolved but the isolated Gaussian fit failed
	Edge     bool    // touches the edge of the image
}

// Validate checks the non-negativity invariants on flux, noise and shape.
func (s *Source) Validate() error {
	if s.Flux.Value < 0 || s.Peak.Value < 0 || s.RMS.Value < 0 {
		return fmt.Errorf("source %s: flux and noise values must be non-negative", s.ID)
	}
	if s.Maj < 0 || s.Min < 0 {
		return fmt.Errorf("source %s: axis sizes must be non-negative", s.ID)
	}
	return nil
}

// FluxValue returns the flux used for validation under the given policy.
func (s *Source) FluxValue(usePeak bool) float64 {
	if usePeak {
		return s.Peak.Value
	}
	return s.Flux.Value
}

// FluxErr returns the uncertainty matching FluxValue.
func (s *Source) FluxErr(usePeak bool) float64 {
	if usePeak {
		return s.Peak.Err
	}
	return s.Flux.Err
}

// SNR returns the signal-to-noise ratio, flux over local noise. It is always
// derived from the current flux and noise values, never stored.
func (s *Source) SNR(usePeak bool) float64 {
	if s.RMS.Value == 0 {
		return 0
	}
	return s.FluxValue(usePeak) / s.RMS.Value
}

// Catalogue is an in-memory collection of sources from one survey.
type Catalogue struct {
	Name       string      // survey/telescope identifier
	Frequency  float64     // observing frequency in MHz
	Resolution float64     // PSF FWHM in arcsec
	Provenance Provenance  // how the catalogue was obtained
	UsePeak    bool        // flux policy for SNR and flux comparisons

	sources    []*Source // active source set
	unfiltered []*Source // original set, retained for pre-filter statistics
	revision   string    // changes whenever the active set is replaced
	loaded     bool
}

// New constructs an empty, unloaded catalogue. Sources are attached with
// Load, so load failures surface at a distinct step rather than being folded
// into construction.
func New(name string, frequency, resolution float64, provenance Provenance) *Catalogue {
	return &Catalogue{
		Name:       name,
		Frequency:  frequency,
		Resolution: resolution,
		Provenance: provenance,
		revision:   uuid.NewString(),
	}
}

// Load attaches the source set to the catalogue. It validates every source
// and may only be called once.
func (c *Catalogue) Load(sources []*Source) error {
	if c.loaded {
		return errors.Newf("catalogue %s is already loaded", c.Name).
			Component("catalogue").
			Category(errors.CategoryCatalogue).
			Build()
	}
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if err := s.Validate(); err != nil {
			return errors.New(err).
				Component("catalogue").
				Category(errors.CategoryValidation).
				CatalogueContext(c.Name, len(sources)).
				Build()
		}
		if _, dup := seen[s.ID]; dup {
			return errors.Newf("catalogue %s: duplicate source id %s", c.Name, s.ID).
				Component("catalogue").
				Category(errors.CategoryValidation).
				Build()
		}
		seen[s.ID] = struct{}{}
	}
	c.sources = sources
	c.unfiltered = sources
	c.revision = uuid.NewString()
	c.loaded = true
	return nil
}

// Loaded reports whether Load has been called.
func (c *Catalogue) Loaded() bool {
	return c.loaded
}

// Sources returns the active source set. Callers must not mutate it.
func (c *Catalogue) Sources() []*Source {
	return c.sources
}

// Unfiltered returns the source set as loaded, before any filtering.
func (c *Catalogue) Unfiltered() []*Source {
	return c.unfiltered
}

// Count returns the size of the active source set.
func (c *Catalogue) Count() int {
	return len(c.sources)
}

// UnfilteredCount returns the size of the source set as loaded.
func (c *Catalogue) UnfilteredCount() int {
	return len(c.unfiltered)
}

// Revision identifies the current active source set. It changes whenever the
// set is replaced, which makes it usable as a cache key component.
func (c *Catalogue) Revision() string {
	return c.revision
}

// replaceActive swaps in a new active source set and bumps the revision.
// The unfiltered set is untouched.
func (c *Catalogue) replaceActive(sources []*Source) {
	c.sources = sources
	c.revision = uuid.NewString()
}

// Lookup returns the source with the given id from the active set.
func (c *Catalogue) Lookup(id string) (*Source, bool) {
	for _, s := range c.sources {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}
