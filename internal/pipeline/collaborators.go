package pipeline

import (
	"context"

	"radioval/internal/catalogue"
	"radioval/internal/conf"
)

// SourceFinder extracts a source catalogue from an image. Implementations
// wrap an external source-finding tool.
type SourceFinder interface {
	FindSources(ctx context.Context, imagePath string) (*catalogue.Catalogue, error)
}

// NoiseMapper produces a background noise estimate for an image, returning a
// handle to the noise-map artifact.
type NoiseMapper interface {
	NoiseMap(ctx context.Context, imagePath string) (string, error)
}

// CatalogueLoader reads catalogues from files. Implementations own the file
// format; the pipeline only sees loaded catalogues.
type CatalogueLoader interface {
	LoadPrimary(ctx context.Context, path string) (*catalogue.Catalogue, error)
	LoadReference(ctx context.Context, cfg *conf.CatalogueConfig) (*catalogue.Catalogue, error)
}

// ReportRenderer renders the final metrics table. Implementations produce
// HTML, plots or plain text; the pipeline only hands over the report.
type ReportRenderer interface {
	Render(ctx context.Context, report *Report) error
}

// ImageCorrector applies the measured positional offsets and flux factor to
// the original image, producing a corrected image artifact.
type ImageCorrector interface {
	Correct(ctx context.Context, imagePath string, raOffsetArcsec, decOffsetArcsec, fluxFactor float64) (string, error)
}
