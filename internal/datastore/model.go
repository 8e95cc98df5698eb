package datastore

import (
	"time"

	"gorm.io/gorm"
)

// FilteredSet records one persisted filter application: which catalogue
// revision was filtered under which criteria fingerprint. The presence of a
// set is what lets a later run skip re-filtering.
type FilteredSet struct {
	ID          uint   `gorm:"primaryKey"`
	Catalogue   string `gorm:"index:idx_set_identity"`
	Revision    string `gorm:"index:idx_set_identity"`
	Fingerprint string `gorm:"index:idx_set_identity"`
	RunSuffix   string
	CreatedAt   time.Time
	Sources     []FilteredSource `gorm:"foreignKey:SetID"`
}

// FilteredSource is one surviving source of a filtered set.
type FilteredSource struct {
	ID       uint `gorm:"primaryKey"`
	SetID    uint `gorm:"index"`
	SourceID string
	RA       float64
	Dec      float64
	Flux     float64
	FluxErr  float64
	Peak     float64
	RMS      float64
	Maj      float64
	Min      float64
	PA       float64
}

// MatchedPair is one persisted cross-match row.
type MatchedPair struct {
	ID            uint   `gorm:"primaryKey"`
	Primary       string `gorm:"column:primary_name;index:idx_pair_catalogues"`
	Reference     string `gorm:"column:reference_name;index:idx_pair_catalogues"`
	PrimaryID     string
	ReferenceID   string
	Separation    float64 // arcsec
	PrimaryFlux   float64
	ReferenceFlux float64
	CreatedAt     time.Time
}

// MetricRow is one persisted validation metric.
type MetricRow struct {
	ID          uint   `gorm:"primaryKey"`
	Catalogue   string `gorm:"index"`
	Name        string
	Value       float64
	Uncertainty float64
	Threshold   float64
	Result      string
	N           int
	CreatedAt   time.Time
}

// SpectralFitRow is one persisted spectral fit outcome.
type SpectralFitRow struct {
	ID            uint   `gorm:"primaryKey"`
	SourceID      string `gorm:"index"`
	Model         string
	RedChiSq      float64
	SpectralIndex float64
	FluxAtRef     float64
	Status        string
	NumFreqs      int
	CreatedAt     time.Time
}

// performAutoMigration creates or updates the artifact tables.
func performAutoMigration(db *gorm.DB) error {
	return db.AutoMigrate(
		&FilteredSet{},
		&FilteredSource{},
		&MatchedPair{},
		&MetricRow{},
		&SpectralFitRow{},
	)
}
