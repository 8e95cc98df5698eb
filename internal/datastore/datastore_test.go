package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radioval/internal/catalogue"
	"radioval/internal/conf"
	"radioval/internal/crossmatch"
	"radioval/internal/errors"
	"radioval/internal/sed"
	"radioval/internal/validation"
)

func openTestStore(t *testing.T) Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = ":memory:"

	store := New(settings, nil)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSource(id string, ra, dec, flux float64) *catalogue.Source {
	return &catalogue.Source{
		ID:   id,
		RA:   catalogue.Quantity{Value: ra},
		Dec:  catalogue.Quantity{Value: dec},
		Flux: catalogue.Quantity{Value: flux, Err: flux * 0.05},
		Peak: catalogue.Quantity{Value: flux},
		RMS:  catalogue.Quantity{Value: flux / 50},
	}
}

func TestNewDisabledStores(t *testing.T) {
	t.Parallel()

	assert.Nil(t, New(&conf.Settings{}, nil))
}

func TestFilteredSetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	cat := catalogue.New("ASKAP", 943.5, 15, catalogue.ProvenanceSourceFinder)
	sources := []*catalogue.Source{
		testSource("J0001", 180.1, -30.2, 0.05),
		testSource("J0002", 180.2, -30.3, 0.02),
	}
	require.NoError(t, cat.Load(sources))

	criteria := conf.DefaultQualityCriteria()
	ok, err := store.HasFilteredSet(ctx, "ASKAP", criteria.Fingerprint())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveFilteredSources(ctx, cat, criteria, sources))

	ok, err = store.HasFilteredSet(ctx, "ASKAP", criteria.Fingerprint())
	require.NoError(t, err)
	assert.True(t, ok)

	// Different criteria are a different artifact.
	other := criteria
	other.SNR = 10
	ok, err = store.HasFilteredSet(ctx, "ASKAP", other.Fingerprint())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveCrossMatchesSkipsInvalid(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	pairs := []crossmatch.CrossMatch{
		{
			Primary:    testSource("P1", 180, -30, 0.05),
			Reference:  testSource("R1", 180, -30, 0.04),
			Separation: 1.2,
			Valid:      true,
		},
		{
			Primary:   testSource("P2", 181, -31, 0.03),
			Reference: testSource("R2", 181, -31, 0.03),
			Valid:     false,
		},
	}
	require.NoError(t, store.SaveCrossMatches(ctx, "ASKAP", "NVSS", pairs))

	ds := store.(*SQLiteStore)
	var count int64
	require.NoError(t, ds.DB.Model(&MatchedPair{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSaveCrossMatchesReplacesPreviousRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	pairs := []crossmatch.CrossMatch{
		{
			Primary:    testSource("P1", 180, -30, 0.05),
			Reference:  testSource("R1", 180, -30, 0.04),
			Separation: 1.2,
			Valid:      true,
		},
	}
	require.NoError(t, store.SaveCrossMatches(ctx, "ASKAP", "NVSS", pairs))
	require.NoError(t, store.SaveCrossMatches(ctx, "ASKAP", "SUMSS", pairs))
	// A repeat run replaces the NVSS pairs instead of appending to them.
	require.NoError(t, store.SaveCrossMatches(ctx, "ASKAP", "NVSS", pairs))

	ds := store.(*SQLiteStore)
	var count int64
	require.NoError(t, ds.DB.Model(&MatchedPair{}).
		Where("reference_name = ?", "NVSS").Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.NoError(t, ds.DB.Model(&MatchedPair{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestMetricsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	metrics := []validation.Metric{
		{Catalogue: "NVSS", Name: validation.MetricRAOffset, Value: 0.4, Uncertainty: 0.05, Threshold: 1, Result: validation.ResultPass, N: 42},
		{Catalogue: "NVSS", Name: validation.MetricFluxRatio, Value: 1.2, Uncertainty: 0.02, Threshold: 0.1, Result: validation.ResultFail, N: 40},
		{Catalogue: "SUMSS", Name: validation.MetricRAOffset, Result: validation.ResultUndetermined},
	}
	require.NoError(t, store.SaveMetrics(ctx, metrics))

	got, err := store.GetMetrics(ctx, "NVSS")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, metrics[0], got[0])
	assert.Equal(t, metrics[1], got[1])

	_, err = store.GetMetrics(ctx, "GLEAM")
	assert.ErrorIs(t, err, errors.ErrArtifactNotFound)
}

func TestSaveMetricsReplacesCatalogueRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := []validation.Metric{
		{Catalogue: "NVSS", Name: validation.MetricRAOffset, Value: 0.4, Result: validation.ResultPass, N: 42},
		{Catalogue: "SUMSS", Name: validation.MetricRAOffset, Value: -0.1, Result: validation.ResultPass, N: 20},
	}
	require.NoError(t, store.SaveMetrics(ctx, first))

	second := []validation.Metric{
		{Catalogue: "NVSS", Name: validation.MetricRAOffset, Value: 0.2, Result: validation.ResultPass, N: 45},
	}
	require.NoError(t, store.SaveMetrics(ctx, second))

	got, err := store.GetMetrics(ctx, "NVSS")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.2, got[0].Value, 1e-12)

	// Catalogues absent from the batch keep their rows.
	got, err = store.GetMetrics(ctx, "SUMSS")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, -0.1, got[0].Value, 1e-12)
}

func TestSaveSpectralFits(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	fits := []sed.FitResult{
		{SourceID: "J0001", Model: "pow", RedChiSq: 1.1, SpectralIndex: -0.8, FluxAtRef: 0.05, Status: sed.StatusOK, NumFreqs: 3},
		{SourceID: "J0002", Status: sed.StatusInsufficient, NumFreqs: 1},
	}
	require.NoError(t, store.SaveSpectralFits(ctx, fits))

	ds := store.(*SQLiteStore)
	var rows []SpectralFitRow
	require.NoError(t, ds.DB.Order("source_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "pow", rows[0].Model)
	assert.Equal(t, string(sed.StatusInsufficient), rows[1].Status)
}

func TestEmptySavesAreNoOps(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCrossMatches(ctx, "A", "B", nil))
	require.NoError(t, store.SaveSpectralFits(ctx, nil))
	require.NoError(t, store.SaveMetrics(ctx, nil))
}
