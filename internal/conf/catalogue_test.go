package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radioval/internal/errors"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalogueConfig(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "NVSS_config.txt", `
# NVSS survey catalogue
name = NVSS
filename = NVSS_cutout.fits
frequency = 1400
resolution = 45
ra_col = RA_deg
dec_col = DEC_deg
flux_col = S1400
flux_err_col = e_S1400
rms_col = rms
`)

	cc, err := LoadCatalogueConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "NVSS", cc.Name)
	assert.Equal(t, "NVSS_cutout.fits", cc.Filename)
	assert.InDelta(t, 1400.0, cc.Frequency, 1e-12)
	assert.InDelta(t, 45.0, cc.Resolution, 1e-12)
	assert.Equal(t, "RA_deg", cc.RACol)
	assert.Equal(t, "S1400", cc.FluxCol)
	assert.False(t, cc.Primary)
}

func TestLoadCatalogueConfigUnknownKey(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "bad.txt", `
name = NVSS
filename = nvss.fits
frequency = 1400
resolution = 45
ra_col = RA
dec_col = DEC
flux_col = S
beam_solid_angle = 1.13
`)

	_, err := LoadCatalogueConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beam_solid_angle")

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.CategoryConfiguration, ee.Category)
}

func TestLoadCatalogueConfigMissingRequired(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "incomplete.txt", `
name = TGSS
frequency = 150
`)

	_, err := LoadCatalogueConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filename is required")
}

func TestLoadCatalogueConfigBadValue(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "badvalue.txt", `
name = SUMSS
filename = sumss.fits
frequency = many
resolution = 45
ra_col = RA
dec_col = DEC
flux_col = S
`)

	_, err := LoadCatalogueConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frequency")
}

func TestLoadFilterCriteria(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "filter.txt", `
flux_lim = 0.001
ratio_frac = 1.4
reject_blends = true
psf_tol = 1.5
resid_tol = 3
`)

	fc, err := LoadFilterCriteria(path)
	require.NoError(t, err)
	assert.InDelta(t, 1e-3, fc.FluxLim, 1e-12)
	assert.InDelta(t, 1.4, fc.RatioFrac, 1e-12)
	assert.True(t, fc.RejectBlends)
	assert.False(t, fc.Flags)
	assert.Zero(t, fc.SNR)
}

func TestLoadFilterCriteriaUnknownKey(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "filter.txt", "island_cut = 2\n")
	_, err := LoadFilterCriteria(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "island_cut")
}

func TestFilterCriteriaFingerprint(t *testing.T) {
	t.Parallel()

	a := DefaultQualityCriteria()
	b := DefaultQualityCriteria()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.SNR = 5
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestFilterCriteriaIsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, FilterCriteria{}.IsZero())
	assert.False(t, DefaultQualityCriteria().IsZero())
}
