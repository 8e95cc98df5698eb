package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Main.Name = "ASKAP"
	s.Validation = ValidationSettings{
		SNRCut:          5,
		MinMatches:      10,
		FluxRatioSNRMin: 10,
		SigmaClip:       SigmaClipSettings{Kappa: 3, MaxIterations: 10},
		SourceCounts:    SourceCountSettings{Bins: 50, ReferenceSlope: -1.54, SlopeTolerance: 0.2},
		Thresholds:      ThresholdSettings{PositionOffsetMax: 1, FluxRatioTolerance: 0.1},
		Catalogues:      []string{"NVSS_config.txt"},
		WriteAny:        true,
	}
	s.SED = SEDSettings{Models: []string{"pow"}, MaxIterations: 200, Tolerance: 1e-8}
	return s
}

func TestValidateSettingsOK(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsCollectsProblems(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Validation.SigmaClip.Kappa = 0
	s.SED.Models = []string{"parabola"}
	s.Correction.Level = 7

	err := ValidateSettings(s)
	require.Error(t, err)

	ve, ok := err.(ValidationError)
	require.True(t, ok)
	assert.Len(t, ve.Errors, 3)
}

func TestValidateSettingsRejectsDualOutputs(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "out.db"
	s.Output.MySQL.Enabled = true
	s.Output.MySQL.Username = "u"
	s.Output.MySQL.Database = "d"
	s.Output.MySQL.Host = "h"

	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one of")
}

func TestValidateSettingsUnknownModel(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.SED.Models = []string{"pow", "spline"}
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spline")
}

func TestRunSuffix(t *testing.T) {
	t.Parallel()

	s := validSettings()
	assert.Equal(t, "snr5_int", s.RunSuffix())

	s.Validation.UsePeakFlux = true
	assert.Equal(t, "snr5_peak", s.RunSuffix())

	s.Validation.SNRCut = 7.5
	assert.Equal(t, "snr7.5_peak", s.RunSuffix())
}
