// conf/validate.go

package conf

import (
	"fmt"
	"slices"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

var knownSEDModels = []string{"pow", "SSA", "FFA", "curve"}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateMainSettings(&settings.Main); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateValidationSettings(&settings.Validation); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSEDSettings(&settings.SED); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateCorrectionSettings(&settings.Correction); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(m *MainSettings) error {
	if m.Log.Enabled && m.Log.Path == "" {
		return fmt.Errorf("main.log.path is required when file logging is enabled")
	}
	if m.Telemetry.Enabled && m.Telemetry.Listen == "" {
		return fmt.Errorf("main.telemetry.listen is required when telemetry is enabled")
	}
	return nil
}

func validateValidationSettings(v *ValidationSettings) error {
	if v.SNRCut < 0 {
		return fmt.Errorf("validation.snrcut must be non-negative, got %g", v.SNRCut)
	}
	if v.MatchRadius < 0 {
		return fmt.Errorf("validation.matchradius must be non-negative, got %g", v.MatchRadius)
	}
	if v.MinMatches < 1 {
		return fmt.Errorf("validation.minmatches must be at least 1, got %d", v.MinMatches)
	}
	if v.SigmaClip.Kappa <= 0 {
		return fmt.Errorf("validation.sigmaclip.kappa must be positive, got %g", v.SigmaClip.Kappa)
	}
	if v.SigmaClip.MaxIterations < 1 {
		return fmt.Errorf("validation.sigmaclip.maxiterations must be at least 1, got %d", v.SigmaClip.MaxIterations)
	}
	if v.SourceCounts.Bins < 2 {
		return fmt.Errorf("validation.sourcecounts.bins must be at least 2, got %d", v.SourceCounts.Bins)
	}
	if v.SourceCounts.SlopeTolerance <= 0 {
		return fmt.Errorf("validation.sourcecounts.slopetolerance must be positive, got %g", v.SourceCounts.SlopeTolerance)
	}
	if v.Thresholds.PositionOffsetMax <= 0 {
		return fmt.Errorf("validation.thresholds.positionoffsetmax must be positive, got %g", v.Thresholds.PositionOffsetMax)
	}
	if v.Thresholds.FluxRatioTolerance <= 0 {
		return fmt.Errorf("validation.thresholds.fluxratiotolerance must be positive, got %g", v.Thresholds.FluxRatioTolerance)
	}
	if len(v.Catalogues) == 0 {
		return fmt.Errorf("validation.catalogues must list at least one reference catalogue config")
	}
	return nil
}

func validateSEDSettings(s *SEDSettings) error {
	if len(s.Models) == 0 {
		return fmt.Errorf("sed.models must list at least one model")
	}
	for _, model := range s.Models {
		if !slices.Contains(knownSEDModels, model) {
			return fmt.Errorf("unknown SED model %q, supported models: %v", model, knownSEDModels)
		}
	}
	if s.MaxIterations < 1 {
		return fmt.Errorf("sed.maxiterations must be at least 1, got %d", s.MaxIterations)
	}
	if s.Tolerance <= 0 {
		return fmt.Errorf("sed.tolerance must be positive, got %g", s.Tolerance)
	}
	return nil
}

func validateCorrectionSettings(c *CorrectionSettings) error {
	if c.Level < 0 || c.Level > 2 {
		return fmt.Errorf("correction.level must be 0, 1 or 2, got %d", c.Level)
	}
	return nil
}

func validateOutputSettings(o *OutputSettings) error {
	if o.SQLite.Enabled && o.MySQL.Enabled {
		return fmt.Errorf("only one of output.sqlite and output.mysql may be enabled")
	}
	if o.SQLite.Enabled && o.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path is required when SQLite output is enabled")
	}
	if o.MySQL.Enabled {
		if o.MySQL.Username == "" || o.MySQL.Database == "" || o.MySQL.Host == "" {
			return fmt.Errorf("output.mysql requires username, database and host")
		}
	}
	return nil
}
