// config.go: settings struct and functions to load and save the settings for
// the continuum validation pipeline.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"radioval/internal/logging"
)

// LogConfig contains settings for file logging.
type LogConfig struct {
	Enabled  bool                   // true to enable file logging
	Path     string                 // path to log file
	Rotation logging.RotationPolicy // rotation policy: daily, weekly or size
	MaxSize  int64                  // max log file size in bytes for size rotation
}

// TelemetrySettings contains settings for the Prometheus metrics endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to expose Prometheus metrics over HTTP
	Listen  string // IP address and port to listen on, e.g. "0.0.0.0:8090"
}

// MainSettings contains top-level run settings.
type MainSettings struct {
	Name      string            // unique name of the telescope or survey for the primary catalogue
	OutputDir string            // directory for run artifacts, derived from the image name when empty
	Log       LogConfig         // file logging settings
	Telemetry TelemetrySettings // metrics endpoint settings
}

// SigmaClipSettings controls iterative outlier rejection in metric aggregation.
type SigmaClipSettings struct {
	Kappa         float64 // clip points beyond kappa standard deviations from the running median
	MaxIterations int     // upper bound on clipping iterations
}

// SourceCountSettings controls the differential source-count metric.
type SourceCountSettings struct {
	Bins           int     // number of logarithmically spaced flux bins
	ReferenceSlope float64 // expected power-law slope of the differential counts
	SlopeTolerance float64 // allowed deviation from the reference slope
}

// ThresholdSettings holds the pass/fail thresholds for the validation metrics.
type ThresholdSettings struct {
	PositionOffsetMax  float64 // maximum |RA/Dec offset| in arcsec to pass astrometry
	FluxRatioTolerance float64 // maximum |flux ratio - 1| to pass the flux scale
}

// ValidationSettings contains the knobs of the filtering, cross-match and
// metric stages.
type ValidationSettings struct {
	SNRCut          float64           // signal-to-noise cut applied to the primary catalogue
	UsePeakFlux     bool              // use peak flux instead of integrated flux
	MatchRadius     float64           // cross-match radius in arcsec, 0 derives it from the PSFs
	MinMatches      int               // below this many matched pairs a metric is undetermined
	FluxRatioSNRMin float64           // minimum SNR in both catalogues for flux-ratio pairs
	SigmaClip       SigmaClipSettings // sigma clipping settings
	SourceCounts    SourceCountSettings
	Thresholds      ThresholdSettings
	FilterConfig    string   // optional filter config file; empty uses the built-in criteria
	Catalogues      []string // reference catalogue config files
	Redo            bool     // force every step again even when cached artifacts exist
	Refind          bool     // force source finding again, implies Redo
	WriteAny        bool     // write the report and final artifacts
	WriteAll        bool     // also write intermediate artifacts (filtered and matched catalogues)
}

// SEDSettings controls spectral energy distribution fitting.
type SEDSettings struct {
	Models         []string // model names to fit: pow, SSA, FFA, curve
	FitFlux        bool     // derive the flux at the primary frequency from the winning model
	IncludePrimary bool     // include the primary catalogue's own flux in the fit
	MaxIterations  int      // iteration budget for the nonlinear solver
	Tolerance      float64  // convergence tolerance for the nonlinear solver
}

// CorrectionSettings controls optional image correction from the measured metrics.
// Level 0 applies nothing, level 1 applies the positional offsets, level 2
// applies positions and the flux-ratio factor. There is no flux-only level.
type CorrectionSettings struct {
	Level int
}

// SQLiteSettings contains the SQLite artifact store settings.
type SQLiteSettings struct {
	Enabled bool   // true to enable the SQLite store
	Path    string // path to the SQLite database file
}

// MySQLSettings contains the MySQL artifact store settings.
type MySQLSettings struct {
	Enabled  bool   // true to enable the MySQL store
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings selects where run artifacts are persisted.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// Settings is the root configuration for a validation run.
type Settings struct {
	Main       MainSettings
	Validation ValidationSettings
	SED        SEDSettings
	Correction CorrectionSettings
	Output     OutputSettings
}

// RunSuffix returns the suffix appended to run artifacts, encoding the SNR
// cut and the flux policy, e.g. "snr5_int" or "snr5_peak".
func (s *Settings) RunSuffix() string {
	flux := "int"
	if s.Validation.UsePeakFlux {
		flux = "peak"
	}
	return fmt.Sprintf("snr%g_%s", s.Validation.SNRCut, flux)
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Setting returns the current settings instance, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Load reads the configuration file and environment into a Settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Refind implies redo; no-write (write_any false) forces write_all off.
	if settings.Validation.Refind {
		settings.Validation.Redo = true
	}
	if !settings.Validation.WriteAny {
		settings.Validation.WriteAll = false
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Defaults defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the default settings to the first config path so
// the next run picks them up from disk.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling defaults: %w", err)
	}
	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	logging.Info("Created default configuration file", "path", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the directories searched for config.yaml:
// the working directory first, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	if userDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userDir, "radioval"))
	}
	return paths, nil
}
