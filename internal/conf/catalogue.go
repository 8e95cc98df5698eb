// catalogue.go: typed parsing of the key-value catalogue and filter config
// files. These keep the original one-key-per-line text format; unknown keys
// are a configuration error rather than being silently ignored.
package conf

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"radioval/internal/errors"
)

// CatalogueConfig describes one survey catalogue: where to find it, what it
// was observed with, and which columns carry the quantities the validation
// needs.
type CatalogueConfig struct {
	Name       string  // unique survey/telescope identifier, e.g. "NVSS"
	Filename   string  // path to the catalogue file, read by the loader collaborator
	Frequency  float64 // observing frequency in MHz
	Resolution float64 // angular resolution (PSF FWHM) in arcsec
	Primary    bool    // true when this is the primary catalogue under validation
	UsePeak    bool    // use the peak flux column instead of the integrated one

	// Column names in the catalogue file.
	IDCol      string
	RACol      string
	DecCol     string
	RAErrCol   string
	DecErrCol  string
	FluxCol    string
	FluxErrCol string
	PeakCol    string
	PeakErrCol string
	RMSCol     string
	MajCol     string
	MinCol     string
	PACol      string
	FlagCol    string
}

// FilterCriteria enumerates the optional source-quality cuts. A zero value
// means the criterion is not applied; active criteria are ANDed.
type FilterCriteria struct {
	SNR          float64 // minimum signal-to-noise ratio
	FluxLim      float64 // minimum integrated flux in Jy
	RatioFrac    float64 // maximum major/minor axis ratio relative to the PSF
	ResidTol     float64 // maximum source-finder fit residual, in sigma
	PSFTol       float64 // maximum source size relative to the PSF
	RejectBlends bool    // drop sources flagged as blended
	Flags        bool    // drop sources with any quality flag raised
}

// IsZero reports whether no criterion is active.
func (fc FilterCriteria) IsZero() bool {
	return fc == FilterCriteria{}
}

// Fingerprint returns a stable identity for the criteria, used as part of the
// filter cache key.
func (fc FilterCriteria) Fingerprint() string {
	return fmt.Sprintf("snr=%g;flux=%g;ratio=%g;resid=%g;psf=%g;blends=%t;flags=%t",
		fc.SNR, fc.FluxLim, fc.RatioFrac, fc.ResidTol, fc.PSFTol, fc.RejectBlends, fc.Flags)
}

// DefaultQualityCriteria returns the built-in point-source quality cuts used
// when no filter config file is supplied.
func DefaultQualityCriteria() FilterCriteria {
	return FilterCriteria{
		FluxLim:      1e-3,
		RatioFrac:    1.4,
		ResidTol:     3,
		PSFTol:       1.5,
		RejectBlends: true,
		Flags:        true,
	}
}

// parseKeyValueFile reads a "key = value" text file, skipping blank lines and
// '#' comments, and returns the pairs in file order.
func parseKeyValueFile(path string) (keys, values []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.New(fmt.Errorf("opening config file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, found := strings.Cut(text, "=")
		if !found {
			return nil, nil, errors.Newf("line %d of %s is not a key = value pair: %q", line, path, text).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		keys = append(keys, strings.ToLower(strings.TrimSpace(key)))
		values = append(values, strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.New(fmt.Errorf("reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return keys, values, nil
}

func configErrorf(path, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("path", path).
		Build()
}

// LoadCatalogueConfig parses a catalogue config file into a typed
// CatalogueConfig. Unknown keys are a configuration error.
func LoadCatalogueConfig(path string) (*CatalogueConfig, error) {
	keys, values, err := parseKeyValueFile(path)
	if err != nil {
		return nil, err
	}

	cc := &CatalogueConfig{}
	for i, key := range keys {
		value := values[i]
		switch key {
		case "name":
			cc.Name = value
		case "filename":
			cc.Filename = value
		case "frequency":
			cc.Frequency, err = strconv.ParseFloat(value, 64)
		case "resolution":
			cc.Resolution, err = strconv.ParseFloat(value, 64)
		case "primary":
			cc.Primary, err = strconv.ParseBool(value)
		case "use_peak":
			cc.UsePeak, err = strconv.ParseBool(value)
		case "id_col":
			cc.IDCol = value
		case "ra_col":
			cc.RACol = value
		case "dec_col":
			cc.DecCol = value
		case "ra_err_col":
			cc.RAErrCol = value
		case "dec_err_col":
			cc.DecErrCol = value
		case "flux_col":
			cc.FluxCol = value
		case "flux_err_col":
			cc.FluxErrCol = value
		case "peak_col":
			cc.PeakCol = value
		case "peak_err_col":
			cc.PeakErrCol = value
		case "rms_col":
			cc.RMSCol = value
		case "maj_col":
			cc.MajCol = value
		case "min_col":
			cc.MinCol = value
		case "pa_col":
			cc.PACol = value
		case "flag_col":
			cc.FlagCol = value
		default:
			return nil, configErrorf(path, "unrecognized catalogue config key %q", key)
		}
		if err != nil {
			return nil, configErrorf(path, "invalid value %q for key %q: %v", value, key, err)
		}
	}

	if err := cc.Validate(); err != nil {
		return nil, configErrorf(path, "catalogue config %s: %v", path, err)
	}
	return cc, nil
}

// Validate checks that the required fields of a catalogue config are present
// and sane.
func (cc *CatalogueConfig) Validate() error {
	var problems []string
	if cc.Name == "" {
		problems = append(problems, "name is required")
	}
	if cc.Filename == "" {
		problems = append(problems, "filename is required")
	}
	if cc.Frequency <= 0 {
		problems = append(problems, "frequency must be positive")
	}
	if cc.Resolution <= 0 {
		problems = append(problems, "resolution must be positive")
	}
	if cc.RACol == "" || cc.DecCol == "" {
		problems = append(problems, "ra_col and dec_col are required")
	}
	if cc.FluxCol == "" && cc.PeakCol == "" {
		problems = append(problems, "one of flux_col or peak_col is required")
	}
	if cc.UsePeak && cc.PeakCol == "" {
		problems = append(problems, "use_peak requires peak_col")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadFilterCriteria parses a filter config file into typed criteria.
// Unknown keys are a configuration error.
func LoadFilterCriteria(path string) (FilterCriteria, error) {
	keys, values, err := parseKeyValueFile(path)
	if err != nil {
		return FilterCriteria{}, err
	}

	fc := FilterCriteria{}
	for i, key := range keys {
		value := values[i]
		switch key {
		case "snr":
			fc.SNR, err = strconv.ParseFloat(value, 64)
		case "flux_lim":
			fc.FluxLim, err = strconv.ParseFloat(value, 64)
		case "ratio_frac":
			fc.RatioFrac, err = strconv.ParseFloat(value, 64)
		case "resid_tol":
			fc.ResidTol, err = strconv.ParseFloat(value, 64)
		case "psf_tol":
			fc.PSFTol, err = strconv.ParseFloat(value, 64)
		case "reject_blends":
			fc.RejectBlends, err = strconv.ParseBool(value)
		case "flags":
			fc.Flags, err = strconv.ParseBool(value)
		default:
			return FilterCriteria{}, configErrorf(path, "unrecognized filter config key %q", key)
		}
		if err != nil {
			return FilterCriteria{}, configErrorf(path, "invalid value %q for key %q: %v", value, key, err)
		}
	}
	return fc, nil
}
