// defaults.go: default configuration values applied before reading config.yaml.
package conf

import "github.com/spf13/viper"

// setDefaultConfig sets viper defaults for every configuration parameter.
func setDefaultConfig() {
	// Main settings
	viper.SetDefault("main.name", "ASKAP")
	viper.SetDefault("main.outputdir", "")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "radioval.log")
	viper.SetDefault("main.log.rotation", "size")
	viper.SetDefault("main.log.maxsize", 10*1024*1024)
	viper.SetDefault("main.telemetry.enabled", false)
	viper.SetDefault("main.telemetry.listen", "0.0.0.0:8090")

	// Validation settings
	viper.SetDefault("validation.snrcut", 5.0)
	viper.SetDefault("validation.usepeakflux", false)
	viper.SetDefault("validation.matchradius", 0.0)
	viper.SetDefault("validation.minmatches", 10)
	viper.SetDefault("validation.fluxratiosnrmin", 10.0)
	viper.SetDefault("validation.sigmaclip.kappa", 3.0)
	viper.SetDefault("validation.sigmaclip.maxiterations", 10)
	viper.SetDefault("validation.sourcecounts.bins", 50)
	viper.SetDefault("validation.sourcecounts.referenceslope", -1.54)
	viper.SetDefault("validation.sourcecounts.slopetolerance", 0.2)
	viper.SetDefault("validation.thresholds.positionoffsetmax", 1.0)
	viper.SetDefault("validation.thresholds.fluxratiotolerance", 0.1)
	viper.SetDefault("validation.filterconfig", "")
	viper.SetDefault("validation.catalogues", []string{
		"NVSS_config.txt", "SUMSS_config.txt", "GLEAM_config.txt", "TGSS_config.txt",
	})
	viper.SetDefault("validation.redo", false)
	viper.SetDefault("validation.refind", false)
	viper.SetDefault("validation.writeany", true)
	viper.SetDefault("validation.writeall", false)

	// SED settings
	viper.SetDefault("sed.models", []string{"pow"})
	viper.SetDefault("sed.fitflux", false)
	viper.SetDefault("sed.includeprimary", false)
	viper.SetDefault("sed.maxiterations", 200)
	viper.SetDefault("sed.tolerance", 1e-8)

	// Correction settings
	viper.SetDefault("correction.level", 0)

	// Output settings
	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "radioval.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "radioval")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "radioval")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
