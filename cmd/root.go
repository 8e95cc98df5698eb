package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"radioval/cmd/validate"
	"radioval/internal/conf"
	"radioval/internal/pipeline"
)

// RootCommand creates and returns the root command. Collaborator
// implementations for source finding, catalogue I/O, report rendering and
// image correction are injected by the integrating binary.
func RootCommand(settings *conf.Settings, collab pipeline.Collaborators) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "radioval",
		Short: "Radio continuum catalogue validation",
		Long:  "Validate a radio continuum source catalogue against reference survey catalogues.",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		rootCmd.PrintErrf("error setting up flags: %v\n", err)
	}

	rootCmd.AddCommand(validate.Command(settings, collab))

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		// Re-apply the flag precedence rules after command-line
		// overrides: refind implies redo, no-write wins over write-all.
		if settings.Validation.Refind {
			settings.Validation.Redo = true
		}
		if !settings.Validation.WriteAny {
			settings.Validation.WriteAll = false
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines the global flags shared by all subcommands.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()

	flags.Float64Var(&settings.Validation.SNRCut, "snr", viper.GetFloat64("validation.snrcut"), "Signal-to-noise cut applied to the primary catalogue")
	flags.BoolVar(&settings.Validation.UsePeakFlux, "peak", viper.GetBool("validation.usepeakflux"), "Use peak flux instead of integrated flux")
	flags.BoolVar(&settings.Validation.Redo, "redo", viper.GetBool("validation.redo"), "Force every step again even when cached artifacts exist")
	flags.BoolVar(&settings.Validation.Refind, "refind", viper.GetBool("validation.refind"), "Force source finding again (implies --redo)")
	flags.BoolVar(&settings.Validation.WriteAny, "write", viper.GetBool("validation.writeany"), "Write the report and final artifacts")
	flags.BoolVar(&settings.Validation.WriteAll, "write-all", viper.GetBool("validation.writeall"), "Also write intermediate artifacts")
	flags.StringSliceVar(&settings.Validation.Catalogues, "catalogues", viper.GetStringSlice("validation.catalogues"), "Reference catalogue config files")
	flags.StringVar(&settings.Validation.FilterConfig, "filter-config", viper.GetString("validation.filterconfig"), "Filter criteria config file")
	flags.IntVar(&settings.Correction.Level, "correct", viper.GetInt("correction.level"), "Image correction level: 0 none, 1 positions, 2 positions and flux")

	if err := viper.BindPFlags(flags); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
