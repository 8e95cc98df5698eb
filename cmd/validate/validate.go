// Package validate implements the validate subcommand, the thin shell that
// wires configuration, persistence and metrics around the pipeline.
package validate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"radioval/internal/conf"
	"radioval/internal/datastore"
	"radioval/internal/logging"
	"radioval/internal/observability"
	"radioval/internal/pipeline"
	"radioval/internal/sed"
	"radioval/internal/validation"
)

// Command creates the validate subcommand.
func Command(settings *conf.Settings, collab pipeline.Collaborators) *cobra.Command {
	var imagePath, cataloguePath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a catalogue against reference surveys",
		Long:  "Run the validation pipeline on an image (via the configured source finder) or a supplied source catalogue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidation(cmd, settings, collab, pipeline.Input{
				ImagePath:     imagePath,
				CataloguePath: cataloguePath,
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Image to extract the primary catalogue from")
	cmd.Flags().StringVar(&cataloguePath, "catalogue", "", "Already-extracted primary catalogue file")

	return cmd
}

func runValidation(cmd *cobra.Command, settings *conf.Settings, collab pipeline.Collaborators, input pipeline.Input) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	if settings.Main.Telemetry.Enabled {
		shutdown := serveTelemetry(settings.Main.Telemetry.Listen, metrics)
		defer shutdown()
	}

	if collab.Store == nil {
		if store := datastore.New(settings, metrics.Datastore); store != nil {
			if err := store.Open(); err != nil {
				return fmt.Errorf("opening artifact store: %w", err)
			}
			defer func() { _ = store.Close() }()
			collab.Store = store
		}
	}

	report, err := pipeline.New(settings, collab, metrics).Run(ctx, input)
	if err != nil {
		return err
	}

	printSummary(cmd, report)
	if len(report.BranchErrors) > 0 {
		return fmt.Errorf("%d reference catalogue branch(es) failed", len(report.BranchErrors))
	}
	return nil
}

// serveTelemetry exposes the Prometheus /metrics endpoint for the duration of
// the run. The returned function shuts the listener down.
func serveTelemetry(listen string, metrics *observability.Metrics) func() {
	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log := logging.ForService("telemetry")

	go func() {
		log.Info("serving metrics", "listen", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// printSummary writes the metrics table to the command output.
func printSummary(cmd *cobra.Command, report *pipeline.Report) {
	cmd.Printf("%s (%s): %d sources, %d after SNR cut, %d after quality cut\n",
		report.Name, report.Suffix,
		report.TotalSources, report.AfterSNRCut, report.AfterQualityCut)

	for _, set := range report.MatchSets {
		status := "validated"
		if !set.Validated {
			status = "skipped, too few matches"
		}
		cmd.Printf("  %s (%.0f MHz): %d matches (%s)\n",
			set.Catalogue, set.Frequency, len(set.Matches), status)
		for _, m := range report.MetricsFor(set.Catalogue) {
			if m.Result == validation.ResultUndetermined {
				cmd.Printf("    %-20s undetermined\n", m.Name)
				continue
			}
			cmd.Printf("    %-20s %9.4f +/- %.4f  (threshold %g) %s\n",
				m.Name, m.Value, m.Uncertainty, m.Threshold, m.Result)
		}
	}

	if len(report.Fits) > 0 {
		ok := 0
		for _, fit := range report.Fits {
			if fit.Status == sed.StatusOK {
				ok++
			}
		}
		cmd.Printf("  spectral fits: %d of %d converged\n", ok, len(report.Fits))
	}
	if report.CorrectedImage != "" {
		cmd.Printf("  corrected image: %s\n", report.CorrectedImage)
	}
	for path, err := range report.BranchErrors {
		cmd.PrintErrf("  branch %s failed: %v\n", path, err)
	}
}
