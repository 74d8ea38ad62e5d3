package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/ecoaudit/internal/adapters/meter"
	app "github.com/okian/ecoaudit/internal/app"
	"github.com/okian/ecoaudit/internal/config"
	"github.com/okian/ecoaudit/pkg/logger"
)

const longDescription = "Audits the energy and carbon footprint of training a baseline classifier " +
	"on a tabular dataset, or of running inference with a saved model."

// cli carries state shared by every subcommand once the root has loaded configuration.
type cli struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log logger.Logger
	now func() time.Time
}

func newRootCmd() *cobra.Command {
	c := &cli{now: time.Now}
	root := &cobra.Command{
		Use:           "ecoaudit",
		Short:         "Energy and carbon audits for ML workloads",
		Long:          longDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default $ECOAUDIT_CONFIG)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log_level: debug, info, warn or error")

	root.AddCommand(c.serveCmd(), c.auditCmd(), c.submitCmd(), c.exportCmd())
	return root
}

// setup loads configuration (defaults -> file -> env) and initializes logging on stderr.
func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.Load(ctx, c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	// stdout is reserved for reports and styled output.
	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Writer: os.Stderr}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	c.cfg = cfg
	c.log = log
	return nil
}

// newService builds the audit service from configuration.
func (c *cli) newService(extra ...app.Option) *app.Service {
	cfg := c.cfg
	opts := []app.Option{
		app.WithLogger(c.log),
		app.WithMeterSettings(meter.Settings{
			Kind:            meter.Kind(cfg.MeterKind),
			PowercapRoot:    cfg.PowercapRoot,
			CPUTDPWatts:     cfg.CPUTDPWatts,
			CarbonIntensity: cfg.CarbonIntensity,
		}),
		app.WithEmissionsLog(cfg.EmissionsLog),
		app.WithSeed(cfg.Seed),
		app.WithTreeCount(cfg.TreeCount),
		app.WithSyntheticRows(cfg.SyntheticRows),
		app.WithDefaultEpochs(cfg.DefaultEpochs),
		app.WithTempDir(cfg.TempDir),
		app.WithResultsDir(cfg.ResultsDir),
		app.WithCountryName(cfg.CountryName),
		app.WithClock(c.now),
	}
	return app.New(append(opts, extra...)...)
}
