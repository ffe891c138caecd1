package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/livinlefevreloca/wotdaily/internal/config"
	"github.com/livinlefevreloca/wotdaily/internal/vehicles"
	"github.com/livinlefevreloca/wotdaily/internal/wargaming"
)

// Options holds command-line overrides of the configuration file
type Options struct {
	ConfigFile    string
	ApplicationID string
	Realm         string
	DSN           string
	LogLevel      string
	Stats         bool
	Concurrency   int
}

// AddFlags registers the options on fs
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFile, "config", "", "Path to configuration file (TOML)")
	fs.StringVar(&o.ApplicationID, "appid", wargaming.DefaultApplicationID, "Wargaming application id")
	fs.StringVar(&o.Realm, "realm", "", "API realm: na, eu or asia")
	fs.StringVar(&o.DSN, "db", "", "Database DSN (file path for sqlite3)")
	fs.StringVar(&o.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.BoolVar(&o.Stats, "stats", false, "Append a statistics snapshot for every owned vehicle")
	fs.IntVar(&o.Concurrency, "concurrency", 0, "Parallel snapshot appends (default from config)")
}

// apply overrides cfg with the flags that were set explicitly
func (o *Options) apply(cfg *config.Config, fs *pflag.FlagSet) {
	if fs.Changed("appid") {
		cfg.Wargaming.ApplicationID = o.ApplicationID
	}
	if fs.Changed("realm") {
		cfg.Wargaming.Realm = o.Realm
	}
	if fs.Changed("db") {
		cfg.Database.DSN = o.DSN
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = o.LogLevel
	}
	if fs.Changed("concurrency") {
		cfg.Sync.StatsConcurrency = o.Concurrency
	}
}

// NewWotDailyCommand builds the root command. The run outcome is stored in
// status; a returned error from Execute means the run never started.
func NewWotDailyCommand(ctx context.Context, status *vehicles.Status) *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:          "wotdaily [flags] <player>",
		Short:        "Synchronize a World of Tanks player's vehicles and statistics",
		Long:         "wotdaily resolves a player's account, upserts the reference data of every vehicle the account owns and, with --stats, appends a statistics snapshot for each of them.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.ConfigFile)
			if err != nil {
				return err
			}
			opts.apply(cfg, cmd.Flags())
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := NewLogger(cfg.Logging, cmd.ErrOrStderr())
			slog.SetDefault(logger)

			*status, err = Run(ctx, cfg, args[0], opts.Stats, logger)
			if err != nil {
				logger.Error("run aborted", "error", err)
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			return nil
		},
	}

	opts.AddFlags(cmd.Flags())
	return cmd
}

// Run synchronizes player's vehicles and, when stats is set, appends a
// snapshot for each of them. Failures of the synchronization itself are
// reported through the returned Status; errors are infrastructure problems.
func Run(ctx context.Context, cfg *config.Config, player string, stats bool, logger *slog.Logger) (vehicles.Status, error) {
	reg := prometheus.NewRegistry()
	metrics := vehicles.NewMetrics(reg)
	defer writeMetrics(cfg.Metrics, reg, logger)

	client, err := wargaming.NewClient(cfg.Wargaming, nil, logger)
	if err != nil {
		return vehicles.StatusFailed, err
	}

	accountID, err := client.FindAccount(ctx, player)
	if err != nil {
		logger.Error("failed to resolve player", "player", player, "error", err)
		metrics.RunFailed.Set(1)
		return vehicles.StatusFailed, nil
	}
	logger.Info("resolved player", "player", player, "account_id", accountID)

	engine, err := vehicles.Open(ctx, cfg.Database, cfg.Sync, client, accountID, logger, vehicles.WithMetrics(metrics))
	if err != nil {
		return vehicles.StatusFailed, err
	}
	defer func() {
		if err := engine.Close(ctx); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	if stats && engine.Status() == vehicles.StatusOK {
		n, err := engine.AddAllVehicleStats(ctx, cfg.Sync.StatsConcurrency)
		if err != nil {
			logger.Debug("snapshot appends stopped", "appended", n, "error", err)
		}
	}

	logger.Info("run finished",
		"run_id", engine.RunID(),
		"status", engine.Status().String(),
		"vehicles", len(engine.Vehicles()))

	return engine.Status(), nil
}

// NewLogger builds the process logger from the logging configuration
func NewLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func writeMetrics(cfg config.MetricsConfig, reg *prometheus.Registry, logger *slog.Logger) {
	if cfg.Textfile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(cfg.Textfile, reg); err != nil {
		logger.Warn("failed to write metrics textfile", "path", cfg.Textfile, "error", err)
	}
}
