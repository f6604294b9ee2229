// Command cli is the operator tool for the video-game price engine: schema
// application, one-shot/all-source ingestion, lock recovery, materialized
// view refresh, and the three dedupe passes plus partition archival and
// canonical-media backfill.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vgprice/engine/config"
	"github.com/vgprice/engine/internal/database"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitConfig         = 2
	ExitDatabaseDown   = 3
	ExitPartialFailure = 4
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vgprice-engine",
	Short: "Video-game price engine operator CLI",
	Long: `A CLI tool for applying schema, ingesting video-game prices from multiple
sources, recovering stale locks, refreshing materialized views, and running
the platform/title/video-game dedupe passes.`,
	PersistentPreRunE: persistentPreRun,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config/config.yaml or ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
}

// persistentPreRun initializes the logger for every command and, for
// commands that touch the database, connects the pool. It never exits the
// process directly; RunE implementations translate errors into the exit
// codes defined above.
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	logger = initLogger()

	if cmdNeedsDB(cmd) {
		if cfg == nil {
			return &cliError{code: ExitConfig, err: fmt.Errorf("config required for %s command but not loaded", cmd.Name())}
		}
		if err := initDatabase(cmd.Context()); err != nil {
			return &cliError{code: ExitDatabaseDown, err: fmt.Errorf("database initialization failed: %w", err)}
		}
		logger.Info().Msg("database connected")
	}

	return nil
}

func cmdNeedsDB(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "migrate", "ingest", "ingest-all", "recover-locks", "refresh-materialized-views",
		"dedupe-platforms", "dedupe-titles", "dedupe-video-games",
		"archive-partitions", "backfill-canonical-media", "process-partition-jobs":
		return true
	default:
		return false
	}
}

func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsed
		}
	}

	var output io.Writer
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stdout
	} else {
		noColor := false
		if cfg != nil {
			noColor = cfg.Logging.NoColor
		}
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: noColor}
	}

	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

func initDatabase(ctx context.Context) error {
	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return database.Connect(
		ctx, dbURL,
		cfg.Database.MaxConnections, cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime, cfg.Database.MaxConnIdleTime,
	)
}

// cliError carries the process exit code a RunE failure should produce.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// exitCode extracts the process exit code from a RunE error, defaulting to
// ExitFailure for errors that weren't classified at the call site.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if ce, ok := err.(*cliError); ok {
		return ce.code
	}
	return ExitFailure
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		if logger != nil {
			logger.Error().Err(err).Msg("command failed")
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	os.Exit(exitCode(err))
}
