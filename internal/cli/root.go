// Package cli implements the csvtable command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvtable/internal/config"
	"github.com/JonMunkholm/csvtable/internal/core"
	"github.com/JonMunkholm/csvtable/internal/export"
	"github.com/JonMunkholm/csvtable/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "csvtable",
	Short: "Load, convert and merge delimited text files",
	Long: `csvtable loads delimiter-separated text files into in-memory tables,
writes them back with another delimiter or encoding, merges tables on key
columns and exports them to Parquet or PostgreSQL.

Settings come from the environment (and an optional .env file); named
profiles from a YAML file add per-file-kind rules.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var globalFlags struct {
	verbose  bool
	profile  string
	profiles string
	envFile  string
}

// cfg is loaded once per invocation by setup.
var cfg *config.Config

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&globalFlags.verbose, "verbose", "v", false, "Log load and save progress to stderr")
	pf.StringVarP(&globalFlags.profile, "profile", "p", "", "Profile to apply (default: $CSV_PROFILE)")
	pf.StringVar(&globalFlags.profiles, "profiles", "", "YAML profiles file (default: $CSV_PROFILES)")
	pf.StringVar(&globalFlags.envFile, "env-file", ".env", "Environment file to read if present")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})
}

// setup reads the environment file and configuration and configures
// logging. Values already in the environment win over the file.
func setup(cmd *cobra.Command, args []string) error {
	if globalFlags.envFile != "" {
		if err := godotenv.Load(globalFlags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", globalFlags.envFile, err)
		}
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	if globalFlags.profiles != "" {
		c.Profiles.Path = globalFlags.profiles
	}
	if globalFlags.profile != "" {
		c.Profiles.Default = globalFlags.profile
	}
	if globalFlags.verbose {
		c.Logging.Level = "debug"
	}

	logging.Setup(c.Logging.Level, c.Logging.Format)
	cfg = c
	return nil
}

// newService builds a service from cfg. With withDB the Postgres exporter
// is connected; the returned cleanup closes it.
func newService(ctx context.Context, withDB bool) (*core.Service, func(), error) {
	profiles, err := config.LoadProfiles(cfg.Profiles.Path)
	if err != nil {
		return nil, nil, err
	}
	registry, err := core.NewRegistry(profiles)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("profiles loaded", "count", registry.Count(), "default", cfg.Profiles.Default)

	cleanup := func() {}
	var pg core.PostgresExporter
	if withDB {
		if cfg.Database.URL == "" {
			return nil, nil, core.ErrPostgresNotConfigured
		}
		pool, err := export.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		pg = export.NewPostgres(pool)
		cleanup = pool.Close
	}

	return core.NewService(*cfg, registry, pg), cleanup, nil
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		return 1
	}
}

var errUsage = errors.New("usage error")

// PrintError writes err for a terminal user, with the user-facing message
// and suggested action when one is known.
func PrintError(err error) {
	if core.IsUserFacing(err) {
		fmt.Fprintf(os.Stderr, "%s: %s\n  %v\n", errorStyle.Render("error"), core.FormatUserError(err), err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", errorStyle.Render("error"), err)
}
