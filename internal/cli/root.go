// Package cli implements the blogctl operator commands.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const defaultDBPath = "data/starblog.db"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath  string
	Verbose bool
}

// dbPath resolves --db, then DB_PATH, then the default.
func (o *RootOptions) dbPath() string {
	if o.DBPath != "" {
		return o.DBPath
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		return v
	}
	return defaultDBPath
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewRootCommand creates the root blogctl command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:          "blogctl",
		Short:        "Operate a starblog database",
		Long:         "blogctl applies schema migrations and mints session tokens for a starblog database.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database path (default $DB_PATH or "+defaultDBPath+")")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
