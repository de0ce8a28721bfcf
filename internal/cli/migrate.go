package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	sqliteRepo "github.com/sakif/starblog/internal/repository/sqlite"
)

// NewMigrateCommand creates the migrate command. Opening the database
// applies every pending migration.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.dbPath()
			db, err := sqliteRepo.New(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("migrating %s: %w", path, err)
			}
			defer db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", path)
			return nil
		},
	}
}
