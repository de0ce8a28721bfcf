package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/starblog/internal/auth"
	"github.com/sakif/starblog/internal/config"
	sqliteRepo "github.com/sakif/starblog/internal/repository/sqlite"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	UserID int64
	TTL    time.Duration
}

// NewTokenCommand creates the token command, which prints a session token
// for an existing user. It signs with the server's JWT_SECRET.
func NewTokenCommand(root *RootOptions) *cobra.Command {
	opts := &TokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a session token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.UserID <= 0 {
				return errors.New("--user-id must be a positive integer")
			}
			if opts.TTL <= 0 {
				return errors.New("--ttl must be positive")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			tokens, err := auth.NewTokenService(cfg.JWTSecret)
			if err != nil {
				return err
			}

			path := root.dbPath()
			db, err := sqliteRepo.New(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("opening %s: %w", path, err)
			}
			defer db.Close()

			user, err := db.GetUserByID(cmd.Context(), opts.UserID)
			if err != nil {
				return err
			}

			token, err := tokens.IssueWithDuration(user, opts.TTL)
			if err != nil {
				return err
			}

			root.logger(cmd.ErrOrStderr()).Debug("token issued",
				"userID", user.ID, "expiresIn", opts.TTL.String())
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.UserID, "user-id", 0, "ID of the user to issue a token for")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", auth.TokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}
