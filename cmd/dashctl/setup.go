package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"doordashboard/internal/auth"
	"doordashboard/internal/cli"
	"doordashboard/internal/storage"
)

type setupOptions struct {
	username string
	password string
	email    string
	admin    bool
	reset    bool
}

func newSetupCmd(e *env) *cobra.Command {
	var opts setupOptions

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the session store and a dashboard user",
		Long: "Creates the data directory and an empty session store if missing, then\n" +
			"creates a user. A password is generated when --password is not given.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			c, closeCore := e.core(false)
			defer closeCore()
			created, err := ensureStore(ctx, c.Store)
			if err != nil {
				return err
			}
			if created {
				_, _ = fmt.Fprintf(out, "created empty session store %s\n", c.Store.Path())
			}

			users := cli.InitUsers(e.logger, e.cfg.SQLiteDBPath)
			defer users.Close()
			tokens := auth.TokenConfig{Secret: e.cfg.JWTSecretKey, Issuer: e.cfg.JWTIssuer, TTL: e.cfg.JWTTokenExpires}
			return setupUser(ctx, out, users, tokens, opts)
		},
	}
	cmd.Flags().StringVar(&opts.username, "username", "admin", "username to create")
	cmd.Flags().StringVar(&opts.password, "password", "", "password (generated when empty)")
	cmd.Flags().StringVar(&opts.email, "email", "", "email address")
	cmd.Flags().BoolVar(&opts.admin, "admin", true, "grant administrator rights")
	cmd.Flags().BoolVar(&opts.reset, "reset-password", false, "set a new password if the user already exists")
	return cmd
}

// ensureStore writes an empty document when the store file is missing. An
// existing file is left alone.
func ensureStore(ctx context.Context, store *storage.FileStore) (bool, error) {
	marker, err := store.Marker()
	if err != nil {
		return false, err
	}
	if marker.Exists {
		return false, nil
	}
	if err := store.Update(ctx, func(*storage.Document) error { return nil }); err != nil {
		return false, fmt.Errorf("create session store: %w", err)
	}
	return true, nil
}

type setupUsers interface {
	auth.UserStore
	UpdatePassword(ctx context.Context, username, hash string) error
}

func setupUser(ctx context.Context, out io.Writer, users setupUsers, tokens auth.TokenConfig, opts setupOptions) error {
	generated := false
	if opts.password == "" {
		pw, err := auth.GeneratePassword()
		if err != nil {
			return err
		}
		opts.password = pw
		generated = true
	}

	// The grant is discarded; it only needs a key to sign with.
	if tokens.Secret == "" {
		tokens.Secret = opts.password
	}
	svc := auth.NewService(users, tokens, nil)
	_, err := svc.Register(ctx, opts.username, opts.password, opts.email, opts.admin)
	switch {
	case errors.Is(err, storage.ErrUserExists) && opts.reset:
		hash, herr := auth.HashPassword(opts.password)
		if herr != nil {
			return herr
		}
		if err := users.UpdatePassword(ctx, opts.username, hash); err != nil {
			return fmt.Errorf("reset password: %w", err)
		}
		_, _ = fmt.Fprintf(out, "password reset for %q\n", opts.username)
	case errors.Is(err, storage.ErrUserExists):
		return fmt.Errorf("user %q already exists (use --reset-password to change it)", opts.username)
	case err != nil:
		return fmt.Errorf("create user: %w", err)
	default:
		role := "user"
		if opts.admin {
			role = "administrator"
		}
		_, _ = fmt.Fprintf(out, "created %s %q\n", role, opts.username)
	}

	if generated {
		_, _ = fmt.Fprintf(out, "password: %s\n", opts.password)
		_, _ = fmt.Fprintln(out, "change this password after first login")
	}
	return nil
}
