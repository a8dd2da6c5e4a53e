package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tubeline/user-service/internal/models"
	"github.com/tubeline/user-service/internal/sessions"
	"github.com/tubeline/user-service/internal/users"
)

type userFinder interface {
	FindByIdentifier(ctx context.Context, l users.Lookup) (*models.User, error)
}

// env is what the commands operate on. close releases connections.
type env struct {
	users   userFinder
	binding sessions.Binding
	indexes func(ctx context.Context) error
	close   func()
}

type opener func(ctx context.Context) (*env, error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "userctl",
		Short:         "Maintenance commands for the user service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newIndexesCommand(open),
		newRevokeCommand(open),
		newShowCommand(open),
	)
	return root
}

func newIndexesCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Args:  cobra.NoArgs,
		Short: "Create the unique username and email indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.indexes(cmd.Context()); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "indexes ensured")
			return nil
		},
	}
}

func newRevokeCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id|username|email>",
		Args:  cobra.ExactArgs(1),
		Short: "Invalidate the refresh token of a user",
		Long:  `Clears the stored refresh token so the next refresh fails and the user has to log in again. Access tokens stay valid until they expire.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			u, err := find(cmd.Context(), e.users, args[0])
			if err != nil {
				return err
			}
			if err := e.binding.ClearRefreshToken(cmd.Context(), u.ID); err != nil {
				return fmt.Errorf("revoke %s: %w", u.ID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked session of %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
}

func newShowCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|username|email>",
		Args:  cobra.ExactArgs(1),
		Short: "Print a user and whether it has an active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			u, err := find(cmd.Context(), e.users, args[0])
			if err != nil {
				return err
			}
			tok, err := e.binding.RefreshToken(cmd.Context(), u.ID)
			if err != nil {
				return fmt.Errorf("load session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:       %s\nusername: %s\nemail:    %s\nname:     %s\nsession:  %t\n", u.ID, u.Username, u.Email, u.FullName, tok != "")
			return nil
		},
	}
}

func find(ctx context.Context, f userFinder, ident string) (*models.User, error) {
	norm := strings.ToLower(strings.TrimSpace(ident))
	u, err := f.FindByIdentifier(ctx, users.Lookup{ID: strings.TrimSpace(ident), Username: norm, Email: norm})
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", ident, err)
	}
	if u == nil {
		return nil, fmt.Errorf("no user matches %q", ident)
	}
	return u, nil
}
