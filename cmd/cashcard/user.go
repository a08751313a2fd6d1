package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cashcard-core/internal/audit"
	"github.com/nerrad567/cashcard-core/internal/auth"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/database"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
)

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(c.userCreateCmd(), c.userListCmd(), c.userDeleteCmd())
	return cmd
}

func (c *cli) userCreateCmd() *cobra.Command {
	var username, password, role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withMigratedDB(cmd.Context(), func(db *database.DB) error {
				store := auth.NewIdentityStore(auth.NewUserRepository(db.DB), logging.Nop())
				id, err := store.Create(cmd.Context(), username, password, auth.Role(role))
				if err != nil {
					return fmt.Errorf("creating user: %w", err)
				}
				recordCLIAudit(cmd.Context(), db, "created", id.Username, map[string]any{"role": string(id.Role)})
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", id.Username, id.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "account name")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleCardOwner), "CARD-OWNER or NON-OWNER")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withMigratedDB(cmd.Context(), func(db *database.DB) error {
				users, err := auth.NewUserRepository(db.DB).List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "USERNAME\tROLE\tACTIVE\tCREATED")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n",
						u.Username, u.Role, u.IsActive, u.CreatedAt.UTC().Format("2006-01-02"))
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Delete a user account",
		Long:  "Delete a user account. Cards owned by the account are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withMigratedDB(cmd.Context(), func(db *database.DB) error {
				users := auth.NewUserRepository(db.DB)
				u, err := users.GetByUsername(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("looking up %q: %w", args[0], err)
				}
				if err := users.Delete(cmd.Context(), u.ID); err != nil {
					return fmt.Errorf("deleting %q: %w", args[0], err)
				}
				recordCLIAudit(cmd.Context(), db, "deleted", u.Username, nil)
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", u.Username)
				return nil
			})
		},
	}
}

// withMigratedDB opens the database and brings the schema up to date
// before running fn, so account commands work on a fresh install.
func (c *cli) withMigratedDB(ctx context.Context, fn func(db *database.DB) error) error {
	return c.withDB(ctx, func(db *database.DB) error {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		return fn(db)
	})
}

// recordCLIAudit is best-effort; the account change has already happened.
func recordCLIAudit(ctx context.Context, db *database.DB, action, username string, details map[string]any) {
	_ = audit.NewSQLiteRepository(db.DB).Create(ctx, &audit.AuditLog{ //nolint:errcheck // best-effort
		Action:     action,
		EntityType: audit.EntityUser,
		EntityID:   username,
		UserID:     username,
		Source:     audit.SourceCLI,
		Details:    details,
	})
}
