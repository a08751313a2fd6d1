package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cashcard-core/internal/card"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/config"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/database"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withDB(cmd.Context(), func(db *database.DB) error {
				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				if c.cfg.Cards.Backend == config.BackendPostgres {
					if err := ensurePostgresSchema(cmd.Context(), c.cfg); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withDB(cmd.Context(), func(db *database.DB) error {
				applied, _, err := db.GetMigrationStatus(cmd.Context())
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no migrations to roll back")
					return nil
				}
				if err := db.MigrateDown(cmd.Context()); err != nil {
					return fmt.Errorf("rolling back: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", applied[len(applied)-1].Version)
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withDB(cmd.Context(), func(db *database.DB) error {
				applied, pending, err := db.GetMigrationStatus(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT")
				for _, r := range applied {
					fmt.Fprintf(tw, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.UTC().Format("2006-01-02 15:04:05"))
				}
				for _, m := range pending {
					fmt.Fprintf(tw, "%s\tpending\t-\n", m.Version)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

// withDB opens the configured SQLite database for the duration of fn.
func (c *cli) withDB(ctx context.Context, fn func(db *database.DB) error) error {
	db, err := database.Open(ctx, database.FromConfig(c.cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func ensurePostgresSchema(ctx context.Context, cfg *config.Config) error {
	pg, err := database.OpenPostgres(ctx, cfg.Cards.Postgres)
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	defer pg.Close()
	if err := card.NewPostgresStore(pg).EnsureSchema(ctx); err != nil {
		return fmt.Errorf("creating postgres schema: %w", err)
	}
	return nil
}
