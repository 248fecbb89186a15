package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"github.com/straye-as/salesflow-api/internal/config"
	"github.com/straye-as/salesflow-api/migrations"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var withSecrets bool

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or inspect database schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&withSecrets, "with-secrets", false, "resolve database credentials through Azure Key Vault")

	withDB := func(fn func(ctx context.Context, db *sql.DB, args []string) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			db, err := openDB(c.Context(), withSecrets)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(c.Context(), db, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withDB(func(ctx context.Context, db *sql.DB, _ []string) error {
				if err := goose.UpContext(ctx, db, "."); err != nil {
					return fmt.Errorf("failed to run up migrations: %w", err)
				}
				fmt.Println("Migrations applied successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: withDB(func(ctx context.Context, db *sql.DB, _ []string) error {
				if err := goose.DownContext(ctx, db, "."); err != nil {
					return fmt.Errorf("failed to run down migration: %w", err)
				}
				fmt.Println("Migration rolled back successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show which migrations have been applied",
			RunE: withDB(func(ctx context.Context, db *sql.DB, _ []string) error {
				if err := goose.StatusContext(ctx, db, "."); err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: withDB(func(ctx context.Context, db *sql.DB, _ []string) error {
				if err := goose.VersionContext(ctx, db, "."); err != nil {
					return fmt.Errorf("failed to get version: %w", err)
				}
				return nil
			}),
		},
		createCmd(),
	)

	return cmd
}

// createCmd writes a new SQL migration into ./migrations. It runs against the
// source tree, not the embedded files.
func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new SQL migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			goose.SetBaseFS(nil)
			if err := goose.Create(nil, "./migrations", args[0], "sql"); err != nil {
				return fmt.Errorf("failed to create migration: %w", err)
			}
			return nil
		},
	}
}

func openDB(ctx context.Context, withSecrets bool) (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if withSecrets {
		if cfg, err = config.LoadWithSecrets(ctx, zap.NewNop()); err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
	}
	if cfg.Database.Driver != "" && cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("migrations target postgres, got driver %q", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set dialect: %w", err)
	}
	return db, nil
}
