// Command cableaudit-admin runs maintenance and inspection tasks against the validation service's store.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/bootstrap"
	"github.com/innovites/cableaudit/internal/migrate"
)

var version = "dev"

const defaultMigrationTimeout = 5 * time.Minute

// app carries state shared by every subcommand once the root pre-run has loaded config.
type app struct {
	cfg    config.AppConfig
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "cableaudit-admin",
		Short:         "Administrative commands for the cable design validation service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			a.cfg = cfg
			// Logs go to stderr so command output stays machine readable.
			a.logger = bootstrap.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}

	root.AddCommand(
		a.migrateCommand(),
		a.seedReferenceCommand(),
		a.validateCommand(),
		a.submitCommand(),
		a.statusCommand(),
		a.listCommand(),
		a.statsCommand(),
		a.reapCommand(),
	)
	return root
}

func (a *app) migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMigrationDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				return bootstrap.RunMigrations(ctx, db, a.logger)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List embedded migrations and whether each is applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMigrationDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				migrations, err := migrate.Status(ctx, db)
				if err != nil {
					return err
				}
				return printMigrations(cmd.OutOrStdout(), migrations)
			})
		},
	})
	return cmd
}

func (a *app) withMigrationDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	db, err := connectDB(a.logger, &a.cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(a.logger, "database", db)

	ctx, cancel := context.WithTimeout(ctx, defaultMigrationTimeout)
	defer cancel()
	return fn(ctx, db)
}

func printMigrations(w io.Writer, migrations []migrate.Migration) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED")
	for _, m := range migrations {
		fmt.Fprintf(tw, "%s\t%t\n", m.Version, m.Applied)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func closeQuietly(logger *slog.Logger, what string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "resource", what, "error", err)
	}
}
