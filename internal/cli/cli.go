package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/procura/internal/app"
	"github.com/Additional-Code/procura/internal/maintenance"
	"github.com/Additional-Code/procura/internal/migration"
	"github.com/Additional-Code/procura/internal/observability"
	"github.com/Additional-Code/procura/internal/seeder"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root procura CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "procura",
		Short:         "Purchase-order service toolkit",
		Version:       observability.ServiceVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newDBCmd())

	return root
}

// Execute runs the procura CLI until completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run", "serve"},
		Short:   "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Module)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume purchase-order events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			return runWithApp(cmd.Context(), fx.Options(app.Migrate, fx.Populate(&mig)), func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			return runWithApp(cmd.Context(), fx.Options(app.Migrate, fx.Populate(&mig)), func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			return runWithApp(cmd.Context(), fx.Options(app.Migrate, fx.Populate(&mig)), func(ctx context.Context) error {
				states, err := mig.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range states {
					applied := "pending"
					if s.Applied {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%05d  %-26s %s\n", s.Version, applied, s.Path)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed users, suppliers and sample purchase orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			return runWithApp(cmd.Context(), fx.Options(app.Seed, fx.Populate(&seed)), func(ctx context.Context) error {
				if err := seed.Run(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seed data applied (password %q)\n", seeder.DefaultPassword)
				return nil
			})
		},
	}
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all purchasing data in one transaction",
		Long: "Deletes every row from order_items, invoices, purchase_order_status_history, " +
			"purchase_orders and suppliers. Either all tables are emptied or none is changed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to clear tables without --yes")
			}
			var cleaner *maintenance.Cleaner
			return runWithApp(cmd.Context(), fx.Options(app.Maintenance, fx.Populate(&cleaner)), func(ctx context.Context) error {
				cleared, err := cleaner.Clear(ctx)
				if err != nil {
					return err
				}
				for _, c := range cleared {
					fmt.Fprintf(cmd.OutOrStdout(), "%-32s %d rows deleted\n", c.Table, c.Deleted)
				}
				return nil
			})
		},
	}
	clearCmd.Flags().Bool("yes", false, "Confirm deletion")
	cmd.AddCommand(clearCmd)
	return cmd
}

func runUntilDone(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
