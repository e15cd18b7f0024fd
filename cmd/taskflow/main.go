package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskflow/internal/app"
	"taskflow/internal/config"
	"taskflow/internal/database"
	"taskflow/internal/logger"
	"taskflow/internal/services"
)

type globals struct {
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "taskflow",
		Short:         "Task assignment and notification server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", config.DefaultPath, "Path to the yaml config file")

	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newMigrateCmd(g))
	cmd.AddCommand(newCreateUserCmd(g))
	return cmd
}

func setup(g *globals) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		OutputPath: cfg.Logger.OutputPath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func newServeCmd(g *globals) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(g)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				if err := a.Migrate(); err != nil {
					return err
				}
				log.Info("[db][migrate][ok]")
			}
			if err := a.EnsureAdmin(ctx); err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending migrations before serving")
	return cmd
}

func newMigrateCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withDB := func(run func(ctx context.Context, a *app.App, cfg *config.Config, log *zap.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(g)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd.Context(), a, cfg, log)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(_ context.Context, a *app.App, _ *config.Config, log *zap.Logger) error {
			if err := a.Migrate(); err != nil {
				return err
			}
			log.Info("[db][migrate][up][ok]")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (one step by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			return withDB(func(_ context.Context, a *app.App, _ *config.Config, log *zap.Logger) error {
				if err := database.Rollback(a.DB(), steps); err != nil {
					return err
				}
				log.Info("[db][migrate][down][ok]", zap.Int("steps", steps))
				return nil
			})(cmd, args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: withDB(func(_ context.Context, a *app.App, _ *config.Config, _ *zap.Logger) error {
			v, dirty, err := database.Version(a.DB())
			if err != nil {
				return err
			}
			fmt.Printf("version=%d dirty=%t\n", v, dirty)
			return nil
		}),
	})
	return cmd
}

func newCreateUserCmd(g *globals) *cobra.Command {
	var in services.CreateUserInput
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Username == "" || in.Password == "" {
				return errors.New("--username and --password are required")
			}
			cfg, log, err := setup(g)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.Users.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Printf("created user id=%d username=%s role=%s\n", u.ID, u.Username, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "Login name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "Initial password")
	cmd.Flags().StringVar(&in.MobileNo, "mobile", "", "Phone in international format")
	cmd.Flags().StringVar(&in.Role, "role", "user", "admin, salesman, purchaseman or user")
	return cmd
}
