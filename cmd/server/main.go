// Package main provides the floorcrm binary: the workflow automation and
// sales pipeline service for a flooring business.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/flooring-crm/internal/config"
	"github.com/garyjia/flooring-crm/internal/container"
	httpapi "github.com/garyjia/flooring-crm/internal/interfaces/http"
	"github.com/garyjia/flooring-crm/pkg/database"
	"github.com/garyjia/flooring-crm/pkg/utils"
)

const appName = "floorcrm"

// Set with -ldflags "-X main.Version=..."
var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Flooring CRM workflow automation service",
		Long: `floorcrm runs the sales pipeline (estimates, contracts, invoices,
payments, projects) and the workflow engine that reacts to its events.

Without a sub-command it starts the HTTP server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Config file path (YAML)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	})

	cmd.AddCommand(migrateCmd(&configPath))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := utils.NewLogger(cfg.ToLoggerConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func serve(parent context.Context, configPath string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting floorcrm",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("notification_provider", cfg.Notification.Provider),
		zap.String("delay_mode", cfg.Workflow.DelayMode))

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return err
	}

	httpapi.Version = Version
	srv, err := c.HTTPServer()
	if err != nil {
		_ = c.Close()
		return err
	}

	serveErr := srv.Start(ctx)
	closeErr := c.Close()

	logger.Info("Shutdown complete")
	return errors.Join(serveErr, closeErr)
}

func migrateCmd(configPath *string) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), *configPath, status, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "List migrations and whether they are applied, without running any")
	return cmd
}

func migrate(ctx context.Context, configPath string, statusOnly bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if statusOnly {
		fsys, err := container.EmbeddedMigrations()
		if err != nil {
			return err
		}
		statuses, err := database.NewMigrator(db, logger).Status(ctx, fsys)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			state := "pending"
			if !st.Pending() {
				state = "applied " + st.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(out, "%03d %-32s %s\n", st.Version, st.Name, state)
		}
		return nil
	}

	ran, err := container.RunMigrations(ctx, db, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %d migration(s) to %s\n", len(ran), cfg.Database.Path)
	return nil
}
