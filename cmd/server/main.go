/*
main.go - Application entry point

PURPOSE:
  Starts the attendance engine HTTP server, or runs one-off batch jobs
  from the command line. Handles configuration, dependency injection and
  graceful shutdown.

COMMANDS:
  serve       HTTP server (default when no command is given)
  reconcile   Reconcile a month from a punch file: --file, --month
  export      Write a month's summary workbook: --month, --out

GLOBAL FLAGS:
  --port      HTTP server port (overrides APP_PORT)
  --db        SQLite database path (overrides DB_PATH)
  --env-file  .env file to load (default: .env, missing is fine)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sync scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store

EXAMPLES:
  # Run with file database
  ./server serve --db=./data/attendance.db

  # Reconcile March from a vendor export
  ./server reconcile --month=2024-03 --file=punches.json

  # Salary sheet
  ./server export --month=2024-03 --out=march.xlsx

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v3"
	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/export"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/store/postgres"
	"github.com/warp/attendance-engine/store/sqlite"
)

type globalFlags struct {
	port    int
	dbPath  string
	envFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "server",
		Short:         "Attendance reconciliation engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().IntVar(&flags.port, "port", 0, "HTTP server port (overrides APP_PORT)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", ".env file to load")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), flags)
			},
		},
		newReconcileCmd(&flags),
		newExportCmd(&flags),
	)
	return root
}

func newReconcileCmd(flags *globalFlags) *cobra.Command {
	var file, month string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a month from a biometric punch file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd.Context(), *flags, false)
			if err != nil {
				return err
			}
			defer app.Close()

			m, err := generic.ParseMonth(month)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read punch file: %w", err)
			}
			punches, err := attendance.NormalizePayload(data)
			if err != nil {
				return err
			}
			result, err := app.service.Reconciler.Reconcile(cmd.Context(), m, punches, attendance.TriggerCLI)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "biometric JSON file")
	cmd.Flags().StringVar(&month, "month", "", "month to reconcile (YYYY-MM)")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("month")
	return cmd
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var month, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the monthly summary as an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(cmd.Context(), *flags, false)
			if err != nil {
				return err
			}
			defer app.Close()

			m, err := generic.ParseMonth(month)
			if err != nil {
				return err
			}
			summaries, err := app.service.MonthlySummary(cmd.Context(), month)
			if err != nil {
				return err
			}

			if out == "" {
				out = fmt.Sprintf("attendance-summary-%s.xlsx", m)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.WriteMonthlySummary(f, m, summaries); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(summaries), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to export (YYYY-MM)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default attendance-summary-<month>.xlsx)")
	cmd.MarkFlagRequired("month")
	return cmd
}

// =============================================================================
// WIRING
// =============================================================================

type application struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   attendance.TxStore
	closer  io.Closer
	service *attendance.Service
}

func (a *application) Close() error {
	return a.closer.Close()
}

func bootstrap(ctx context.Context, flags globalFlags, jsonLogs bool) (*application, error) {
	var envFiles []string
	if flags.envFile != "" {
		envFiles = append(envFiles, flags.envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}
	if flags.port > 0 {
		cfg.App.Port = flags.port
	}
	if flags.dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = flags.dbPath
	}

	logger := newLogger(cfg, jsonLogs)
	slog.SetDefault(logger)

	store, closer, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var source attendance.PunchSource
	if cfg.Biometric.URL != "" {
		source = biometric.NewClient(biometric.Config{
			BaseURL:    cfg.Biometric.URL,
			Token:      cfg.Biometric.Token,
			AuthScheme: cfg.Biometric.AuthScheme,
			Timeout:    cfg.Biometric.Timeout,
		}, logger)
	}

	service := attendance.NewService(store, source, attendance.Options{
		WeeklyOff:          cfg.Attendance.WeeklyOff,
		OvertimeMultiplier: cfg.Attendance.OvertimeMultiplier,
		Logger:             logger,
	})

	return &application{cfg: cfg, logger: logger, store: store, closer: closer, service: service}, nil
}

func newLogger(cfg *config.Config, jsonLogs bool) *slog.Logger {
	if !jsonLogs {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}
	logFormat := httplog.SchemaECS.Concise(cfg.IsDevelopment())
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "attendance-engine"),
		slog.String("env", cfg.App.Env),
	)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openStore(ctx context.Context, cfg config.DatabaseConfig) (attendance.TxStore, io.Closer, error) {
	switch cfg.Driver {
	case "postgres":
		store, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		return store, closerFunc(store.Close), nil
	default:
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return store, closerFunc(store.Close), nil
	}
}

// =============================================================================
// SERVE
// =============================================================================

func runServe(ctx context.Context, flags globalFlags) error {
	app, err := bootstrap(ctx, flags, true)
	if err != nil {
		return err
	}
	defer app.Close()
	logger := app.logger

	handler := api.NewHandler(app.service, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         logger,
		LogLevel:       app.cfg.SlogLevel(),
		AllowedOrigins: app.cfg.App.CORSOrigins,
	})

	scheduler := api.NewSyncScheduler(app.service, logger)
	scheduler.Interval = app.cfg.Biometric.SyncInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // vendor fetch + batch
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db_driver", app.cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
