package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/charger-booking/internal/application"
	"github.com/example/charger-booking/internal/config"
	chargerhttp "github.com/example/charger-booking/internal/http"
	"github.com/example/charger-booking/internal/persistence/sqlite"
)

func main() {
	root := &cobra.Command{
		Use:           "chargerd",
		Short:         "Condominium EV charger booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCommand(), migrateCommand(), setAccountStatusCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}

			pool, err := sqlite.NewConnectionPool(cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := sqlite.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			logger.Info("migrations applied", "dsn", cfg.DatabaseDSN)
			return nil
		},
	}
}

// setAccountStatusCommand is the operator-side glue for the billing
// subsystem: payment events land here until a webhook receiver exists.
func setAccountStatusCommand() *cobra.Command {
	var subscriptionID string
	cmd := &cobra.Command{
		Use:   "set-account-status <account-id> <pending_payment|active|suspended>",
		Short: "Set an account's billing status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}

			pool, err := sqlite.NewConnectionPool(cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := sqlite.Migrate(cmd.Context(), pool); err != nil {
				return err
			}

			accounts := sqlite.NewAccountRepository(pool)
			residents := sqlite.NewResidentRepository(pool)
			service := application.NewAccountServiceWithLogger(
				accounts, residents, uuid.NewString, time.Now, cfg.MaxChargers, logger)

			status := application.AccountStatus(args[1])
			if err := service.SetBillingStatus(cmd.Context(), args[0], status, subscriptionID); err != nil {
				return err
			}
			logger.Info("account status updated", "account_id", args[0], "status", args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&subscriptionID, "subscription-id", "", "billing subscription identifier to record")
	return cmd
}

func runServe() error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := sqlite.NewConnectionPool(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer pool.Close()

	if err := sqlite.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	accounts := sqlite.NewAccountRepository(pool)
	residents := sqlite.NewResidentRepository(pool)
	reservations := sqlite.NewReservationRepository(pool)
	sessions := sqlite.NewSessionRepository(pool)

	reservationService := application.NewReservationServiceWithLogger(
		reservations, residents, accounts, uuid.NewString, time.Now, logger)
	residentService := application.NewResidentServiceWithLogger(
		residents, accounts, uuid.NewString, time.Now, logger)
	accountService := application.NewAccountServiceWithLogger(
		accounts, residents, uuid.NewString, time.Now, cfg.MaxChargers, logger)
	authService := application.NewAuthServiceWithLogger(
		residents, sessions, nil, newSessionToken, time.Now, cfg.SessionTTL, logger)

	router := chargerhttp.NewRouter(chargerhttp.RouterConfig{
		Auth:           chargerhttp.NewAuthHandler(authService, logger),
		Accounts:       chargerhttp.NewAccountHandler(accountService, logger),
		Residents:      chargerhttp.NewResidentHandler(residentService, logger),
		Reservations:   chargerhttp.NewReservationHandler(reservationService, logger),
		Sessions:       authService,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return <-errCh
}

// bootstrap loads .env if present, then configuration, then the logger.
func bootstrap() (config.Config, *slog.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newSessionToken returns an opaque 256-bit token.
func newSessionToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("session token source failed: %v", err))
	}
	return hex.EncodeToString(buf)
}
