// Package main initializes and starts the TapKeeper reference backend,
// setting up configuration, logging, the database, the card reader,
// repositories, services, handlers and sessions.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/TapKeeper/internal/config"
	"github.com/atinyakov/TapKeeper/internal/db"
	"github.com/atinyakov/TapKeeper/internal/logger"
	"github.com/atinyakov/TapKeeper/internal/middleware"
	"github.com/atinyakov/TapKeeper/internal/repository"
	"github.com/atinyakov/TapKeeper/internal/rfid"
	"github.com/atinyakov/TapKeeper/internal/server/handler/http"
	"github.com/atinyakov/TapKeeper/internal/service"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Purge soft-deleted vault entries.
	db.StartSoftDeleteCleaner(ctx, postgresDB,
		time.Hour,       // interval
		30*24*time.Hour, // retention: 30 days
		zapLogger,
	)

	// The simulated reader is always available; a serial device, when
	// configured, serves the real scan endpoint.
	testReader := rfid.NewQueueReader(0)
	var scanner rfid.Reader = testReader
	closeSerial := func() error { return nil }
	if options.RFIDDevice != "" {
		serial, closer, err := rfid.OpenSerial(options.RFIDDevice, zapLogger)
		if err != nil {
			zapLogger.Fatal("cannot open RFID reader", zap.String("device", options.RFIDDevice), zap.Error(err))
		}
		scanner, closeSerial = serial, closer.Close
		zapLogger.Info("reading cards from serial device", zap.String("device", options.RFIDDevice))
	}

	// Initialize repositories.
	authRepo := repository.NewPostgresAuthRepository(postgresDB)
	vaultRepo := repository.NewPostgresVaultRepository(postgresDB)

	// Initialize business-logic services.
	authService := service.NewAuthService(authRepo)
	vaultService := service.NewVaultService(vaultRepo)

	tlsEnabled := options.TLSCert != "" && options.TLSKey != ""
	store := middleware.NewCookieStore([]byte(options.SessionKey), tlsEnabled)

	// Create HTTP handlers for auth and vault endpoints.
	authHandler := &http.AuthHandler{
		AuthService:  authService,
		Scanner:      scanner,
		TestReader:   testReader,
		Sessions:     store,
		PasswordOnly: options.LoginVariant == "password",
		Log:          zapLogger,
	}
	vaultHandler := &http.VaultHandler{VaultService: vaultService, Log: zapLogger}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, vaultHandler, store, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("starting server", zap.String("addr", options.Address), zap.Bool("tls", tlsEnabled))
		if tlsEnabled {
			serveErr <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			serveErr <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Error("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = multierr.Combine(
		server.Shutdown(shutdownCtx),
		closeSerial(),
		postgresDB.Close(),
	)
	if err != nil {
		zapLogger.Error("shutdown finished with errors", zap.Error(err))
	}
}
