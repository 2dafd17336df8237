// Package main initializes and starts the credvault HTTPS server,
// setting up configuration, logging, the database connection, the query
// cache, the audit sink, services, handlers and TLS.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/vkotelnikov/credvault/internal/audit"
	"github.com/vkotelnikov/credvault/internal/cache"
	"github.com/vkotelnikov/credvault/internal/config"
	"github.com/vkotelnikov/credvault/internal/db"
	"github.com/vkotelnikov/credvault/internal/identity"
	"github.com/vkotelnikov/credvault/internal/logger"
	"github.com/vkotelnikov/credvault/internal/repository"
	"github.com/vkotelnikov/credvault/internal/server/handler/http"
	"github.com/vkotelnikov/credvault/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()
	addr := options.Port
	dsn := options.DatabaseDSN

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", orDefault(version, "N/A"))
	fmt.Printf("Build date: %s\n", orDefault(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize PostgreSQL connection and schema.
	postgresDB, err := db.InitPostgres(dsn)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Root context owning every background timer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodically remove long-expired credentials.
	db.StartExpiryCleaner(ctx, postgresDB,
		time.Hour,       // interval
		30*24*time.Hour, // retention: 30 days past expiry
		zapLogger,
	)

	// The query cache and its sweep timer belong to this composition
	// root, not to any package-level singleton.
	queryCache := cache.New(options.CacheCapacity, time.Duration(options.CacheTTLSeconds)*time.Second)
	queryCache.StartSweeper(ctx, time.Duration(options.SweepIntervalSeconds)*time.Second, zapLogger)

	// Audit events go to the structured log unless disabled.
	var sink audit.Sink = audit.NewZapSink(zapLogger)
	if !options.AuditEnabled {
		sink = audit.NoOpSink{}
	}

	// Wire the data layer and the credential service.
	credRepo := repository.NewPostgresCredentialRepository(postgresDB)
	credService := service.NewCredentialService(credRepo, identity.ContextProvider{}, queryCache, sink, zapLogger)

	// Create HTTP handlers and the router.
	credHandler := &http.CredentialsHandler{Service: credService}
	router := http.NewRouter(credHandler, zapLogger)

	// Load server TLS certificate and key.
	cert, err := tls.LoadX509KeyPair("certs/server.crt", "certs/server.key")
	if err != nil {
		zapLogger.Fatal("failed to load server TLS cert/key", zap.Error(err))
	}

	// Load and append CA certificate for client cert verification.
	caCert, err := os.ReadFile("certs/ca.crt")
	if err != nil {
		zapLogger.Fatal("failed to read CA cert", zap.Error(err))
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
		zapLogger.Fatal("failed to append CA cert to pool")
	}

	// Configure TLS to require and verify client certificates.
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    caCertPool,
		MinVersion:   tls.VersionTLS12,
	}

	// Create and start the HTTPS server.
	server := &nethttp.Server{
		Addr:      addr,
		Handler:   router,
		TLSConfig: tlsConfig,
	}

	zapLogger.Info("starting HTTPS server", zap.String("addr", addr))
	if err := server.ListenAndServeTLS("", ""); err != nil {
		zapLogger.Fatal("failed to start HTTPS server", zap.Error(err))
	}
}

// orDefault returns s if it is non-empty, otherwise def. Equivalent to
// cmp.Or for strings; cmp.Or requires Go 1.22 which is unavailable here.
func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
