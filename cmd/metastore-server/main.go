// Package main provides the metadata store server entry point.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/mlfoundry/metastore/pkg/audit"
	"github.com/mlfoundry/metastore/pkg/auth"
	"github.com/mlfoundry/metastore/pkg/config"
	"github.com/mlfoundry/metastore/pkg/db"
	"github.com/mlfoundry/metastore/pkg/rbac"
	"github.com/mlfoundry/metastore/pkg/registry"
	"github.com/mlfoundry/metastore/pkg/secrets"
	"github.com/mlfoundry/metastore/pkg/server"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
		settingsPath string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "postgres", "Database type (postgres, mysql or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&settingsPath, "settings", "", "Path to the server settings file (watched for changes)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if databaseDSN == "" {
		databaseDSN = os.Getenv("DATABASE_DSN")
	}

	gormDB, err := db.Open(db.Config{Type: databaseType, DSN: databaseDSN})
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}

	secretStore := secrets.NewSecretStore(gormDB)
	modelStore := registry.NewModelStore(gormDB)
	auditStore := audit.NewEventStore(gormDB)

	// Replicas race on startup; the lock serializes schema migration.
	locker := db.NewMigrationLocker(gormDB)
	err = locker.WithLock(context.Background(), func() error {
		if err := secretStore.AutoMigrate(); err != nil {
			return err
		}
		if err := modelStore.AutoMigrate(); err != nil {
			return err
		}
		return auditStore.AutoMigrate()
	})
	if err != nil {
		fatal(logger, "failed to migrate schema", err)
	}

	rbacCfg := rbac.ConfigFromEnv()
	if settingsPath != "" {
		settings, err := config.LoadSettings(settingsPath)
		if err != nil {
			fatal(logger, "failed to load settings", err)
		}
		rbacCfg.Enabled = settings.RBAC.Enabled
	}

	authorizer, err := buildAuthorizer(rbacCfg, logger)
	if err != nil {
		fatal(logger, "failed to build authorizer", err)
	}

	engine := rbac.NewEngine(authorizer, rbacCfg, logger)
	engine.OnDenied(func(r rbac.Resource) {
		logger.Info("permission denied", "resource", r.String())
	})

	extractor, err := buildExtractor(logger)
	if err != nil {
		fatal(logger, "failed to set up authentication", err)
	}

	auditCfg := audit.ConfigFromEnv()
	srv := server.New(engine, secretStore, modelStore, logger)
	router := srv.Router(extractor, audit.Middleware(auditStore, auditCfg, logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if auditCfg.Enabled {
		go audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger).Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if settingsPath != "" {
		go func() {
			err := config.WatchSettings(ctx, settingsPath, logger, func(s config.Settings) {
				engine.SetEnabled(s.RBAC.Enabled)
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("settings watcher stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("metastore server ready",
			"listen", listenAddr,
			"db", databaseType,
			"rbac_enabled", engine.Enabled(),
			"authz_mode", string(rbacCfg.Mode),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "HTTP server error", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("metastore server stopped")
}

// buildAuthorizer constructs the permission oracle for the configured
// mode. The SAR backend requires an in-cluster Kubernetes config and is
// wrapped in the TTL verdict cache.
func buildAuthorizer(cfg *rbac.Config, logger *slog.Logger) (rbac.Authorizer, error) {
	switch cfg.Mode {
	case rbac.AuthzModeSAR:
		k8sCfg, err := rest.InClusterConfig()
		if err != nil {
			return nil, err
		}
		clientset, err := kubernetes.NewForConfig(k8sCfg)
		if err != nil {
			return nil, err
		}
		logger.Info("using SubjectAccessReview authorizer", "cacheTTL", cfg.CacheTTL)
		return rbac.NewCachedAuthorizer(rbac.NewSARAuthorizer(clientset), cfg.CacheTTL), nil
	default:
		logger.Info("using allow-all authorizer")
		return rbac.AllowAllAuthorizer{}, nil
	}
}

// buildExtractor constructs the identity extractor based on
// METASTORE_AUTH_MODE: jwt for bearer tokens, header (the default) for
// trusted proxy headers.
func buildExtractor(logger *slog.Logger) (auth.Extractor, error) {
	switch os.Getenv("METASTORE_AUTH_MODE") {
	case "jwt":
		return auth.NewJWTExtractor(auth.JWTExtractorConfig{
			PublicKeyPath: os.Getenv("METASTORE_JWT_PUBLIC_KEY_PATH"),
			Issuer:        os.Getenv("METASTORE_JWT_ISSUER"),
			Audience:      os.Getenv("METASTORE_JWT_AUDIENCE"),
			Logger:        logger,
		})
	default:
		logger.Info("using header-based identity (trusted proxy mode)")
		return auth.HeaderExtractor, nil
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
