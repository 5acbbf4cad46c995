package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthid/healthid/internal/config"
	"github.com/healthid/healthid/internal/domain/audit"
	"github.com/healthid/healthid/internal/domain/consent"
	"github.com/healthid/healthid/internal/domain/emergency"
	"github.com/healthid/healthid/internal/domain/identity"
	"github.com/healthid/healthid/internal/platform/auth"
	"github.com/healthid/healthid/internal/platform/blobstore"
	"github.com/healthid/healthid/internal/platform/db"
	"github.com/healthid/healthid/internal/platform/ledger"
	"github.com/healthid/healthid/internal/platform/metrics"
	"github.com/healthid/healthid/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthid-server",
		Short: "Healthcare identity and consent API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Document storage: IPFS when configured, in-memory otherwise.
	var blobs blobstore.Store
	if cfg.IPFSAPIURL != "" {
		ipfsStore, err := blobstore.NewIPFSStore(cfg.IPFSAPIURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize IPFS store")
		}
		blobs = ipfsStore
		logger.Info().Str("api", cfg.IPFSAPIURL).Msg("document storage: IPFS")
	} else {
		blobs = blobstore.NewMemStore()
		logger.Warn().Msg("IPFS_API_URL not set; documents are stored in memory only")
	}

	// Chain mirror: best-effort, the relational store stays authoritative.
	var mirror ledger.Mirror = ledger.NopMirror{}
	if cfg.LedgerRPCURL != "" {
		evm, err := ledger.DialEVM(ctx, cfg.LedgerRPCURL, cfg.LedgerAddress, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("chain mirror unavailable; continuing without it")
		} else {
			mirror = evm
			logger.Info().Str("rpc", cfg.LedgerRPCURL).Msg("chain mirror connected")
		}
	}

	qrCodec, err := emergency.NewTokenCodec([]byte(cfg.QRHMACKey))
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid QR_HMAC_KEY")
	}

	// Repositories and services
	auditSvc := audit.NewService(audit.NewRepoPG(pool))

	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		identity.NewProfileRepoPG(pool),
		identity.NewKYCRepoPG(pool),
		identity.NewDocumentRepoPG(pool),
		auditSvc,
		blobs,
		pool,
	)

	consentSvc := consent.NewService(consent.NewRepoPG(pool), auditSvc, identitySvc, mirror, pool, logger)

	qrMaxAge := time.Duration(cfg.QRMaxAgeHours) * time.Hour
	emergencySvc := emergency.NewService(emergency.NewRepoPG(pool), qrCodec, identitySvc, consentSvc, auditSvc, pool, logger, qrMaxAge)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/healthz", db.HealthHandler(pool))
	e.GET("/metrics", metrics.Handler())

	// /api/v1: login is public, everything else behind JWT.
	public := e.Group("/api/v1")
	api := e.Group("/api/v1")
	api.Use(auth.JWTMiddleware([]byte(cfg.JWTSecret)))

	jwtTTL := time.Duration(cfg.JWTTTLMinutes) * time.Minute
	identity.NewHandler(identitySvc, consentSvc, []byte(cfg.JWTSecret), jwtTTL).RegisterRoutes(public, api)
	consent.NewHandler(consentSvc).RegisterRoutes(api)
	emergency.NewHandler(emergencySvc).RegisterRoutes(api)
	audit.NewHandler(auditSvc).RegisterRoutes(api)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
