package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hospitalkpi/kpi/internal/config"
	"github.com/hospitalkpi/kpi/internal/domain/dashboard"
	"github.com/hospitalkpi/kpi/internal/domain/insights"
	"github.com/hospitalkpi/kpi/internal/domain/kpi"
	"github.com/hospitalkpi/kpi/internal/domain/leaderboard"
	"github.com/hospitalkpi/kpi/internal/platform/auth"
	"github.com/hospitalkpi/kpi/internal/platform/db"
	"github.com/hospitalkpi/kpi/internal/platform/events"
	"github.com/hospitalkpi/kpi/internal/platform/metrics"
	"github.com/hospitalkpi/kpi/internal/platform/middleware"
	"github.com/hospitalkpi/kpi/internal/platform/randsrc"
	"github.com/hospitalkpi/kpi/migrations"
)

const (
	version   = "0.1.0"
	apiPrefix = "/api/v1"
)

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	rootCmd := &cobra.Command{
		Use:   "kpi-server",
		Short: "Hospital KPI analytics API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(consumeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig loads and validates configuration for every subcommand.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the KPI API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations (postgres)",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return nil, nil, fmt.Errorf("migrations apply to postgres only; the %s store creates its schema on open", cfg.StoreDriver)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationSource(cfg)), pool.Close, nil
}

// migrationSource prefers MIGRATIONS_DIR and falls back to the embedded set.
func migrationSource(cfg *config.Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		state, at := "pending", ""
		if s.Applied {
			state = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
	}
}

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Feed KPI submissions from Kafka into ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.EventsEnabled() {
				return fmt.Errorf("KAFKA_BROKERS must be set to consume submissions")
			}
			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			consumer, err := events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaKPITopic, cfg.KafkaGroupID, logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			// Records replayed from the stream are not re-published.
			svc := kpi.NewService(st.KPIs, st.Hospitals, events.NopPublisher{}, logger)
			logger.Info().
				Strs("brokers", cfg.KafkaBrokers).
				Str("topic", cfg.KafkaKPITopic).
				Str("group", cfg.KafkaGroupID).
				Msg("consuming kpi submissions")

			err = consumer.Run(ctx, func(ctx context.Context, rec events.KPIRecord) error {
				_, err := svc.SubmitRecord(ctx, rec)
				return err
			})
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

// newPublisher returns a Kafka publisher when brokers are configured.
func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if !cfg.EventsEnabled() {
		return events.NopPublisher{}, nil
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaKPITopic)
}

// authMiddleware picks dev auth in development, with bearer tokens still
// honoured when a signing key is configured.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	var jwtMW echo.MiddlewareFunc
	if cfg.AuthSigningKey != "" {
		jwtMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		})
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtMW)
	}
	return jwtMW
}

// newServer wires middleware and routes onto a fresh echo instance.
func newServer(cfg *config.Config, logger zerolog.Logger, st *stores, publisher events.Publisher) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders(apiPrefix))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, auth.DevUserHeader},
	}))
	e.Use(authMiddleware(cfg))

	e.GET("/health", db.HealthHandler(st.Health, cfg.StoreDriver, version))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	apiV1 := e.Group(apiPrefix)
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	rnd := randsrc.Default()

	kpiSvc := kpi.NewService(st.KPIs, st.Hospitals, publisher, logger)
	kpi.NewHandler(kpiSvc).RegisterRoutes(apiV1)

	insightSvc := insights.NewService(st.KPIs, st.Hospitals, insights.NewGateway(rnd, nil), rnd, logger)
	insights.NewHandler(insightSvc).RegisterRoutes(apiV1)

	boardSvc := leaderboard.NewService(st.KPIs, st.Hospitals, logger)
	leaderboard.NewHandler(boardSvc).RegisterRoutes(apiV1)

	dashSvc := dashboard.NewService(st.Users, st.Hospitals, st.KPIs, insightSvc, logger)
	dashboard.NewHandler(dashSvc).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer st.Close()
	logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to store")

	publisher, err := newPublisher(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event publisher")
	}
	defer publisher.Close()
	if cfg.EventsEnabled() {
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaKPITopic).Msg("publishing kpi events")
	}

	e := newServer(cfg, logger, st, publisher)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
