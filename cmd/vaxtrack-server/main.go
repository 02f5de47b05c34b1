package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vaxtrack/vaxtrack/internal/config"
	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/feedback"
	"github.com/vaxtrack/vaxtrack/internal/domain/identity"
	"github.com/vaxtrack/vaxtrack/internal/domain/reference"
	"github.com/vaxtrack/vaxtrack/internal/domain/vaccination"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/clock"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
	"github.com/vaxtrack/vaxtrack/internal/platform/events"
	"github.com/vaxtrack/vaxtrack/internal/platform/middleware"
	"github.com/vaxtrack/vaxtrack/internal/platform/telemetry"
	"github.com/vaxtrack/vaxtrack/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vaxtrack-server",
		Short: "Child vaccination scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(adminCmd())

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
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, migrationFiles(dir)).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, migrationFiles(dir)).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue scheduled vaccinations as missed once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadValidated()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			marked, err := a.schedules.Sweep(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			fmt.Printf("Marked %d schedule(s) as missed.\n", marked)
			return nil
		},
	}
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if name == "" || email == "" || password == "" {
				return fmt.Errorf("--name, --email and --password are required")
			}

			cfg, logger, err := loadValidated()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL, clock.System{})
			svc := identity.NewService(identity.NewUserRepoPG(pool), tokens, nil, cfg.BcryptCost, logger)
			u, err := svc.CreateAdmin(ctx, identity.CreateUserRequest{Name: name, Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Printf("Admin %s created with id %s.\n", u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("password", "", "Initial password")
	cmd.AddCommand(createCmd)

	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadValidated() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, newLogger(cfg.Env), nil
}

func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

// app holds the wired services shared by serve and the one-shot commands.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	metrics   *telemetry.Metrics
	tokens    *auth.TokenIssuer
	revoker   auth.Revoker
	publisher events.Publisher
	checks    []db.Check
	closers   []func()

	users     *identity.Service
	children  *child.Service
	refs      *reference.Service
	schedules *vaccination.Service
	feedback  *feedback.Service
}

// newApp connects to Postgres and the optional Redis and RabbitMQ backends,
// then wires the domain services.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, pool: pool}
	a.closers = append(a.closers, pool.Close)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		store := auth.NewRedisRevocationStore(client, logger)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.revoker = store
		a.checks = append(a.checks, db.Check{Name: "redis", Ping: store.Ping})
		a.closers = append(a.closers, func() { client.Close() })
		logger.Info().Msg("token revocation backed by redis")
	} else {
		store := auth.NewMemoryRevocationStore(time.Minute)
		a.revoker = store
		a.closers = append(a.closers, store.Close)
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewRabbitMQPublisher(cfg.AMQPURL, cfg.EventsQueue, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = pub
		a.checks = append(a.checks, db.Check{Name: "amqp", Ping: pub.Ping})
		logger.Info().Str("queue", cfg.EventsQueue).Msg("schedule events published to rabbitmq")
	} else {
		a.publisher = events.NewLogPublisher(logger)
	}
	a.closers = append(a.closers, func() {
		if err := a.publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing event publisher")
		}
	})

	a.wire()
	return a, nil
}

// wire builds the domain services over a.pool. It performs no I/O.
func (a *app) wire() {
	if a.metrics == nil {
		a.metrics = telemetry.New()
	}
	if a.tokens == nil {
		a.tokens = auth.NewTokenIssuer([]byte(a.cfg.JWTSecret), a.cfg.JWTIssuer, a.cfg.JWTTTL, clock.System{})
	}

	scheduleRepo := vaccination.NewScheduleRepoPG(a.pool)

	a.users = identity.NewService(identity.NewUserRepoPG(a.pool), a.tokens, a.revoker, a.cfg.BcryptCost, a.logger)
	a.children = child.NewService(child.NewChildRepoPG(a.pool), clock.System{})
	a.refs = reference.NewService(
		reference.NewVaccineRepoPG(a.pool),
		reference.NewVenueRepoPG(a.pool),
		reference.NewRegionRepoPG(a.pool),
		a.users,
		scheduleRepo,
	)
	a.schedules = vaccination.NewService(vaccination.Deps{
		Schedules: scheduleRepo,
		Children:  a.children,
		Refs:      a.refs,
		Users:     a.users,
		Publisher: a.publisher,
		Observer:  a.metrics,
		Clock:     clock.System{},
		Logger:    a.logger,
	})
	a.feedback = feedback.NewService(feedback.NewFeedbackRepoPG(a.pool), a.logger)
}

// Close releases backends in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newServer builds the echo instance with the global middleware chain and
// every route.
func newServer(a *app) *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(a.logger)

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(a.metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Sanitize(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", db.HealthHandler(a.pool, a.checks...))
	e.GET("/metrics", a.metrics.Handler())

	public := e.Group("")
	authed := e.Group("",
		auth.JWTMiddleware(auth.JWTConfig{
			Tokens:   a.tokens,
			Revoker:  a.revoker,
			Subjects: a.users,
			Logger:   a.logger,
		}),
		middleware.Audit(a.logger),
	)

	policy := auth.DefaultPolicy()
	identity.NewHandler(a.users, cfg.JWTTTL, cfg.IsProduction()).RegisterRoutes(public, authed, policy)
	child.NewHandler(a.children).RegisterRoutes(authed, policy)
	reference.NewHandler(a.refs).RegisterRoutes(public, authed, policy)
	vaccination.NewHandler(a.schedules).RegisterRoutes(authed, policy)
	feedback.NewHandler(a.feedback).RegisterRoutes(authed, policy)

	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		l := newLogger(os.Getenv("ENV"))
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()
	logger.Info().Msg("connected to database")

	e := newServer(a)

	var sweeper *vaccination.Sweeper
	if cfg.SweepEnabled {
		sweeper, err = vaccination.NewSweeper(a.schedules, cfg.SweepSchedule, a.metrics, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid sweep schedule")
		}
		sweeper.Start()
		logger.Info().Str("schedule", cfg.SweepSchedule).Time("next", sweeper.Next()).Msg("sweeper started")
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sweeper != nil {
		select {
		case <-sweeper.Stop().Done():
		case <-ctx.Done():
			logger.Warn().Msg("sweep still running at shutdown")
		}
	}
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
