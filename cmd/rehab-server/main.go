package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/config"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/domain/comment"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/domain/identity"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/domain/notification"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/domain/progress"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/domain/task"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/access"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/apperr"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/auth"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/db"
	"github.com/CHING-WENLAI1031/Rehab-Tracker-sub000/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rehab-server",
		Short: "Rehab care coordination API server",
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

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
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

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// commentTargets resolves comment targets to their patient anchor by
// delegating to the owning domain service. Patient and general targets are
// anchored on the target id itself.
type commentTargets struct {
	tasks    *task.Service
	progress *progress.Service
}

func (t *commentTargets) TargetPatient(ctx context.Context, kind string, id uuid.UUID) (uuid.UUID, error) {
	switch kind {
	case comment.TargetTask:
		return t.tasks.PatientOf(ctx, id)
	case comment.TargetProgress:
		return t.progress.PatientOf(ctx, id)
	case comment.TargetPatient, comment.TargetGeneral:
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("%w: unknown target kind %q", apperr.ErrValidation, kind)
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// The permission matrix is validated at startup so a hole in it stops
	// the server rather than surfacing as a runtime denial.
	engine, err := access.NewEngine(access.DefaultMatrix())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid permission matrix")
	}

	jwtCfg := auth.JWTConfig{Issuer: cfg.JWTIssuer, Secret: []byte(cfg.JWTSecret)}

	// Repositories and services.
	userRepo := identity.NewUserRepoPG(pool)
	assignmentRepo := identity.NewAssignmentRepoPG(pool)
	identitySvc := identity.NewService(userRepo, assignmentRepo, engine)

	taskRepo := task.NewRepoPG(pool)
	taskSvc := task.NewService(taskRepo, engine)

	progressRepo := progress.NewRepoPG(pool)
	progressSvc := progress.NewService(progressRepo, taskSvc, engine)

	notificationRepo := notification.NewRepoPG(pool)
	notificationSvc := notification.NewService(notificationRepo, engine)
	dispatcher := notification.NewStoreDispatcher(notificationRepo, logger)

	commentRepo := comment.NewRepoPG(pool)
	commentSvc := comment.NewService(commentRepo, identitySvc,
		&commentTargets{tasks: taskSvc, progress: progressSvc},
		engine, dispatcher, cfg.FlagThreshold)

	// Echo server.
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	// Routes.
	api := e.Group("/api/v1")

	identityHandler := identity.NewHandler(identitySvc, jwtCfg, cfg.IsDev())
	identityHandler.RegisterRoutes(api)
	identityHandler.RegisterAuthRoutes(api)

	task.NewHandler(taskSvc, identitySvc).RegisterRoutes(api)
	progress.NewHandler(progressSvc, identitySvc).RegisterRoutes(api)
	notification.NewHandler(notificationSvc, identitySvc).RegisterRoutes(api)
	comment.NewHandler(commentSvc, identitySvc).RegisterRoutes(api)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown.
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
