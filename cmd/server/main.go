package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"work-platform/internal/assistant"
	"work-platform/internal/auth"
	"work-platform/internal/config"
	"work-platform/internal/database"
	"work-platform/internal/handlers"
	"work-platform/internal/logutils"
	"work-platform/internal/metrics"
	"work-platform/internal/server"
	"work-platform/internal/service"
	"work-platform/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:           "work-platform",
	Short:         "Площадка заказов для заказчиков и исполнителей",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Применить миграции и выйти",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}
		logutils.Log.WithField("db", cfg.DBName).Info("migrations applied")
		return nil
	},
}

func main() {
	rootCmd.AddCommand(migrateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logutils.SetLevel(cfg.LogLevel)

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func serve(ctx context.Context) error {
	cfg, db, err := setup(ctx)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	files := storage.New(cfg.UploadRoot)
	m := metrics.New(prometheus.NewRegistry())
	ai := assistant.New(cfg.AI)
	if !ai.Configured() {
		logutils.Log.Warn("AI_API_KEY is not set, assistant is disabled")
	}

	r, err := server.NewRouter(cfg, server.Deps{
		Handler:  handlers.New(service.New(db, files, m), files, ai),
		Resolver: auth.NewResolver(db),
		Metrics:  m,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	servers := []*http.Server{srv}
	if cfg.MetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func(s *http.Server) {
			logutils.Log.WithField("addr", s.Addr).Info("starting server")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(s)
	}

	var runErr error
	select {
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logutils.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("shutdown %s: %w", s.Addr, err)
		}
	}
	return runErr
}
