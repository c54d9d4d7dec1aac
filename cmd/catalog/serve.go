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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/ean_catalog/internal/config"
	"github.com/Skotchmaster/ean_catalog/internal/db"
	"github.com/Skotchmaster/ean_catalog/internal/httpserver"
	"github.com/Skotchmaster/ean_catalog/internal/metrics"
	"github.com/Skotchmaster/ean_catalog/internal/ratelimit"
	"github.com/Skotchmaster/ean_catalog/internal/repo"
	"github.com/Skotchmaster/ean_catalog/internal/service"
	"github.com/Skotchmaster/ean_catalog/internal/session"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	l := a.logger
	config.MustNonEmptyBytes(cfg.SessionSecret, "SESSION_SECRET")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			l.Error("db_close_failed", "error", err)
		}
	}()

	store := &repo.GormRepo{DB: gdb}
	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, session.WithSecureCookie(cfg.CookieSecure))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("ean_catalog", reg)

	catalog, closeCatalog, err := a.newCatalog(ctx, store)
	if err != nil {
		return err
	}
	defer closeCatalog()

	authHandler := &httpserver.AuthHTTP{
		Svc:      &service.AuthService{Repo: store, Sessions: sessions},
		Sessions: sessions,
		Metrics:  m,
	}

	if cfg.RedisAddr != "" {
		rc, err := ratelimit.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			l.Warn("login_rate_limit_disabled", "reason", "redis unavailable", "error", err)
		} else {
			defer rc.Close()
			authHandler.Limiter = ratelimit.NewRedisLimiter(rc, cfg.LoginRateLimit, cfg.LoginRateWindow)
		}
	}

	e := httpserver.New(&httpserver.Deps{
		AuthHandler:    authHandler,
		CatalogHandler: &httpserver.CatalogHTTP{Svc: catalog, Metrics: m},
		Sessions:       sessions,
		Logger:         l,
		Metrics:        m,
		Ready: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keepIndexSynced(gctx, catalog, cfg.ESSyncInterval)
		return nil
	})
	g.Go(func() error {
		l.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	l.Info("shutdown_complete")
	return nil
}
