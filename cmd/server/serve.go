package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"haruboard/internal/db"
	"haruboard/internal/router"
	"haruboard/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	if a.cfg.DatabaseDriver == "sqlite" {
		// 本地开发直接建表
		if err := db.Migrate(a.db); err != nil {
			return err
		}
	}

	flushSentry, err := telemetry.InitSentry(a.cfg.SentryDSN, a.cfg.Env)
	if err != nil {
		return err
	}
	defer flushSentry()

	shutdownTracer, err := telemetry.InitTracer(ctx, a.cfg.OTLPEndpoint, "haruboard")
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn("shutdown tracer", zap.Error(err))
		}
	}()

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.New(router.Deps{
		Log:           log,
		DB:            a.db,
		Sessions:      a.sessions,
		Posts:         a.posts,
		SessionSecret: a.cfg.SessionSecret,
		Secure:        a.cfg.IsProduction(),
		PageSize:      a.cfg.PageSize,
		Sentry:        a.cfg.SentryDSN != "",
		Tracing:       a.cfg.OTLPEndpoint != "",
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.views.Run(gctx)
	})
	g.Go(func() error {
		log.Info("haruboard server starting", zap.String("addr", srv.Addr), zap.String("env", a.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		if cerr := a.views.Close(sctx); cerr != nil {
			log.Warn("flush view counts", zap.Error(cerr))
		}
		return err
	})

	return g.Wait()
}
