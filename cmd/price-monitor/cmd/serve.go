package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/price-monitor/internal/api/handlers"
	"github.com/donaldgifford/price-monitor/internal/api/middleware"
	"github.com/donaldgifford/price-monitor/internal/engine"
	"github.com/donaldgifford/price-monitor/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and poll scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     Version,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.Warn("flushing traces", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	a.scheduler.RecoverStaleJobRuns(ctx)
	a.scheduler.Start()

	e := newServer(a, log)

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr, "version", Version)
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutting down server", "error", err)
	}

	select {
	case <-a.scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("poll cycle still running at shutdown deadline")
	}

	log.Info("server stopped")
	return nil
}

// newServer builds the echo server with probes, metrics and the Huma API.
func newServer(a *app, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(log))
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(a.store)
	for _, rc := range a.readiness {
		health.Require(rc.name, handlers.PingFunc(rc.ping))
	}
	health.Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("price-monitor API", Version))
	registerRoutes(api, a)

	return e
}

func registerRoutes(api huma.API, a *app) {
	handlers.RegisterSubscriptionRoutes(api, handlers.NewSubscriptionsHandler(a.manager, a.store))
	handlers.RegisterTriggerRoutes(api, handlers.NewCheckHandler(a.manager))
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(a.store, engine.PollJobName))
	handlers.RegisterSystemStateRoutes(api, handlers.NewSystemStateHandler(a.engine, a.scheduler))
}
