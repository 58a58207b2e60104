package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/docflow/internal/adapters/http"
	"github.com/kirillkom/docflow/internal/bootstrap"
	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/infrastructure/notify/websocket"
	"github.com/kirillkom/docflow/internal/observability/logging"
	"github.com/kirillkom/docflow/internal/observability/metrics"
	"github.com/kirillkom/docflow/internal/observability/tracing"
)

const service = "docflow-api"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.New(os.Stdout, service, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: service,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Printf("tracing disabled: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	app, err := bootstrap.New(ctx, cfg, service)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	hub := websocket.NewHub(websocket.Options{
		AllowedOrigins: cfg.StreamOrigins,
		Status: func(ctx context.Context, documentID string) (any, error) {
			return app.Status.Status(ctx, documentID)
		},
		OnOpen:  httpMetrics.StreamOpened,
		OnClose: httpMetrics.StreamClosed,
	})

	go func() {
		err := app.Events.Subscribe(ctx, func(event domain.TransitionEvent) {
			hub.Notify(ctx, event)
		})
		if err != nil {
			log.Printf("event relay stopped: %v", err)
		}
	}()

	router, err := httpadapter.NewRouter(cfg, httpadapter.Dependencies{
		Submitter: app.Submit,
		Reviews:   app.Review,
		Canceller: app.Cancel,
		Status:    app.Status,
		Stream:    hub,
		Metrics:   httpMetrics,
	})
	if err != nil {
		log.Fatalf("router error: %v", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
