package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rafiff23/Mahligai-GPS/internal/api/fleetapi"
	"github.com/rafiff23/Mahligai-GPS/internal/broker/messages"
	"github.com/rafiff23/Mahligai-GPS/internal/services/auth"
	"github.com/rafiff23/Mahligai-GPS/internal/services/tracking"
)

type gpsAPIOpts struct {
	httpAddr    string
	swaggerPath string

	positionTopic string
	consumerGroup string
	trackPerMin   int64

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runGPSAPI(ctx context.Context, opts gpsAPIOpts, svc *tracking.Service, authSvc *auth.Service, rl fleetapi.RateLimiter, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	api := fleetapi.New(svc, authSvc, rl, opts.trackPerMin)

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", api.Routes())

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, r)
	}()

	go func() {
		slog.Info("kafka consumer started", "topic", opts.positionTopic, "group", opts.consumerGroup)
		_ = consumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.PositionReported
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			return svc.RecordPosition(ctx, m.DriverID, m.Latitude, m.Longitude)
		})
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
