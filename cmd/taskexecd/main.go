package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	taskexec "github.com/linkflow-ai/taskexec"
	"github.com/linkflow-ai/taskexec/internal/platform/config"
	"github.com/linkflow-ai/taskexec/internal/platform/health"
	"github.com/linkflow-ai/taskexec/internal/platform/logger"
	"github.com/linkflow-ai/taskexec/internal/platform/metrics"
	"github.com/linkflow-ai/taskexec/internal/platform/telemetry"
)

const serviceName = "taskexecd"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logger)
	log.Info("starting taskexecd", "port", cfg.HTTP.Port, "environment", cfg.Service.Environment)

	tel, err := telemetry.New(telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		JaegerEndpoint: cfg.Telemetry.JaegerEndpoint,
		MetricsEnabled: cfg.Telemetry.MetricsEnabled,
		TracingEnabled: cfg.Telemetry.TracingEnabled,
	})
	if err != nil {
		log.Fatal("init telemetry", "error", err)
	}
	defer tel.Close()

	execZap, err := zap.NewProduction()
	if err != nil {
		log.Fatal("init executor logger", "error", err)
	}
	defer execZap.Sync()

	execMetrics := taskexec.NewPrometheusMetrics(serviceName)
	groupOpts := []taskexec.Option{
		taskexec.WithLogger(taskexec.NewZapLogger(execZap)),
		taskexec.WithMetrics(execMetrics),
		taskexec.WithLoggingThreshold(cfg.Executor.LoggingThreshold),
	}
	if cfg.Executor.Undestroyable {
		groupOpts = append(groupOpts, taskexec.WithUndestroyable())
	}
	group := taskexec.NewGroup(serviceName, groupOpts...)

	healthHandler := health.NewHandler(serviceName, cfg.Version)
	healthHandler.AddCheck("low", health.ExecutorChecker(group.Band(taskexec.BandLow).IsShutDown))
	healthHandler.AddCheck("normal", health.ExecutorChecker(group.Band(taskexec.BandNormal).IsShutDown))
	healthHandler.AddCheck("high", health.ExecutorChecker(group.Band(taskexec.BandHigh).IsShutDown))

	httpMetrics := metrics.NewMetrics(serviceName)

	hub := NewHub()
	hubStop := make(chan struct{})
	go hub.Run(hubStop)

	srv := NewServer(group, hub, log, httpMetrics, healthHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)

	group.ShutDown(group.Token(), true)
	close(hubStop)
}
