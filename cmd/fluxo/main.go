package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fluxo/internal/amqp"
	"fluxo/internal/cli"
	apphttp "fluxo/internal/http"
	"fluxo/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	stack, err := cli.NewStack(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize dashboard", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	opts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithReadiness(stack.Ping),
		apphttp.WithLedger(stack.Backend),
	}

	// Mutations from other instances arrive over AMQP; without it they are
	// applied locally only.
	var bus *amqp.Client
	if cfg.AMQPURL != "" {
		bus, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
			amqp.WithLogger(logger),
			amqp.WithReconnectHook(stack.Coordinator.Reconnected))
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, mutations stay local", log.FieldError, err)
			bus = nil
		} else {
			opts = append(opts, apphttp.WithPublisher(bus))
			logger.Info("AMQP mutation bus enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, stack.Service, stack.Coordinator, opts...)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if bus != nil {
			if err := bus.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := stack.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	})

	if bus != nil {
		go func() {
			if err := bus.Consume(ctx, amqp.InvalidateOn(stack.Coordinator)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Mutation consumer stopped", log.FieldError, err)
			}
		}()
	}

	// Warm the cache so the first request does not wait for every source.
	go func() {
		if _, err := stack.Service.Snapshot(ctx); err != nil {
			logger.Warn("Initial dashboard load failed", log.FieldError, err)
		}
	}()

	logger.Info("Starting fluxo server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldHorizon, cfg.HorizonMonths,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
