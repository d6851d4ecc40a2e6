package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minitru/bunnyAI/internal/bootstrap"
	"github.com/minitru/bunnyAI/internal/config"
	"github.com/minitru/bunnyAI/internal/queue"
	"github.com/minitru/bunnyAI/internal/util"
	"github.com/minitru/bunnyAI/pkg/ai"
	"github.com/minitru/bunnyAI/pkg/leaselock"
	"github.com/minitru/bunnyAI/pkg/logger"
	"github.com/minitru/bunnyAI/pkg/logger/console"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		JSON:   cfg.JSONLogs(),
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	// the worker always consumes the queue and needs Postgres for leases
	cfg.RefreshMode = config.RefreshQueue
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}
	if cfg.ChunkStore != config.StorePGVector {
		logger.Fatal("The worker requires CHUNK_STORE=pgvector")
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialise components", "err", err)
	}
	defer app.Close()

	// Init rabbitmq
	conn, err := queue.Init(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.RefreshQueue); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// prefetch=1: one refresh at a time per worker
	if err := ch.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	workerID, err := gonanoid.New(8)
	if err != nil {
		logger.Fatal("Failed to create worker id", "err", err)
	}
	handler := queue.NewRefreshHandler(app.Refresher, app.Locker, leaselock.Options{
		TTL:         leaselock.DefaultTTL,
		TokenPrefix: "worker-" + workerID + "-",
	})

	msgs, err := ch.Consume(
		queue.RefreshQueue,
		"refresh_consumer_"+workerID,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.RefreshQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.RefreshQueue, "worker", workerID)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.RefreshQueue)
				return
			}

			startTime := time.Now()
			logger.Info("Received message", "queue", queue.RefreshQueue, "retries", queue.Retries(msg))

			if err := handler.Handle(ctx, msg.Body); err != nil {
				logger.Error("Error processing message", "queue", queue.RefreshQueue, "err", err)
				if err := queue.HandleFailure(ctx, ch, msg, queue.RefreshQueue, err); err != nil {
					logger.Error("Failed to reroute message", "err", err)
				}
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.RefreshQueue)
			}

			logMetrics(app.Client.GetMetrics(), time.Since(startTime))
			app.Client.ResetMetrics()
			logger.Info("Waiting for next message")
		}
	}
}

func logMetrics(metrics ai.ModelMetrics, processing time.Duration) {
	logger.Info(
		"AI Metrics",
		"requests", metrics.Requests,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
		"duration", clock(time.Duration(metrics.DurationMs)*time.Millisecond),
	)
	logger.Info("Processing time", "duration", clock(processing))
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
