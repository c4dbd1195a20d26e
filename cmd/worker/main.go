package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prayerlog/internal/cache"
	"prayerlog/internal/config"
	"prayerlog/internal/metrics"
	"prayerlog/internal/outbox"
	"prayerlog/internal/sheets"
)

// maxAttempts bounds redelivery of a failed remote write before the
// message is dropped. The local cache keeps the record either way.
const maxAttempts = 5

// Worker drains the outbox and replays queued writes against the sheet
// endpoint.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisStore := cache.NewRedis(cfg.RedisAddr)

	var q outbox.Queue
	if cfg.OutboxBackend == "memory" {
		q = outbox.NewInMemory(64)
	} else {
		q = outbox.NewRedisOutbox(redisStore.Client, "prayerlog:outbox")
	}

	sheet := sheets.New(cfg.SheetURL, cfg.SheetTimeout, cfg.SheetSkip || cfg.SheetURL == "")

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("outbox consume init failed: %v", err)
	}

	log.Println("worker started, waiting for queued writes...")
	for msg := range messages {
		if err := sheet.Post(ctx, msg.Action, msg.Payload); err != nil {
			msg.Attempts++
			if msg.Attempts >= maxAttempts {
				log.Printf("dropping %s write after %d attempts: %v", msg.Action, msg.Attempts, err)
				metrics.OutboxDeliveries.WithLabelValues("dropped").Inc()
				continue
			}
			log.Printf("%s write failed (attempt %d), requeueing: %v", msg.Action, msg.Attempts, err)
			metrics.OutboxDeliveries.WithLabelValues("retried").Inc()
			if err := q.Publish(ctx, msg); err != nil {
				log.Printf("requeue failed, write lost: %v", err)
			}
			// Back off a little so a dead endpoint doesn't spin the loop.
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			continue
		}
		metrics.OutboxDeliveries.WithLabelValues("delivered").Inc()
		log.Printf("delivered %s write", msg.Action)
	}

	log.Println("worker stopped")
}
