// The notifier drains the Redis alert queue and emails each alert to the line
// supervisor. It runs as a separate process so email delivery never sits in
// the request path of the terminals.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lineops/boteo/internal/alerts"
)

const pollInterval = 5 * time.Second

func main() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	queue, err := alerts.NewQueue(redisAddr)
	if err != nil {
		log.Fatal(err)
	}

	defer func() {
		if err := queue.Close(); err != nil {
			log.Printf("failed to close alert queue: %v", err)
		}
	}()

	mailer, err := alerts.NewMailer(
		os.Getenv("SENDGRID_API_KEY"),
		getenvDefault("ALERT_FROM_NAME", "Line Monitor"),
		getenvDefault("ALERT_FROM_ADDRESS", "alerts@boteo.local"),
		os.Getenv("ALERT_RECIPIENT"),
	)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Notifier started, polling every %s", pollInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			log.Println("Shutting down notifier...")
			return
		case <-ticker.C:
			drainAlerts(queue, mailer)
		}
	}
}

func drainAlerts(queue *alerts.Queue, mailer *alerts.Mailer) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for {
		alert, err := queue.Dequeue(ctx)
		if err != nil {
			log.Printf("Failed to dequeue alert: %v", err)
			return
		}
		if alert == nil {
			return
		}

		if err := mailer.Send(alert); err != nil {
			log.Printf("Failed to deliver alert %s: %v", alert.ID, err)
			// Put it back so the next poll retries delivery.
			if err := queue.Enqueue(ctx, alert); err != nil {
				log.Printf("Failed to requeue alert %s: %v", alert.ID, err)
			}
			return
		}
	}
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
