package main

import (
	"context"
	"log"
	"time"

	"github.com/lineops/boteo/internal/metrics"
	"github.com/lineops/boteo/internal/model"
	"github.com/lineops/boteo/internal/repository"
)

func startMetricsCollector(store repository.Store) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		updateLineMetrics(store)
	}
}

func updateLineMetrics(store repository.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	onPause, err := store.CountOpenPauses(ctx)
	if err != nil {
		log.Printf("Failed to count open pauses for metrics: %v", err)
		return
	}
	metrics.UpdateOperatorsOnPause(onPause)

	cycles, err := store.CountCycles(ctx, model.Day(time.Now()))
	if err != nil {
		log.Printf("Failed to count cycles for metrics: %v", err)
		return
	}
	metrics.UpdateCyclesToday(cycles)
}
