package queue

import (
	"context"
	"fmt"
	"log/slog"
)

// MaintenanceResult reports what one maintenance invocation did.
type MaintenanceResult struct {
	Reset     int `json:"reset"`
	Requeued  int `json:"requeued"`
	CleanedUp int `json:"cleaned_up"`
}

// Maintenance is the maintenance loop (C5): one invocation runs, in
// order, reset_expired, requeue_dlq, and cleanup.
type Maintenance struct {
	store Store
	log   *slog.Logger

	ExpiryMinutes int
	RequeueLimit  int
	RetentionDays int
}

// NewMaintenance constructs a Maintenance loop with the documented
// defaults: reset_expired(30), requeue_dlq(100), cleanup(7).
func NewMaintenance(store Store, log *slog.Logger) *Maintenance {
	return &Maintenance{
		store:         store,
		log:           log,
		ExpiryMinutes: DefaultExpiryMinutes,
		RequeueLimit:  100,
		RetentionDays: 7,
	}
}

// Tick runs the three steps in order. Each step's failure aborts the
// remaining steps in this invocation — this is the current, documented
// behavior rather than an independent-per-step design, because the
// scheduler fires this loop again in 15 minutes regardless (see §4.5).
func (m *Maintenance) Tick(ctx context.Context) (*MaintenanceResult, error) {
	result := &MaintenanceResult{}

	reset, err := m.store.ResetExpired(ctx, m.ExpiryMinutes)
	if err != nil {
		return result, fmt.Errorf("reset_expired: %w", err)
	}
	result.Reset = reset
	m.log.Info("reset_expired", "count", reset)

	requeued, err := m.store.RequeueDLQ(ctx, m.RequeueLimit)
	if err != nil {
		return result, fmt.Errorf("requeue_dlq: %w", err)
	}
	result.Requeued = requeued
	m.log.Info("requeue_dlq", "count", requeued)

	cleaned, err := m.store.Cleanup(ctx, m.RetentionDays)
	if err != nil {
		return result, fmt.Errorf("cleanup: %w", err)
	}
	result.CleanedUp = cleaned
	m.log.Info("cleanup", "count", cleaned)

	return result, nil
}
