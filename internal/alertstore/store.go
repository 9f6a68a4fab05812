// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

// Package alertstore persists threat alerts. The pipeline treats the
// store as best-effort: a failed write is retried once and then dropped
// so live broadcast is never blocked on persistence.
package alertstore

import (
	"context"
	"errors"

	"github.com/logvigil/logvigil/internal/models"
)

// Sentinel errors returned by store implementations.
var (
	// ErrAlertNotFound is returned when no alert exists with the given ID.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrStoreClosed is returned when an operation is attempted after Close.
	ErrStoreClosed = errors.New("alert store closed")
)

// Store persists and queries threat alerts.
type Store interface {
	// SaveAlert persists an alert and assigns its AlertID.
	SaveAlert(ctx context.Context, alert *models.ThreatAlert) error

	// GetAlert retrieves a single alert by ID.
	GetAlert(ctx context.Context, id uint64) (*models.ThreatAlert, error)

	// ListRecent returns up to limit alerts, newest first.
	ListRecent(ctx context.Context, limit int) ([]*models.ThreatAlert, error)

	// Acknowledge marks an alert as acknowledged by the given principal.
	Acknowledge(ctx context.Context, id uint64, by string) (*models.ThreatAlert, error)

	// CountBySeverity returns alert counts keyed by severity level.
	CountBySeverity(ctx context.Context) (map[models.ThreatLevel]int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
