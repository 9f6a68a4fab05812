// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package alertstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/logvigil/logvigil/internal/logging"
	"github.com/logvigil/logvigil/internal/models"
)

// Key prefix for BadgerDB storage. Alert IDs are zero-padded to 16 digits
// so lexicographic key order matches numeric ID order, which makes
// newest-first listing a reverse prefix scan.
const alertKeyPrefix = "alert:"

// idSequenceBandwidth controls how many IDs badger leases per fetch.
const idSequenceBandwidth = 128

// BadgerStore implements Store on BadgerDB for durable alert storage.
// An empty path opens an in-memory database, used in tests and ephemeral
// deployments.
type BadgerStore struct {
	db     *badger.DB
	seq    *badger.Sequence
	closed atomic.Bool
}

// NewBadgerStore opens (or creates) the alert database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open alert store: %w", err)
	}

	seq, err := db.GetSequence([]byte("alert_id_seq"), idSequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open alert id sequence: %w", err)
	}

	logging.Info().Str("path", path).Bool("in_memory", path == "").Msg("alert store opened")
	return &BadgerStore{db: db, seq: seq}, nil
}

func alertKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", alertKeyPrefix, id))
}

// SaveAlert persists an alert and assigns its AlertID.
func (s *BadgerStore) SaveAlert(ctx context.Context, alert *models.ThreatAlert) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if alert.AlertID == 0 {
		id, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("next alert id: %w", err)
		}
		// Sequence starts at 0; alert IDs start at 1.
		alert.AlertID = id + 1
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(alertKey(alert.AlertID), data); err != nil {
			return fmt.Errorf("set alert: %w", err)
		}
		return nil
	})
}

// GetAlert retrieves a single alert by ID.
func (s *BadgerStore) GetAlert(ctx context.Context, id uint64) (*models.ThreatAlert, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var alert models.ThreatAlert
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(alertKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrAlertNotFound
		}
		if err != nil {
			return fmt.Errorf("get alert: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &alert)
		})
	})
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

// ListRecent returns up to limit alerts, newest first.
func (s *BadgerStore) ListRecent(ctx context.Context, limit int) ([]*models.ThreatAlert, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*models.ThreatAlert{}, nil
	}

	alerts := make([]*models.ThreatAlert, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(alertKeyPrefix)
		// In reverse mode, seek past the highest possible alert key.
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(alerts) < limit; it.Next() {
			var alert models.ThreatAlert
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &alert)
			})
			if err != nil {
				logging.Warn().Err(err).Msg("skipping undecodable alert record")
				continue
			}
			alerts = append(alerts, &alert)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	return alerts, nil
}

// Acknowledge marks an alert as acknowledged by the given principal.
// Acknowledging twice is a no-op that returns the stored alert.
func (s *BadgerStore) Acknowledge(ctx context.Context, id uint64, by string) (*models.ThreatAlert, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var alert models.ThreatAlert
	err := s.db.Update(func(txn *badger.Txn) error {
		key := alertKey(id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrAlertNotFound
		}
		if err != nil {
			return fmt.Errorf("get alert: %w", err)
		}

		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &alert)
		})
		if err != nil {
			return fmt.Errorf("unmarshal alert: %w", err)
		}

		if alert.Acknowledged {
			return nil
		}

		now := time.Now().UTC()
		alert.Acknowledged = true
		alert.AcknowledgedBy = by
		alert.AcknowledgedAt = &now

		data, err := json.Marshal(&alert)
		if err != nil {
			return fmt.Errorf("marshal alert: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

// CountBySeverity returns alert counts keyed by severity level.
func (s *BadgerStore) CountBySeverity(ctx context.Context) (map[models.ThreatLevel]int64, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[models.ThreatLevel]int64)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(alertKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var alert models.ThreatAlert
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &alert)
			})
			if err != nil {
				continue
			}
			counts[alert.Severity]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}

	return counts, nil
}

// Ping reports whether the store is reachable.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// Close releases the ID sequence and closes the database.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.seq.Release(); err != nil {
		logging.Warn().Err(err).Msg("failed to release alert id sequence")
	}
	return s.db.Close()
}
