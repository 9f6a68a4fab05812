// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package hub

import "sync"

// Sequencer stamps per-run monotonic sequence numbers on outgoing events.
//
// DETERMINISM: Next is only ever called from the hub's single broadcast
// loop, so numbers are gapless within a run. The mutex exists for Reset,
// which the control plane calls from an API goroutine on restart.
type Sequencer struct {
	mu  sync.Mutex
	seq uint64
	run uint64
}

// NewSequencer returns a sequencer positioned before the first event of run 1.
func NewSequencer() *Sequencer {
	return &Sequencer{run: 1}
}

// Next returns the next sequence number and the current run.
// The first event of every run is numbered 1.
func (s *Sequencer) Next() (seq, run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, s.run
}

// Reset starts a new run: the run counter increments and the sequence
// restarts from zero. Subscribers distinguish a restart from message loss
// by the run change.
func (s *Sequencer) Reset() (run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
	s.run++
	return s.run
}

// Current returns the last issued sequence number and the current run
// without advancing.
func (s *Sequencer) Current() (seq, run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, s.run
}
