// LogVigil - Real-Time Security Log Threat Detection
// Copyright 2026 LogVigil Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/logvigil/logvigil

package hub

import (
	"sync"

	"github.com/logvigil/logvigil/internal/models"
)

// replayRing is a fixed-capacity buffer of the most recent stamped events,
// used for best-effort replay when a subscriber reconnects within the same
// run. Once capacity is reached the oldest event is overwritten.
type replayRing struct {
	mu    sync.Mutex
	buf   []*models.StreamEvent
	head  int // index of the oldest event
	count int
}

func newReplayRing(capacity int) *replayRing {
	if capacity < 1 {
		capacity = 1
	}
	return &replayRing{buf: make([]*models.StreamEvent, capacity)}
}

func (r *replayRing) push(ev *models.StreamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = ev
		r.count++
		return
	}
	r.buf[r.head] = ev
	r.head = (r.head + 1) % len(r.buf)
}

// eventsAfter returns events from the given run with sequence numbers
// strictly greater than seq, oldest first.
func (r *replayRing) eventsAfter(seq, run uint64) []*models.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.StreamEvent
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.head+i)%len(r.buf)]
		if ev.Run == run && ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

func (r *replayRing) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.buf {
		r.buf[i] = nil
	}
	r.head = 0
	r.count = 0
}

func (r *replayRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
