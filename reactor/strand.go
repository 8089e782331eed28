// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package reactor

import (
	"sync"

	"github.com/eapache/queue"
)

// Poster runs tasks asynchronously.
type Poster interface {
	Post(func())
}

// Strand serializes tasks executed by a Poster.
//
// Tasks dispatched to a strand run one at a time, in the order dispatched,
// though not necessarily on the same goroutine. State touched only from
// within a strand needs no further locking.
//
// Tasks are drained in batches. A task dispatched from within the strand
// runs in the following batch, so a task that continually redispatches
// itself does not starve the Poster.
type Strand struct {
	p Poster

	mu      sync.Mutex
	q       *queue.Queue
	running bool
}

// NewStrand creates a Strand executing on p.
func NewStrand(p Poster) *Strand {
	return &Strand{p: p, q: queue.New()}
}

// Dispatch queues fn to run on the strand.
func (s *Strand) Dispatch(fn func()) {
	s.mu.Lock()
	s.q.Add(fn)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	s.p.Post(s.drain)
}

func (s *Strand) drain() {
	s.mu.Lock()
	n := s.q.Length()
	s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.mu.Lock()
		fn := s.q.Remove().(func())
		s.mu.Unlock()
		fn()
	}
	s.mu.Lock()
	if s.q.Length() == 0 {
		s.running = false
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.p.Post(s.drain)
}
