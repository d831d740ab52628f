package service

import (
	"context"
	"math/rand/v2"
	"sync"

	"minibank-core/internal/logger"

	"github.com/google/uuid"
)

// PendingCounter reports PENDING counter deposits per assigned staff member.
type PendingCounter interface {
	CountPendingByStaff(ctx context.Context) (map[uuid.UUID]int, error)
}

// StaffLoad tracks how many PENDING counter deposits each staff member holds.
// Selection and increment happen under one lock so two concurrent requests
// cannot both observe the same minimum.
type StaffLoad struct {
	mu      sync.Mutex
	pending map[uuid.UUID]int
	// delta collects Assign and Release calls made while Seed reads the
	// store. nil when no Seed is running.
	delta map[uuid.UUID]int
	intn  func(n int) int

	seedMu sync.Mutex
}

func NewStaffLoad() *StaffLoad {
	return &StaffLoad{
		pending: make(map[uuid.UUID]int),
		intn:    rand.IntN,
	}
}

// Seed replaces the counts with what the store reports, then reapplies the
// assignments and releases made while the store was being read. An
// assignment whose row was committed before the read is counted twice until
// the next Seed.
func (l *StaffLoad) Seed(ctx context.Context, source PendingCounter) error {
	l.seedMu.Lock()
	defer l.seedMu.Unlock()

	l.mu.Lock()
	l.delta = make(map[uuid.UUID]int)
	l.mu.Unlock()

	counts, err := source.CountPendingByStaff(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	delta := l.delta
	l.delta = nil
	if err != nil {
		return err
	}
	merged := make(map[uuid.UUID]int, len(counts)+len(delta))
	for id, n := range counts {
		merged[id] = n
	}
	for id, d := range delta {
		merged[id] += d
	}
	l.resetLocked(merged)
	logger.Info("Staff load seeded", "staffCount", len(l.pending), "inFlight", len(delta))
	return nil
}

func (l *StaffLoad) Reset(counts map[uuid.UUID]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked(counts)
}

func (l *StaffLoad) resetLocked(counts map[uuid.UUID]int) {
	next := make(map[uuid.UUID]int, len(counts))
	for id, n := range counts {
		if n > 0 {
			next[id] = n
		}
	}
	l.pending = next
}

// Assign picks the candidate with the fewest pending deposits, breaking ties
// uniformly at random, and counts the new assignment against it.
func (l *StaffLoad) Assign(candidates []uuid.UUID) (uuid.UUID, bool) {
	if len(candidates) == 0 {
		return uuid.Nil, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var tied []uuid.UUID
	best := -1
	for _, id := range candidates {
		n := l.pending[id]
		switch {
		case best < 0 || n < best:
			best = n
			tied = append(tied[:0], id)
		case n == best:
			tied = append(tied, id)
		}
	}

	chosen := tied[0]
	if len(tied) > 1 {
		chosen = tied[l.intn(len(tied))]
	}
	l.pending[chosen]++
	if l.delta != nil {
		l.delta[chosen]++
	}
	return chosen, true
}

func (l *StaffLoad) Release(staffID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.delta != nil {
		l.delta[staffID]--
	}
	if n := l.pending[staffID]; n > 1 {
		l.pending[staffID] = n - 1
	} else {
		delete(l.pending, staffID)
	}
}

func (l *StaffLoad) Pending(staffID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending[staffID]
}
