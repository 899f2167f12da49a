// Package collect runs acquisition strategies in order against a shared
// de-duplication set and result quota.
package collect

import (
	"context"
	"fmt"
	"sync"

	"jobcollect-engine/internal/domain"
)

// Sink receives persisted records one at a time.
type Sink interface {
	Save(ctx context.Context, rec domain.JobRecord) error
}

type SinkFunc func(ctx context.Context, rec domain.JobRecord) error

func (f SinkFunc) Save(ctx context.Context, rec domain.JobRecord) error { return f(ctx, rec) }

// Outcome is the result of a Persist call.
type Outcome int

const (
	Saved Outcome = iota
	Duplicate
	QuotaReached
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Saved:
		return "saved"
	case Duplicate:
		return "duplicate"
	case QuotaReached:
		return "quota_reached"
	case Invalid:
		return "invalid"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// State is the run-scoped identity set and saved counter. Persist is the only
// way to mutate it; every method is safe for concurrent use.
type State struct {
	mu    sync.Mutex
	runID string
	quota int
	saved int
	seen  map[string]struct{}
	sink  Sink
}

func NewState(runID string, quota int, sink Sink) *State {
	return &State{
		runID: runID,
		quota: quota,
		seen:  map[string]struct{}{},
		sink:  sink,
	}
}

func (s *State) RunID() string { return s.runID }

func (s *State) Quota() int { return s.quota }

func (s *State) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Remaining is the number of records still wanted.
func (s *State) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.quota - s.saved; n > 0 {
		return n
	}
	return 0
}

// Done reports whether the quota has been met.
func (s *State) Done() bool { return s.Remaining() == 0 }

// Seen reports whether any identity key of rec was already persisted.
func (s *State) Seen(rec domain.JobRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seenLocked(rec.IdentityKeys())
}

func (s *State) seenLocked(keys []string) bool {
	for _, k := range keys {
		if _, ok := s.seen[k]; ok {
			return true
		}
	}
	return false
}

// Persist finalizes rec and hands it to the sink unless the quota is met, the
// record has no identity, or one of its identity keys was already persisted.
// The checks and the sink write happen under one lock, so concurrent callers
// can never overshoot the quota. A sink error leaves the state unchanged.
func (s *State) Persist(ctx context.Context, rec domain.JobRecord) (Outcome, error) {
	rec.Finalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved >= s.quota {
		return QuotaReached, nil
	}
	if !rec.Valid() {
		return Invalid, nil
	}
	keys := rec.IdentityKeys()
	if s.seenLocked(keys) {
		return Duplicate, nil
	}
	if err := s.sink.Save(ctx, rec); err != nil {
		return Invalid, fmt.Errorf("sink save %s: %w", rec.URL, err)
	}
	for _, k := range keys {
		s.seen[k] = struct{}{}
	}
	s.saved++
	return Saved, nil
}

// PersistBatch persists recs in order, skipping nil entries, until limit
// records have been saved by this call or the quota is met. The rest of the
// batch is discarded. done reports that no further work is wanted.
func (s *State) PersistBatch(ctx context.Context, recs []*domain.JobRecord, limit int) (saved int, done bool, err error) {
	for _, rec := range recs {
		if saved >= limit {
			return saved, true, nil
		}
		if rec == nil {
			continue
		}
		out, err := s.Persist(ctx, *rec)
		if err != nil {
			return saved, true, err
		}
		switch out {
		case Saved:
			saved++
		case QuotaReached:
			return saved, true, nil
		}
	}
	return saved, saved >= limit || s.Done(), nil
}
