package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the optimistic state holder for one project record. It keeps
// exactly two snapshots: the working copy shown to the user (mutated
// immediately on edit, no blocking on I/O) and the last successfully
// persisted snapshot, which is the rollback target.
type Store struct {
	mu            sync.Mutex
	working       ProjectSnapshot
	lastPersisted ProjectSnapshot
}

// NewStore seeds both snapshots from the given record. Derived fields are
// recomputed so the baseline never trusts stored derived values.
func NewStore(initial ProjectSnapshot, today time.Time) *Store {
	snap := initial.Clone()
	Recompute(&snap, today)
	if snap.Version == "" {
		snap.Version = uuid.NewString()
	}
	return &Store{
		working:       snap,
		lastPersisted: snap.Clone(),
	}
}

func (s *Store) Working() ProjectSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.Clone()
}

func (s *Store) LastPersisted() ProjectSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPersisted.Clone()
}

// ApplyEdit mutates the working snapshot and returns immediately. Persistence
// is decoupled: the caller drives it through the reconciler.
func (s *Store) ApplyEdit(e FieldEdit, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	applyEdit(&s.working, e, now)
}

// RecomputeWorking rederives all secondary fields of the working snapshot.
func (s *Store) RecomputeWorking(today time.Time) ProjectSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	Recompute(&s.working, today)
	return s.working.Clone()
}

// Rollback restores the working snapshot to the last persisted one and
// recomputes derived fields from the restored primitives.
func (s *Store) Rollback(today time.Time) ProjectSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = s.lastPersisted.Clone()
	Recompute(&s.working, today)
	return s.working.Clone()
}

// Commit records the submitted snapshot as the new last-persisted baseline.
// The working copy is left alone: it may already hold newer edits.
func (s *Store) Commit(submitted ProjectSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPersisted = submitted.Clone()
	s.working.Version = submitted.Version
}
