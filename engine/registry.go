package engine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry holds one live reconciliation session per project so rapid
// successive edits from the same interactive user coalesce instead of racing.
// Sessions are cheap (two snapshots and a mutex); eviction happens when the
// session is Clean and Release is called.
type Registry struct {
	mu       sync.Mutex
	sessions map[int]*Reconciler

	gateway Gateway
	logger  *logrus.Logger
	clock   Clock
}

func NewRegistry(gateway Gateway, logger *logrus.Logger, clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Registry{
		sessions: make(map[int]*Reconciler),
		gateway:  gateway,
		logger:   logger,
		clock:    clock,
	}
}

// Session returns the live reconciler for the project, loading the baseline
// snapshot through load on first use.
func (g *Registry) Session(ctx context.Context, projectId int, load func(ctx context.Context, projectId int) (ProjectSnapshot, error)) (*Reconciler, error) {
	g.mu.Lock()
	if r, ok := g.sessions[projectId]; ok {
		g.mu.Unlock()
		return r, nil
	}
	g.mu.Unlock()

	snap, err := load(ctx, projectId)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	// Another request may have loaded the session while we were reading.
	if r, ok := g.sessions[projectId]; ok {
		return r, nil
	}
	r := NewReconciler(NewStore(snap, g.clock.Now()), g.gateway, g.logger, g.clock)
	g.sessions[projectId] = r
	return r, nil
}

// Peek returns the live session for a project, or nil. It never loads one.
func (g *Registry) Peek(projectId int) *Reconciler {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions[projectId]
}

// Release drops a session once it has nothing left to persist.
func (g *Registry) Release(projectId int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.sessions[projectId]; ok && r.State() == StateClean {
		delete(g.sessions, projectId)
	}
}

// Invalidate drops a session unconditionally, e.g. after an out-of-band write
// (warehouse entry aggregation) made its baseline stale.
func (g *Registry) Invalidate(projectId int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, projectId)
}
