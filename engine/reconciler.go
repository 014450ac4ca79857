package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
)

// Gateway pushes one full reconciled snapshot to the external store. It must
// never merge partial fields and must never retry on its own; retry is the
// caller's (the user's) decision.
type Gateway interface {
	Submit(ctx context.Context, snap ProjectSnapshot) error
}

// State of the per-record reconciliation machine.
type State string

const (
	StateClean       State = "Clean"
	StateDirty       State = "Dirty"
	StateReconciling State = "Reconciling"
	StateRolledBack  State = "RolledBack"
)

// Reconciler owns the Clean -> Dirty -> Reconciling -> Clean|RolledBack cycle
// for a single project record. Edits are synchronous and local; submissions
// run at the gateway boundary, the only place the cycle can suspend.
//
// Coalescing is cooperative: an edit arriving while a submission is in flight
// re-enters Dirty, and once the in-flight submission resolves the cycle is
// restarted with the latest primitives. Intermediate states may never be
// persisted, but the final persisted state always reflects the latest edits.
type Reconciler struct {
	mu      sync.Mutex
	store   *Store
	gateway Gateway
	logger  *logrus.Logger
	clock   Clock

	state    State
	inFlight bool
}

func NewReconciler(store *Store, gateway Gateway, logger *logrus.Logger, clock Clock) *Reconciler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Reconciler{
		store:   store,
		gateway: gateway,
		logger:  logger,
		clock:   clock,
		state:   StateClean,
	}
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) Store() *Store { return r.store }

// Edit validates and applies one primitive write to the working snapshot.
// Invalid values are rejected here and never reach the Dirty state. The call
// returns as soon as local state is updated.
func (r *Reconciler) Edit(e FieldEdit) error {
	if err := ValidateEdit(e); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.ApplyEdit(e, r.clock.Now())
	// Any primitive write dirties the record, including while a submission is
	// in flight (cooperative re-entry).
	r.state = StateDirty
	return nil
}

// Reconcile runs compute-and-submit cycles until the record is Clean or a
// submission fails. A cycle with no content change transitions straight back
// to Clean without touching the gateway.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	for {
		again, err := r.reconcileOnce(ctx)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

func (r *Reconciler) reconcileOnce(ctx context.Context) (again bool, err error) {
	r.mu.Lock()
	if r.state != StateDirty || r.inFlight {
		r.mu.Unlock()
		return false, nil
	}

	today := r.clock.Now()
	working := r.store.RecomputeWorking(today)
	last := r.store.LastPersisted()

	if working.EqualContent(last) {
		// Redundant write avoided: nothing differs from the persisted row.
		r.state = StateClean
		r.mu.Unlock()
		return false, nil
	}

	submitted := working.Clone()
	submitted.Version = uuid.NewString()
	baseVersion := last.Version
	submitted.BaseVersion = baseVersion

	r.state = StateReconciling
	r.inFlight = true
	r.mu.Unlock()

	submitErr := r.gateway.Submit(ctx, submitted)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight = false

	if submitErr != nil {
		// All persistence failures restore the pre-edit primitives; the
		// restored snapshot becomes the new Clean baseline. Edits that raced
		// the failed submission are discarded with it: the rollback target is
		// the last state known to be good.
		r.state = StateRolledBack
		r.store.Rollback(r.clock.Now())
		r.state = StateClean
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{
				"project_id": submitted.ProjectId,
				"version":    submitted.Version,
			}).Warn("reconcile submit failed; rolled back: " + submitErr.Error())
		}
		return false, submitErr
	}

	// Stale success: if the baseline moved while this submission was in
	// flight (e.g. a rollback replaced it), the ack no longer applies.
	// Discard silently.
	if current := r.store.LastPersisted(); current.Version != baseVersion {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{
				"project_id": submitted.ProjectId,
				"version":    submitted.Version,
			}).Info("discarding stale reconcile ack")
		}
		if r.state == StateDirty {
			return true, nil
		}
		r.state = StateClean
		return false, nil
	}

	r.store.Commit(submitted)

	if r.state == StateDirty {
		// An edit landed while the submission was in flight; run another
		// cycle with the latest primitives.
		return true, nil
	}
	r.state = StateClean
	return false, nil
}

// SubmittedButStale builds the error used by gateways that detect version
// conflicts server-side. Kept here so the taxonomy stays in one place.
func SubmittedButStale(submitted, current string) error {
	return &utils.StaleWriteError{SubmittedVersion: submitted, CurrentVersion: current}
}
