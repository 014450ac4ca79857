package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
)

// fakeGateway records submissions and can fail, block, or run a hook per
// call, standing in for the persistence layer.
type fakeGateway struct {
	mu      sync.Mutex
	submits []ProjectSnapshot
	errs    []error
	onEnter func(call int, snap ProjectSnapshot)
}

func (g *fakeGateway) Submit(_ context.Context, snap ProjectSnapshot) error {
	g.mu.Lock()
	call := len(g.submits)
	g.submits = append(g.submits, snap.Clone())
	var err error
	if call < len(g.errs) {
		err = g.errs[call]
	}
	hook := g.onEnter
	g.mu.Unlock()
	if hook != nil {
		hook(call, snap)
	}
	return err
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}

func (g *fakeGateway) last() ProjectSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submits[len(g.submits)-1]
}

func newTestReconciler(gw Gateway) (*Reconciler, *VirtualClock) {
	clock := NewVirtualClock(*date(2026, time.March, 5))
	store := NewStore(seedSnapshot(), clock.Now())
	return NewReconciler(store, gw, nil, clock), clock
}

func TestReconcile_SubmitsFullSnapshot(t *testing.T) {
	gw := &fakeGateway{}
	r, _ := newTestReconciler(gw)

	if err := r.Edit(FieldEdit{Field: FieldUnitPrice, Value: decimal.NewFromInt(250)}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if r.State() != StateDirty {
		t.Fatalf("expected Dirty after edit, got %s", r.State())
	}

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if gw.calls() != 1 {
		t.Fatalf("expected exactly 1 submission, got %d", gw.calls())
	}
	sent := gw.last()
	if sent.UnitPrice.String() != "250" || sent.Subtotal.String() != "125000" {
		t.Fatalf("submission must carry recomputed derived fields, got price=%s subtotal=%s", sent.UnitPrice.String(), sent.Subtotal.String())
	}
	if r.State() != StateClean {
		t.Fatalf("expected Clean after success, got %s", r.State())
	}
	if got := r.Store().LastPersisted(); !got.EqualContent(sent) || got.Version != sent.Version {
		t.Fatalf("last persisted must match the acknowledged submission")
	}
}

func TestReconcile_SkipsWhenNothingChanged(t *testing.T) {
	gw := &fakeGateway{}
	r, _ := newTestReconciler(gw)

	// Re-writing the current value dirties the record but changes no content.
	if err := r.Edit(FieldEdit{Field: FieldFactoryLeadTimeDays, Value: DefaultFactoryLeadTimeDays}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if gw.calls() != 0 {
		t.Fatalf("expected zero submissions for unchanged content, got %d", gw.calls())
	}
	if r.State() != StateClean {
		t.Fatalf("expected Clean, got %s", r.State())
	}
}

func TestReconcile_CleanRecordDoesNothing(t *testing.T) {
	gw := &fakeGateway{}
	r, _ := newTestReconciler(gw)
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if gw.calls() != 0 {
		t.Fatalf("expected zero submissions on a clean record, got %d", gw.calls())
	}
}

func TestEdit_InvalidValueNeverDirties(t *testing.T) {
	gw := &fakeGateway{}
	r, _ := newTestReconciler(gw)

	err := r.Edit(FieldEdit{Field: FieldFeeRatePercent, Value: 3})
	if !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if r.State() != StateClean {
		t.Fatalf("rejected edit must not dirty the record, got %s", r.State())
	}
	if got := r.Store().Working().FeeRatePercent; got != 7 {
		t.Fatalf("rejected edit must not touch the working snapshot, got %d", got)
	}
}

func TestReconcile_RollbackOnSubmitFailure(t *testing.T) {
	gw := &fakeGateway{errs: []error{&utils.TransportError{Cause: errors.New("connection reset")}}}
	r, _ := newTestReconciler(gw)

	if err := r.Edit(FieldEdit{Field: FieldUnitPrice, Value: decimal.NewFromInt(250)}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	err := r.Reconcile(context.Background())
	if !utils.IsTransportError(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	w := r.Store().Working()
	if w.UnitPrice.String() != "100" {
		t.Fatalf("expected rollback to 100, got %s", w.UnitPrice.String())
	}
	if w.Subtotal.String() != "50000" || w.TotalAmount.String() != "54700" {
		t.Fatalf("rollback must recompute derived fields, got subtotal=%s total=%s", w.Subtotal.String(), w.TotalAmount.String())
	}
	if r.State() != StateClean {
		t.Fatalf("expected Clean after rollback, got %s", r.State())
	}
	// Manual retry, not automatic: nothing else was submitted.
	if gw.calls() != 1 {
		t.Fatalf("expected no automatic retry, got %d submissions", gw.calls())
	}
}

func TestReconcile_CoalescesEditDuringFlight(t *testing.T) {
	gw := &fakeGateway{}
	r, _ := newTestReconciler(gw)
	gw.onEnter = func(call int, _ ProjectSnapshot) {
		if call == 0 {
			// A second edit lands while the first submission is in flight.
			if err := r.Edit(FieldEdit{Field: FieldShippingCost, Value: decimal.NewFromInt(1500)}); err != nil {
				t.Errorf("in-flight edit failed: %v", err)
			}
		}
	}

	if err := r.Edit(FieldEdit{Field: FieldUnitPrice, Value: decimal.NewFromInt(250)}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	// The racing edit triggers one more cycle; no intermediate states beyond that.
	if gw.calls() != 2 {
		t.Fatalf("expected 2 submissions, got %d", gw.calls())
	}
	final := gw.last()
	if final.UnitPrice.String() != "250" || final.ShippingCost.String() != "1500" {
		t.Fatalf("final submission must carry both edits, got price=%s shipping=%s", final.UnitPrice.String(), final.ShippingCost.String())
	}
	if r.State() != StateClean {
		t.Fatalf("expected Clean after coalesced cycles, got %s", r.State())
	}
	if got := r.Store().LastPersisted().ShippingCost.String(); got != "1500" {
		t.Fatalf("baseline must reflect the latest edit, got %s", got)
	}
}

func TestReconcile_DiscardsStaleAck(t *testing.T) {
	gw := &fakeGateway{}
	r, _ := newTestReconciler(gw)
	moved := r.Store().LastPersisted()
	moved.Version = "moved-while-in-flight"
	gw.onEnter = func(call int, _ ProjectSnapshot) {
		if call == 0 {
			// The baseline moves underneath the in-flight submission.
			r.Store().Commit(moved)
		}
	}

	if err := r.Edit(FieldEdit{Field: FieldUnitPrice, Value: decimal.NewFromInt(250)}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	// The ack was acknowledged but no longer applies: the moved baseline wins.
	if got := r.Store().LastPersisted().Version; got != "moved-while-in-flight" {
		t.Fatalf("stale ack must not overwrite the moved baseline, got %s", got)
	}
	if r.State() != StateClean {
		t.Fatalf("expected Clean after stale discard, got %s", r.State())
	}
}

func TestReconcile_ConcurrentEditsSettle(t *testing.T) {
	gw := &fakeGateway{}
	r, _ := newTestReconciler(gw)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := r.Edit(FieldEdit{Field: FieldEnteredQuantity, Value: n}); err != nil {
				t.Errorf("edit failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if r.State() != StateClean {
		t.Fatalf("expected Clean, got %s", r.State())
	}
	last := r.Store().LastPersisted()
	if last.EnteredQuantity < 1 || last.EnteredQuantity > 20 {
		t.Fatalf("persisted quantity must be one of the edits, got %d", last.EnteredQuantity)
	}
	if last.RemainingQuantity != 500-last.EnteredQuantity {
		t.Fatalf("derived remaining must match the persisted primitive, got %d", last.RemainingQuantity)
	}
}
