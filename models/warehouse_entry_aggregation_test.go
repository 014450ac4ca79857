package models

import (
	"testing"
	"time"

	"github.com/venpus/labsemble-v1-1-sub002/engine"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
)

// NOTE: These tests are intentionally DB-free. They validate the aggregation
// and ordering rules on plain values; CRUD paths require MySQL and are
// exercised in an environment that can run it.

func TestSumEnteredQuantity(t *testing.T) {
	entries := []WarehouseEntry{
		{ProjectId: 1, Quantity: 120},
		{ProjectId: 1, Quantity: 80},
		{ProjectId: 1, Quantity: 300},
	}
	if got := SumEnteredQuantity(entries); got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
	if got := SumEnteredQuantity(nil); got != 0 {
		t.Fatalf("expected 0 for no entries, got %d", got)
	}
}

func TestEntryAggregation_DrivesWarehouseStatus(t *testing.T) {
	// A correction to one entry changes the aggregate, and the derived
	// warehouse fields follow the aggregate, not the individual entries.
	entries := []WarehouseEntry{
		{ProjectId: 1, Quantity: 200},
		{ProjectId: 1, Quantity: 200},
	}
	snap := engine.ProjectSnapshot{
		ProjectId:       1,
		OrderedQuantity: 500,
		EnteredQuantity: SumEnteredQuantity(entries),
	}
	today := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	engine.Recompute(&snap, today)
	if snap.RemainingQuantity != 100 || snap.WarehouseStatus != engine.WarehouseStatusReceiving {
		t.Fatalf("expected 100 remaining / Receiving, got %d / %s", snap.RemainingQuantity, snap.WarehouseStatus)
	}

	entries[1].Quantity = 300
	snap.EnteredQuantity = SumEnteredQuantity(entries)
	engine.Recompute(&snap, today)
	if snap.RemainingQuantity != 0 || snap.WarehouseStatus != engine.WarehouseStatusReceived {
		t.Fatalf("expected 0 remaining / Received, got %d / %s", snap.RemainingQuantity, snap.WarehouseStatus)
	}
}

func TestOrderLedgerEntries_FixedSlotOrder(t *testing.T) {
	entries := []SupplierLedgerEntry{
		{Installment: LedgerInstallmentBalance},
		{Installment: LedgerInstallmentSecond},
		{Installment: LedgerInstallmentAdvance},
	}
	ordered := orderLedgerEntries(entries)
	want := []LedgerInstallment{
		LedgerInstallmentAdvance,
		LedgerInstallmentSecond,
		LedgerInstallmentBalance,
	}
	if len(ordered) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(ordered))
	}
	for i, name := range want {
		if ordered[i].Installment != name {
			t.Fatalf("slot %d: expected %s, got %s", i, name, ordered[i].Installment)
		}
	}
}

func TestInstallmentNames(t *testing.T) {
	for _, name := range LedgerInstallments {
		if !IsValidInstallment(name) {
			t.Fatalf("%s must be a valid installment", name)
		}
	}
	if IsValidInstallment("Interim4") {
		t.Fatalf("only three interim slots exist")
	}
}

func TestNewWarehouseEntry_Validate(t *testing.T) {
	d := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		input NewWarehouseEntry
	}{
		{"zero quantity", NewWarehouseEntry{EntryDate: &d, ShippingDate: &d}},
		{"negative quantity", NewWarehouseEntry{Quantity: -1, EntryDate: &d, ShippingDate: &d}},
		{"missing entry date", NewWarehouseEntry{Quantity: 5, ShippingDate: &d}},
		{"missing shipping date", NewWarehouseEntry{Quantity: 5, EntryDate: &d}},
		{"missing both dates", NewWarehouseEntry{Quantity: 5}},
		{"unknown status", NewWarehouseEntry{Quantity: 5, EntryDate: &d, ShippingDate: &d, Status: "Lost"}},
	}
	for _, tc := range cases {
		err := tc.input.validate()
		if !utils.IsValidationError(err) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}

	ok := NewWarehouseEntry{Quantity: 5, EntryDate: &d, ShippingDate: &d}
	if err := ok.validate(); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}
}
