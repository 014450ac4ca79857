package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the derivation
// semantics on plain snapshots; persistence is covered separately.

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestComputeExpectedShipDate(t *testing.T) {
	if got := ComputeExpectedShipDate(nil, DefaultFactoryLeadTimeDays); got != nil {
		t.Fatalf("expected nil without an order date, got %v", got)
	}

	got := ComputeExpectedShipDate(date(2026, time.March, 2), DefaultFactoryLeadTimeDays)
	if got == nil || !got.Equal(*date(2026, time.March, 9)) {
		t.Fatalf("expected 2026-03-09, got %v", got)
	}

	// Month boundary via calendar-day arithmetic.
	got = ComputeExpectedShipDate(date(2026, time.January, 28), 7)
	if got == nil || !got.Equal(*date(2026, time.February, 4)) {
		t.Fatalf("expected 2026-02-04, got %v", got)
	}

	// The lead time is read at computation time, not captured at order time.
	got = ComputeExpectedShipDate(date(2026, time.March, 2), 21)
	if got == nil || !got.Equal(*date(2026, time.March, 23)) {
		t.Fatalf("expected 2026-03-23, got %v", got)
	}
}

func TestComputeShippingStatus(t *testing.T) {
	expected := date(2026, time.March, 9)
	cases := []struct {
		name           string
		orderCompleted bool
		expectedShip   *time.Time
		actualShip     *time.Time
		today          time.Time
		want           ShippingStatus
	}{
		{"order not placed", false, expected, nil, *date(2026, time.March, 1), ShippingStatusAwaitingOrder},
		{"order not placed ignores dates", false, expected, date(2026, time.March, 9), *date(2026, time.March, 20), ShippingStatusAwaitingOrder},
		{"completed without expected date", true, nil, nil, *date(2026, time.March, 1), ShippingStatusAwaitingShipment},
		{"waiting before expected day", true, expected, nil, *date(2026, time.March, 8), ShippingStatusAwaitingShipment},
		{"waiting on expected day", true, expected, nil, *date(2026, time.March, 9), ShippingStatusAwaitingShipment},
		{"overdue day after expected", true, expected, nil, *date(2026, time.March, 10), ShippingStatusDelayedShip},
		{"shipped on the day", true, expected, date(2026, time.March, 9), *date(2026, time.March, 20), ShippingStatusOnTimeShip},
		{"shipped early", true, expected, date(2026, time.March, 7), *date(2026, time.March, 20), ShippingStatusEarlyShip},
		{"shipped late", true, expected, date(2026, time.March, 12), *date(2026, time.March, 20), ShippingStatusDelayedShip},
	}
	for _, tc := range cases {
		if got := ComputeShippingStatus(tc.orderCompleted, tc.expectedShip, tc.actualShip, tc.today); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestComputeShippingStatus_DateOnlyComparison(t *testing.T) {
	// 23:59 on the expected day is still on time.
	expected := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	actual := time.Date(2026, time.March, 9, 23, 59, 0, 0, time.UTC)
	got := ComputeShippingStatus(true, &expected, &actual, *date(2026, time.March, 20))
	if got != ShippingStatusOnTimeShip {
		t.Fatalf("expected On-Time Ship for same-day timestamps, got %s", got)
	}

	// A waiting order late on the expected day is not yet overdue.
	today := time.Date(2026, time.March, 9, 23, 0, 0, 0, time.UTC)
	got = ComputeShippingStatus(true, &expected, nil, today)
	if got != ShippingStatusAwaitingShipment {
		t.Fatalf("expected Awaiting Shipment on the expected day, got %s", got)
	}
}

func TestComputeBalanceDueDate(t *testing.T) {
	if got := ComputeBalanceDueDate(nil); got != nil {
		t.Fatalf("expected nil without a ship date, got %v", got)
	}
	got := ComputeBalanceDueDate(date(2026, time.March, 9))
	if got == nil || !got.Equal(*date(2026, time.March, 19)) {
		t.Fatalf("expected 2026-03-19, got %v", got)
	}
}

func TestComputeFee_RatesAndRounding(t *testing.T) {
	thousand := decimal.NewFromInt(1000)
	cases := []struct {
		rate int
		want string
	}{
		{0, "0"},
		{5, "50"},
		{7, "70"},
		{8, "80"},
		{10, "100"},
	}
	for _, tc := range cases {
		if got := ComputeFee(thousand, tc.rate); got.String() != tc.want {
			t.Fatalf("rate %d: expected %s, got %s", tc.rate, tc.want, got.String())
		}
	}

	// Rounds to the currency minor unit, not truncation.
	subtotal := decimal.RequireFromString("333.33")
	if got := ComputeFee(subtotal, 7); got.String() != "23.33" {
		t.Fatalf("expected 23.33, got %s", got.String())
	}
	subtotal = decimal.RequireFromString("107.85")
	if got := ComputeFee(subtotal, 7); got.String() != "7.55" {
		t.Fatalf("expected 7.55, got %s", got.String())
	}
}

func TestComputeRemainingQuantityAndWarehouseStatus(t *testing.T) {
	cases := []struct {
		ordered, entered int
		wantRemaining    int
		wantStatus       WarehouseStatus
	}{
		{100, 0, 100, WarehouseStatusReceiving},
		{100, 40, 60, WarehouseStatusReceiving},
		{100, 100, 0, WarehouseStatusReceived},
		{100, 120, 0, WarehouseStatusReceived}, // over-delivery clamps at zero
		{0, 0, 0, WarehouseStatusReceiving},    // nothing ordered is never Received
	}
	for _, tc := range cases {
		remaining := ComputeRemainingQuantity(tc.ordered, tc.entered)
		if remaining != tc.wantRemaining {
			t.Fatalf("ordered=%d entered=%d: expected remaining %d, got %d", tc.ordered, tc.entered, tc.wantRemaining, remaining)
		}
		if got := ComputeWarehouseStatus(tc.ordered, remaining); got != tc.wantStatus {
			t.Fatalf("ordered=%d entered=%d: expected %s, got %s", tc.ordered, tc.entered, tc.wantStatus, got)
		}
	}
}

func TestRecompute_FullProjectDerivation(t *testing.T) {
	snap := ProjectSnapshot{
		ProjectId:           7,
		OrderCompleted:      true,
		ActualOrderDate:     date(2026, time.March, 2),
		FactoryLeadTimeDays: DefaultFactoryLeadTimeDays,
		ActualShipDate:      date(2026, time.March, 9),
		OrderedQuantity:     500,
		EnteredQuantity:     500,
		UnitPrice:           decimal.NewFromInt(100),
		FeeRatePercent:      7,
		ShippingCost:        decimal.NewFromInt(1200),
		AdditionalCostItems: []CostItem{
			{Id: 1, Description: "customs clearance", Cost: decimal.NewFromInt(300)},
		},
	}
	Recompute(&snap, *date(2026, time.March, 20))

	if snap.ExpectedShipDate == nil || !snap.ExpectedShipDate.Equal(*date(2026, time.March, 9)) {
		t.Fatalf("expected ship date 2026-03-09, got %v", snap.ExpectedShipDate)
	}
	if snap.ShippingStatus != ShippingStatusOnTimeShip {
		t.Fatalf("expected On-Time Ship, got %s", snap.ShippingStatus)
	}
	if !snap.ShippingStatus.IsShipped() {
		t.Fatalf("On-Time Ship must count as shipped")
	}
	if snap.BalanceDueDate == nil || !snap.BalanceDueDate.Equal(*date(2026, time.March, 19)) {
		t.Fatalf("expected balance due 2026-03-19, got %v", snap.BalanceDueDate)
	}
	if snap.RemainingQuantity != 0 || snap.WarehouseStatus != WarehouseStatusReceived {
		t.Fatalf("expected fully received, got remaining=%d status=%s", snap.RemainingQuantity, snap.WarehouseStatus)
	}
	if snap.Subtotal.String() != "50000" {
		t.Fatalf("expected subtotal 50000, got %s", snap.Subtotal.String())
	}
	if snap.FeeAmount.String() != "3500" {
		t.Fatalf("expected fee 3500, got %s", snap.FeeAmount.String())
	}
	if snap.BalanceAmount.String() != "5000" {
		t.Fatalf("expected balance amount 5000, got %s", snap.BalanceAmount.String())
	}
	if snap.TotalAmount.String() != "55000" {
		t.Fatalf("expected total 55000, got %s", snap.TotalAmount.String())
	}
}

func TestRecompute_Deterministic(t *testing.T) {
	snap := ProjectSnapshot{
		ProjectId:           3,
		OrderCompleted:      true,
		ActualOrderDate:     date(2026, time.April, 1),
		FactoryLeadTimeDays: 14,
		OrderedQuantity:     250,
		EnteredQuantity:     90,
		UnitPrice:           decimal.RequireFromString("12.45"),
		FeeRatePercent:      8,
		ShippingCost:        decimal.RequireFromString("420.50"),
	}
	today := *date(2026, time.April, 5)

	Recompute(&snap, today)
	first := snap.Clone()
	Recompute(&snap, today)

	if !snap.EqualContent(first) {
		t.Fatalf("recomputation of unchanged primitives must be a no-op")
	}
}

func TestComputeExpectedShipDate_LongerLeadNeverEarlier(t *testing.T) {
	order := date(2026, time.March, 2)
	prev := ComputeExpectedShipDate(order, 1)
	for lead := 2; lead <= 60; lead++ {
		got := ComputeExpectedShipDate(order, lead)
		if got.Before(*prev) {
			t.Fatalf("lead %d: expected %s on or after %s", lead, got, prev)
		}
		prev = got
	}
}

func TestComputeBalanceAmount_ZeroFeeZeroPartsIsZero(t *testing.T) {
	subtotal := ComputeSubtotal(decimal.NewFromInt(500), 100)
	fee := ComputeFee(subtotal, 0)
	balance := ComputeBalanceAmount(fee, decimal.Zero, nil)
	if !balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", balance)
	}
	if total := ComputeTotalAmount(subtotal, balance); total.String() != subtotal.String() {
		t.Fatalf("expected total %s, got %s", subtotal, total)
	}
}
