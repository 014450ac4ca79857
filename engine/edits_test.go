package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
)

func TestValidateEdit_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		edit FieldEdit
	}{
		{"unknown field", FieldEdit{Field: "shipping_status", Value: "Shipped"}},
		{"fee rate outside the set", FieldEdit{Field: FieldFeeRatePercent, Value: 3}},
		{"negative unit price", FieldEdit{Field: FieldUnitPrice, Value: decimal.NewFromInt(-1)}},
		{"negative lead time", FieldEdit{Field: FieldFactoryLeadTimeDays, Value: -1}},
		{"zero ordered quantity", FieldEdit{Field: FieldOrderedQuantity, Value: 0}},
		{"negative entered quantity", FieldEdit{Field: FieldEnteredQuantity, Value: -5}},
		{"wrong type for boolean", FieldEdit{Field: FieldOrderCompleted, Value: "yes"}},
		{"too many cost items", FieldEdit{Field: FieldAdditionalCostItems, Value: make([]CostItem, MaxAdditionalCostItems+1)}},
	}
	for _, tc := range cases {
		err := ValidateEdit(tc.edit)
		if err == nil {
			t.Fatalf("%s: expected a validation error", tc.name)
		}
		if !utils.IsValidationError(err) {
			t.Fatalf("%s: expected ValidationError, got %T", tc.name, err)
		}
	}
}

func TestValidateEdit_AllowsClearingDates(t *testing.T) {
	if err := ValidateEdit(FieldEdit{Field: FieldActualShipDate, Value: nil}); err != nil {
		t.Fatalf("clearing a date must be valid, got %v", err)
	}
}

func TestPaymentStatus_TotalFollowsParts(t *testing.T) {
	now := *date(2026, time.May, 1)
	var snap ProjectSnapshot

	applyEdit(&snap, FieldEdit{Field: FieldAdvancePaid, Value: true}, now)
	if snap.PaymentStatus.TotalPaid {
		t.Fatalf("advance alone must not mark total paid")
	}
	if snap.PaymentDates.Advance == nil {
		t.Fatalf("marking advance paid must stamp its date")
	}

	later := *date(2026, time.May, 10)
	applyEdit(&snap, FieldEdit{Field: FieldBalancePaid, Value: true}, later)
	if !snap.PaymentStatus.TotalPaid {
		t.Fatalf("advance and balance together must mark total paid")
	}
	if snap.PaymentDates.Total == nil || !snap.PaymentDates.Total.Equal(later) {
		t.Fatalf("total date must be stamped when the conjunction completes, got %v", snap.PaymentDates.Total)
	}

	// Reopening either part clears the total.
	applyEdit(&snap, FieldEdit{Field: FieldBalancePaid, Value: false}, later)
	if snap.PaymentStatus.TotalPaid || snap.PaymentDates.Total != nil {
		t.Fatalf("reopening the balance must clear total paid")
	}
	if snap.PaymentDates.Balance != nil {
		t.Fatalf("reopening the balance must clear its date")
	}
}

func TestPaymentStatus_TotalDrivesParts(t *testing.T) {
	now := *date(2026, time.June, 1)
	var snap ProjectSnapshot

	applyEdit(&snap, FieldEdit{Field: FieldTotalPaid, Value: true}, now)
	if !snap.PaymentStatus.AdvancePaid || !snap.PaymentStatus.BalancePaid || !snap.PaymentStatus.TotalPaid {
		t.Fatalf("marking total paid must mark both parts, got %+v", snap.PaymentStatus)
	}
	if snap.PaymentDates.Advance == nil || snap.PaymentDates.Balance == nil || snap.PaymentDates.Total == nil {
		t.Fatalf("marking total paid must stamp all missing dates")
	}

	// Un-setting total keeps the advance (it happened first) and reopens the balance.
	applyEdit(&snap, FieldEdit{Field: FieldTotalPaid, Value: false}, now)
	if !snap.PaymentStatus.AdvancePaid {
		t.Fatalf("un-setting total must keep the advance payment")
	}
	if snap.PaymentStatus.BalancePaid || snap.PaymentStatus.TotalPaid {
		t.Fatalf("un-setting total must reopen the balance, got %+v", snap.PaymentStatus)
	}
	if snap.PaymentDates.Balance != nil || snap.PaymentDates.Total != nil {
		t.Fatalf("un-setting total must clear balance and total dates")
	}
	if snap.PaymentDates.Advance == nil {
		t.Fatalf("un-setting total must keep the advance date")
	}
}

func TestPaymentStatus_ExistingDatesAreNotRestamped(t *testing.T) {
	first := *date(2026, time.July, 1)
	second := *date(2026, time.July, 15)
	var snap ProjectSnapshot

	applyEdit(&snap, FieldEdit{Field: FieldAdvancePaid, Value: true}, first)
	applyEdit(&snap, FieldEdit{Field: FieldTotalPaid, Value: true}, second)

	if !snap.PaymentDates.Advance.Equal(first) {
		t.Fatalf("advance date must keep its original stamp, got %v", snap.PaymentDates.Advance)
	}
	if !snap.PaymentDates.Balance.Equal(second) {
		t.Fatalf("balance date must be stamped at total time, got %v", snap.PaymentDates.Balance)
	}
}

func TestApplyEdit_NormalizesDates(t *testing.T) {
	var snap ProjectSnapshot
	stamped := time.Date(2026, time.March, 9, 14, 30, 12, 0, time.UTC)
	applyEdit(&snap, FieldEdit{Field: FieldActualShipDate, Value: stamped}, stamped)
	if snap.ActualShipDate == nil || !snap.ActualShipDate.Equal(*date(2026, time.March, 9)) {
		t.Fatalf("ship date must be stored at midnight UTC, got %v", snap.ActualShipDate)
	}
}
