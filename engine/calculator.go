package engine

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
)

// Pure derived-field calculators. Nothing here touches I/O, and every function
// is deterministic: reapplying it to unchanged inputs yields identical output,
// which the reconciliation trigger relies on for its diff check.

// ComputeExpectedShipDate returns nil iff actualOrderDate is nil, otherwise
// the order date plus the factory lead time in calendar days.
func ComputeExpectedShipDate(actualOrderDate *time.Time, leadTimeDays int) *time.Time {
	if actualOrderDate == nil {
		return nil
	}
	d := utils.NormalizeDate(*actualOrderDate).AddDate(0, 0, leadTimeDays)
	return &d
}

// ComputeShippingStatus classifies a delivery. Comparisons are date-only;
// exact-day equality always wins over the early/late classification.
func ComputeShippingStatus(orderCompleted bool, expectedShipDate, actualShipDate *time.Time, today time.Time) ShippingStatus {
	if !orderCompleted {
		return ShippingStatusAwaitingOrder
	}
	if expectedShipDate == nil {
		return ShippingStatusAwaitingShipment
	}
	expected := utils.NormalizeDate(*expectedShipDate)

	if actualShipDate != nil {
		actual := utils.NormalizeDate(*actualShipDate)
		switch {
		case actual.Equal(expected):
			return ShippingStatusOnTimeShip
		case actual.Before(expected):
			return ShippingStatusEarlyShip
		default:
			return ShippingStatusDelayedShip
		}
	}

	// Not yet shipped: overdue only once today is strictly past the expected day.
	if utils.NormalizeDate(today).After(expected) {
		return ShippingStatusDelayedShip
	}
	return ShippingStatusAwaitingShipment
}

// ComputeBalanceDueDate is the actual ship date plus ten calendar days.
func ComputeBalanceDueDate(actualShipDate *time.Time) *time.Time {
	if actualShipDate == nil {
		return nil
	}
	d := utils.NormalizeDate(*actualShipDate).AddDate(0, 0, BalanceDueOffsetDays)
	return &d
}

// ComputeSubtotal is unitPrice x quantity.
func ComputeSubtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// ComputeFee is subtotal x rate / 100, rounded to the currency minor unit.
func ComputeFee(subtotal decimal.Decimal, feeRatePercent int) decimal.Decimal {
	return subtotal.
		Mul(decimal.NewFromInt(int64(feeRatePercent))).
		DivRound(decimal.NewFromInt(100), 2)
}

// ComputeBalanceAmount is fee + shipping + the sum of ad-hoc cost items.
func ComputeBalanceAmount(fee, shippingCost decimal.Decimal, items []CostItem) decimal.Decimal {
	total := fee.Add(shippingCost)
	for _, item := range items {
		total = total.Add(item.Cost)
	}
	return total
}

// ComputeTotalAmount is subtotal + balance amount.
func ComputeTotalAmount(subtotal, balanceAmount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(balanceAmount)
}

// ComputeRemainingQuantity is ordered minus entered, never below zero.
func ComputeRemainingQuantity(orderedQuantity, enteredQuantity int) int {
	remaining := orderedQuantity - enteredQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ComputeWarehouseStatus flips to Received once a real order is fully entered.
func ComputeWarehouseStatus(orderedQuantity, remainingQuantity int) WarehouseStatus {
	if orderedQuantity > 0 && remainingQuantity == 0 {
		return WarehouseStatusReceived
	}
	return WarehouseStatusReceiving
}

// Recompute rederives every secondary field of the snapshot from its
// primitives. It is the single recomputation entry point: callers must never
// set a derived field directly.
func Recompute(s *ProjectSnapshot, today time.Time) {
	s.ExpectedShipDate = ComputeExpectedShipDate(s.ActualOrderDate, s.FactoryLeadTimeDays)
	s.ShippingStatus = ComputeShippingStatus(s.OrderCompleted, s.ExpectedShipDate, s.ActualShipDate, today)
	s.BalanceDueDate = ComputeBalanceDueDate(s.ActualShipDate)
	s.RemainingQuantity = ComputeRemainingQuantity(s.OrderedQuantity, s.EnteredQuantity)
	s.WarehouseStatus = ComputeWarehouseStatus(s.OrderedQuantity, s.RemainingQuantity)
	s.Subtotal = ComputeSubtotal(s.UnitPrice, s.OrderedQuantity)
	s.FeeAmount = ComputeFee(s.Subtotal, s.FeeRatePercent)
	s.BalanceAmount = ComputeBalanceAmount(s.FeeAmount, s.ShippingCost, s.AdditionalCostItems)
	s.TotalAmount = ComputeTotalAmount(s.Subtotal, s.BalanceAmount)
}
