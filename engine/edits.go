package engine

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
)

// Field names a user-editable primitive. Derived fields have no Field value
// on purpose: they cannot be edited.
type Field string

const (
	FieldOrderCompleted      Field = "order_completed"
	FieldActualOrderDate     Field = "actual_order_date"
	FieldFactoryLeadTimeDays Field = "factory_lead_time_days"
	FieldActualShipDate      Field = "actual_ship_date"
	FieldOrderedQuantity     Field = "ordered_quantity"
	FieldEnteredQuantity     Field = "entered_quantity"
	FieldUnitPrice           Field = "unit_price"
	FieldFeeRatePercent      Field = "fee_rate_percent"
	FieldShippingCost        Field = "shipping_cost"
	FieldAdditionalCostItems Field = "additional_cost_items"
	FieldAdvancePaid         Field = "advance_paid"
	FieldBalancePaid         Field = "balance_paid"
	FieldTotalPaid           Field = "total_paid"
	FieldAdvancePaymentDate  Field = "advance_payment_date"
	FieldBalancePaymentDate  Field = "balance_payment_date"
)

// FieldEdit is one primitive write. Values are typed per field; ValidateEdit
// rejects malformed values at the edit boundary so invalid primitives never
// reach the calculator or the Dirty state.
type FieldEdit struct {
	Field Field
	Value interface{}
}

func ValidateEdit(e FieldEdit) error {
	switch e.Field {
	case FieldOrderCompleted, FieldAdvancePaid, FieldBalancePaid, FieldTotalPaid:
		if _, ok := e.Value.(bool); !ok {
			return utils.NewValidationError(string(e.Field), "expected a boolean")
		}
	case FieldActualOrderDate, FieldActualShipDate, FieldAdvancePaymentDate, FieldBalancePaymentDate:
		if e.Value == nil {
			return nil // clearing a date is a valid edit
		}
		if _, ok := e.Value.(*time.Time); !ok {
			if _, ok := e.Value.(time.Time); !ok {
				return utils.NewValidationError(string(e.Field), "expected a date")
			}
		}
	case FieldFactoryLeadTimeDays:
		n, ok := e.Value.(int)
		if !ok {
			return utils.NewValidationError(string(e.Field), "expected an integer")
		}
		if n < 0 {
			return utils.NewValidationError(string(e.Field), "lead time must not be negative")
		}
	case FieldOrderedQuantity:
		n, ok := e.Value.(int)
		if !ok {
			return utils.NewValidationError(string(e.Field), "expected an integer")
		}
		if n <= 0 {
			return utils.NewValidationError(string(e.Field), "ordered quantity must be positive")
		}
	case FieldEnteredQuantity:
		n, ok := e.Value.(int)
		if !ok {
			return utils.NewValidationError(string(e.Field), "expected an integer")
		}
		if n < 0 {
			return utils.NewValidationError(string(e.Field), "entered quantity must not be negative")
		}
	case FieldUnitPrice, FieldShippingCost:
		d, ok := e.Value.(decimal.Decimal)
		if !ok {
			return utils.NewValidationError(string(e.Field), "expected a decimal amount")
		}
		if d.IsNegative() {
			return utils.NewValidationError(string(e.Field), "amount must not be negative")
		}
	case FieldFeeRatePercent:
		n, ok := e.Value.(int)
		if !ok {
			return utils.NewValidationError(string(e.Field), "expected an integer")
		}
		if !IsValidFeeRate(n) {
			return utils.NewValidationError(string(e.Field), "fee rate must be one of 0, 5, 7, 8, 10")
		}
	case FieldAdditionalCostItems:
		items, ok := e.Value.([]CostItem)
		if !ok {
			return utils.NewValidationError(string(e.Field), "expected a cost item list")
		}
		if len(items) > MaxAdditionalCostItems {
			return utils.NewValidationError(string(e.Field), "at most 5 additional cost items")
		}
		for _, item := range items {
			if item.Cost.IsNegative() {
				return utils.NewValidationError(string(e.Field), "cost must not be negative")
			}
		}
	default:
		return utils.NewValidationError(string(e.Field), "unknown or non-editable field")
	}
	return nil
}

// applyEdit writes a validated primitive into the snapshot. Payment status
// edits also enforce the bidirectional invariant
// totalPaid <=> advancePaid && balancePaid, stamping paymentDates.total when
// the conjunction completes.
func applyEdit(s *ProjectSnapshot, e FieldEdit, now time.Time) {
	switch e.Field {
	case FieldOrderCompleted:
		s.OrderCompleted = e.Value.(bool)
	case FieldActualOrderDate:
		s.ActualOrderDate = utils.NormalizeDatePtr(editTime(e.Value))
	case FieldActualShipDate:
		s.ActualShipDate = utils.NormalizeDatePtr(editTime(e.Value))
	case FieldFactoryLeadTimeDays:
		s.FactoryLeadTimeDays = e.Value.(int)
	case FieldOrderedQuantity:
		s.OrderedQuantity = e.Value.(int)
	case FieldEnteredQuantity:
		s.EnteredQuantity = e.Value.(int)
	case FieldUnitPrice:
		s.UnitPrice = e.Value.(decimal.Decimal)
	case FieldFeeRatePercent:
		s.FeeRatePercent = e.Value.(int)
	case FieldShippingCost:
		s.ShippingCost = e.Value.(decimal.Decimal)
	case FieldAdditionalCostItems:
		items := e.Value.([]CostItem)
		s.AdditionalCostItems = make([]CostItem, len(items))
		copy(s.AdditionalCostItems, items)
	case FieldAdvancePaid:
		s.PaymentStatus.AdvancePaid = e.Value.(bool)
		if s.PaymentStatus.AdvancePaid {
			if s.PaymentDates.Advance == nil {
				t := now
				s.PaymentDates.Advance = &t
			}
		} else {
			s.PaymentDates.Advance = nil
		}
		syncTotalPaid(s, now)
	case FieldBalancePaid:
		s.PaymentStatus.BalancePaid = e.Value.(bool)
		if s.PaymentStatus.BalancePaid {
			if s.PaymentDates.Balance == nil {
				t := now
				s.PaymentDates.Balance = &t
			}
		} else {
			s.PaymentDates.Balance = nil
		}
		syncTotalPaid(s, now)
	case FieldTotalPaid:
		if e.Value.(bool) {
			s.PaymentStatus.AdvancePaid = true
			s.PaymentStatus.BalancePaid = true
			t := now
			if s.PaymentDates.Advance == nil {
				s.PaymentDates.Advance = &t
			}
			if s.PaymentDates.Balance == nil {
				s.PaymentDates.Balance = &t
			}
		} else {
			// Un-setting total keeps the advance payment (it happened first)
			// and reopens the balance.
			s.PaymentStatus.BalancePaid = false
			s.PaymentDates.Balance = nil
		}
		syncTotalPaid(s, now)
	case FieldAdvancePaymentDate:
		s.PaymentDates.Advance = editTime(e.Value)
	case FieldBalancePaymentDate:
		s.PaymentDates.Balance = editTime(e.Value)
	}
}

// syncTotalPaid keeps totalPaid equal to advancePaid && balancePaid in both
// directions, stamping (or clearing) the total payment date.
func syncTotalPaid(s *ProjectSnapshot, now time.Time) {
	both := s.PaymentStatus.AdvancePaid && s.PaymentStatus.BalancePaid
	if both && !s.PaymentStatus.TotalPaid {
		s.PaymentStatus.TotalPaid = true
		t := now
		s.PaymentDates.Total = &t
	}
	if !both && s.PaymentStatus.TotalPaid {
		s.PaymentStatus.TotalPaid = false
		s.PaymentDates.Total = nil
	}
}

func editTime(v interface{}) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case *time.Time:
		return t
	case time.Time:
		return &t
	}
	return nil
}
