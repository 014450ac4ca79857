package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShippingStatus is derived from (orderCompleted, expectedShipDate,
// actualShipDate, today). It is never stored as a source of truth.
type ShippingStatus string

const (
	ShippingStatusAwaitingOrder    ShippingStatus = "Awaiting Order"
	ShippingStatusAwaitingShipment ShippingStatus = "Awaiting Shipment"
	ShippingStatusOnTimeShip       ShippingStatus = "On-Time Ship"
	ShippingStatusEarlyShip        ShippingStatus = "Early Ship"
	ShippingStatusDelayedShip      ShippingStatus = "Delayed Ship"
	ShippingStatusShipped          ShippingStatus = "Shipped"
)

// IsShipped reports whether the status refines the coarse "Shipped" state.
func (s ShippingStatus) IsShipped() bool {
	switch s {
	case ShippingStatusOnTimeShip, ShippingStatusEarlyShip, ShippingStatusShipped:
		return true
	}
	return false
}

type WarehouseStatus string

const (
	WarehouseStatusReceiving WarehouseStatus = "Receiving"
	WarehouseStatusReceived  WarehouseStatus = "Received"
)

// FeeRates is the closed set of allowed fee percentages.
var FeeRates = []int{0, 5, 7, 8, 10}

func IsValidFeeRate(rate int) bool {
	for _, r := range FeeRates {
		if r == rate {
			return true
		}
	}
	return false
}

// BalanceDueOffsetDays is added to the actual ship date to get the balance due date.
const BalanceDueOffsetDays = 10

// DefaultFactoryLeadTimeDays is assumed until the factory quotes a lead time.
const DefaultFactoryLeadTimeDays = 7

// MaxAdditionalCostItems caps the ad-hoc cost list on a payment record.
const MaxAdditionalCostItems = 5

// MaxWarehouseEntries caps warehouse entries per project.
const MaxWarehouseEntries = 10

type CostItem struct {
	Id          int             `json:"id"`
	Description string          `json:"description"`
	Cost        decimal.Decimal `json:"cost"`
}

type PaymentStatus struct {
	AdvancePaid bool `json:"advance_paid"`
	BalancePaid bool `json:"balance_paid"`
	TotalPaid   bool `json:"total_paid"`
}

type PaymentDates struct {
	Advance *time.Time `json:"advance"`
	Balance *time.Time `json:"balance"`
	Total   *time.Time `json:"total"`
}

// ProjectSnapshot is the full reconciled view of one project: every primitive
// the user can edit plus every derived field computed from them. Storage only
// ever holds the last successfully reconciled snapshot; everything derived is
// re-derivable from the primitives at any time.
type ProjectSnapshot struct {
	ProjectId int `json:"project_id"`

	// Version identifies the last committed snapshot. A new version is minted
	// on every successful commit; in-flight submissions compare against it to
	// detect staleness.
	Version string `json:"version"`

	// BaseVersion is set on submitted snapshots only: the version the
	// submission was computed against. Gateways use it for the conditional
	// write; it is never persisted and never part of content equality.
	BaseVersion string `json:"-"`

	// Delivery primitives.
	OrderCompleted      bool       `json:"order_completed"`
	ActualOrderDate     *time.Time `json:"actual_order_date"`
	FactoryLeadTimeDays int        `json:"factory_lead_time_days"`
	ActualShipDate      *time.Time `json:"actual_ship_date"`
	OrderedQuantity     int        `json:"ordered_quantity"`
	EnteredQuantity     int        `json:"entered_quantity"`

	// Payment primitives.
	UnitPrice           decimal.Decimal `json:"unit_price"`
	FeeRatePercent      int             `json:"fee_rate_percent"`
	ShippingCost        decimal.Decimal `json:"shipping_cost"`
	AdditionalCostItems []CostItem      `json:"additional_cost_items"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
	PaymentDates        PaymentDates    `json:"payment_dates"`

	// Derived fields (cache of the last computation, never authoritative).
	ExpectedShipDate  *time.Time      `json:"expected_ship_date"`
	ShippingStatus    ShippingStatus  `json:"shipping_status"`
	BalanceDueDate    *time.Time      `json:"balance_due_date"`
	RemainingQuantity int             `json:"remaining_quantity"`
	WarehouseStatus   WarehouseStatus `json:"warehouse_status"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	FeeAmount         decimal.Decimal `json:"fee_amount"`
	BalanceAmount     decimal.Decimal `json:"balance_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
}

func (s ProjectSnapshot) Clone() ProjectSnapshot {
	out := s
	out.ActualOrderDate = copyTime(s.ActualOrderDate)
	out.ActualShipDate = copyTime(s.ActualShipDate)
	out.ExpectedShipDate = copyTime(s.ExpectedShipDate)
	out.BalanceDueDate = copyTime(s.BalanceDueDate)
	out.PaymentDates.Advance = copyTime(s.PaymentDates.Advance)
	out.PaymentDates.Balance = copyTime(s.PaymentDates.Balance)
	out.PaymentDates.Total = copyTime(s.PaymentDates.Total)
	if s.AdditionalCostItems != nil {
		out.AdditionalCostItems = make([]CostItem, len(s.AdditionalCostItems))
		copy(out.AdditionalCostItems, s.AdditionalCostItems)
	}
	return out
}

// EqualContent compares every primitive and derived field, ignoring Version.
// The reconciliation trigger uses it to skip redundant submissions.
func (s ProjectSnapshot) EqualContent(o ProjectSnapshot) bool {
	if s.ProjectId != o.ProjectId ||
		s.OrderCompleted != o.OrderCompleted ||
		s.FactoryLeadTimeDays != o.FactoryLeadTimeDays ||
		s.OrderedQuantity != o.OrderedQuantity ||
		s.EnteredQuantity != o.EnteredQuantity ||
		s.FeeRatePercent != o.FeeRatePercent ||
		s.PaymentStatus != o.PaymentStatus ||
		s.ShippingStatus != o.ShippingStatus ||
		s.WarehouseStatus != o.WarehouseStatus ||
		s.RemainingQuantity != o.RemainingQuantity {
		return false
	}
	if !timeEqual(s.ActualOrderDate, o.ActualOrderDate) ||
		!timeEqual(s.ActualShipDate, o.ActualShipDate) ||
		!timeEqual(s.ExpectedShipDate, o.ExpectedShipDate) ||
		!timeEqual(s.BalanceDueDate, o.BalanceDueDate) ||
		!timeEqual(s.PaymentDates.Advance, o.PaymentDates.Advance) ||
		!timeEqual(s.PaymentDates.Balance, o.PaymentDates.Balance) ||
		!timeEqual(s.PaymentDates.Total, o.PaymentDates.Total) {
		return false
	}
	if !s.UnitPrice.Equal(o.UnitPrice) ||
		!s.ShippingCost.Equal(o.ShippingCost) ||
		!s.Subtotal.Equal(o.Subtotal) ||
		!s.FeeAmount.Equal(o.FeeAmount) ||
		!s.BalanceAmount.Equal(o.BalanceAmount) ||
		!s.TotalAmount.Equal(o.TotalAmount) {
		return false
	}
	if len(s.AdditionalCostItems) != len(o.AdditionalCostItems) {
		return false
	}
	for i := range s.AdditionalCostItems {
		a, b := s.AdditionalCostItems[i], o.AdditionalCostItems[i]
		if a.Id != b.Id || a.Description != b.Description || !a.Cost.Equal(b.Cost) {
			return false
		}
	}
	return true
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
