package orderstore

import (
	"github.com/Zzzode/VeloZ/internal/codec"
)

// QtyTolerance is the floating-point slack allowed when comparing
// executed quantity against original quantity.
const QtyTolerance = 1e-8

// OrderState is one entry per active or historical order. It is
// returned by value from Get/Snapshot so callers can never mutate the
// store through an aliased pointer.
type OrderState struct {
	ClientOrderID   string
	ExchangeOrderID string
	Symbol          string
	Side            codec.Side
	OrderType       codec.OrderType
	TimeInForce     string
	OriginalQty     float64
	HasLimitPrice   bool
	LimitPrice      float64
	ExecutedQty     float64
	AvgPrice        float64
	Status          codec.Status
	LastUpdateNs    int64

	// fillNotional accumulates Σ(fill.price * fill.qty) so AvgPrice
	// can be recomputed exactly on every fill without drifting from
	// repeated division/multiplication.
	fillNotional float64
}

// IsTerminal reports whether the order has reached a status that
// never changes again.
func (o OrderState) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// nextStatusAllowed enforces the status transition table:
//
//	pending-new      -> {acknowledged, rejected}
//	acknowledged     -> {partially-filled, filled, canceled}
//	partially-filled -> {partially-filled, filled, canceled}
//	terminal states  -> never change
func nextStatusAllowed(from, to codec.Status) bool {
	if from.IsTerminal() {
		return false
	}
	switch from {
	case codec.StatusPendingNew:
		return to == codec.StatusAcknowledged || to == codec.StatusRejected
	case codec.StatusAcknowledged:
		return to == codec.StatusPartiallyFilled || to == codec.StatusFilled || to == codec.StatusCanceled
	case codec.StatusPartiallyFilled:
		return to == codec.StatusPartiallyFilled || to == codec.StatusFilled || to == codec.StatusCanceled
	default:
		return false
	}
}

func nearlyGTE(a, b float64) bool {
	return a >= b-QtyTolerance
}
