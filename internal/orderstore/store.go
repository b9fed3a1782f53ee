package orderstore

import (
	"io"
	"log"
	"sync"

	"github.com/Zzzode/VeloZ/internal/codec"
)

// Store is the in-memory mapping from client order id to order state,
// guarded by a single RWMutex: the Writer upgrades to exclusive only
// during the application step, readers (monitoring, snapshot
// endpoints) take shared access and see either the complete
// pre-event or complete post-event state, never a half-applied
// transition.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*OrderState
	logger *log.Logger
}

// New constructs an empty Order Store. w receives anomaly log lines
// (rejected transitions, unknown-id tolerances); nil defaults to
// io.Discard so tests stay quiet by default.
func New(w io.Writer) *Store {
	if w == nil {
		w = io.Discard
	}
	return &Store{
		orders: make(map[string]*OrderState),
		logger: log.New(w, "orderstore: ", log.LstdFlags|log.Lmicroseconds),
	}
}

// NoteOrderParams creates or overwrites the initial record for an id,
// applying an ORDER_NEW event.
func (s *Store) NoteOrderParams(p codec.OrderNewPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[p.ClientOrderID] = &OrderState{
		ClientOrderID: p.ClientOrderID,
		Symbol:        p.Symbol,
		Side:          p.Side,
		OrderType:     p.OrderType,
		TimeInForce:   p.TimeInForce,
		OriginalQty:   p.OriginalQty,
		HasLimitPrice: p.HasLimitPrice,
		LimitPrice:    p.LimitPrice,
		Status:        codec.StatusPendingNew,
	}
}

// ApplyUpdate mutates status and optionally binds an exchange id. An
// empty exchangeID leaves the existing binding untouched — the
// exchange-assigned id is optional and may be bound after submission.
// A transition out of a terminal state, or one the state table in
// order.go disallows, is a no-op — not an error — since replay can
// encounter duplicated semantic events across checkpoints.
func (s *Store) ApplyUpdate(clientOrderID, exchangeOrderID string, status codec.Status, reason string, tsNs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[clientOrderID]
	if !ok {
		o = &OrderState{ClientOrderID: clientOrderID, Status: codec.StatusPendingNew}
		s.orders[clientOrderID] = o
	}

	if o.Status.IsTerminal() {
		s.logger.Printf("ignoring update for terminal order %s (status=%v, target=%v)", clientOrderID, o.Status, status)
		return
	}
	if !nextStatusAllowed(o.Status, status) {
		s.logger.Printf("ignoring disallowed transition for order %s: %v -> %v", clientOrderID, o.Status, status)
		return
	}

	if exchangeOrderID != "" {
		o.ExchangeOrderID = exchangeOrderID
	}
	o.Status = status
	o.LastUpdateNs = tsNs
	_ = reason
}

// ApplyCancel is ApplyUpdate specialised to the Canceled target
// status. It never rebinds the exchange order id.
func (s *Store) ApplyCancel(clientOrderID, reason string, tsNs int64) {
	s.ApplyUpdate(clientOrderID, "", codec.StatusCanceled, reason, tsNs)
}

// ApplyFill adds a fill, recomputes ExecutedQty and AvgPrice, and
// advances status to partially-filled or filled depending on progress
// against OriginalQty. Applying a fill to an unknown id is tolerated —
// a synthetic shell record is created to preserve fill information
// during out-of-order replay. Fills are ground truth from the
// exchange: they are applied without clamping even if the resulting
// ExecutedQty exceeds OriginalQty by more than tolerance; such an
// event is counted by the caller via the returned overfill flag
// rather than rejected.
func (s *Store) ApplyFill(clientOrderID, symbol string, qty, price float64, tsNs int64) (overfill bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[clientOrderID]
	if !ok {
		o = &OrderState{ClientOrderID: clientOrderID, Symbol: symbol, Status: codec.StatusPendingNew}
		s.orders[clientOrderID] = o
		s.logger.Printf("fill for unknown order %s, creating shell record", clientOrderID)
	}

	o.ExecutedQty += qty
	o.fillNotional += qty * price
	if o.ExecutedQty > 0 {
		o.AvgPrice = o.fillNotional / o.ExecutedQty
	}
	o.LastUpdateNs = tsNs

	// A fill's status consequence is governed by the executed-quantity
	// invariant, not the general transition table: any order with
	// ExecutedQty > 0 must be partially-filled or filled, even from
	// pending-new. A terminal order's status still never changes; its
	// qty bookkeeping still reflects the ground-truth fill.
	if !o.Status.IsTerminal() {
		if nearlyGTE(o.ExecutedQty, o.OriginalQty) {
			o.Status = codec.StatusFilled
		} else {
			o.Status = codec.StatusPartiallyFilled
		}
	}

	return o.ExecutedQty > o.OriginalQty+QtyTolerance
}

// Get returns a copy of the order state for id, if present.
func (s *Store) Get(clientOrderID string) (OrderState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[clientOrderID]
	if !ok {
		return OrderState{}, false
	}
	return *o, true
}

// Snapshot returns a copy of every order currently in the store.
func (s *Store) Snapshot() []OrderState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OrderState, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out
}

// ListPending returns every non-terminal order.
func (s *Store) ListPending() []OrderState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OrderState, 0, len(s.orders))
	for _, o := range s.orders {
		if !o.IsTerminal() {
			out = append(out, *o)
		}
	}
	return out
}

// ListTerminal returns every order in a terminal status.
func (s *Store) ListTerminal() []OrderState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]OrderState, 0, len(s.orders))
	for _, o := range s.orders {
		if o.IsTerminal() {
			out = append(out, *o)
		}
	}
	return out
}

// Count returns the total number of orders in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// CountPending returns the number of non-terminal orders.
func (s *Store) CountPending() int {
	return len(s.ListPending())
}

// CountTerminal returns the number of terminal orders.
func (s *Store) CountTerminal() int {
	return len(s.ListTerminal())
}

// LoadCheckpoint seeds the store from a CHECKPOINT payload, replacing
// its current contents wholesale. Used by the Replay Engine.
func (s *Store) LoadCheckpoint(p codec.CheckpointPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[string]*OrderState, len(p.Orders))
	for _, e := range p.Orders {
		s.orders[e.ClientOrderID] = &OrderState{
			ClientOrderID:   e.ClientOrderID,
			ExchangeOrderID: e.ExchangeOrderID,
			Symbol:          e.Symbol,
			Side:            e.Side,
			OrderType:       e.OrderType,
			TimeInForce:     e.TimeInForce,
			OriginalQty:     e.OriginalQty,
			HasLimitPrice:   e.HasLimitPrice,
			LimitPrice:      e.LimitPrice,
			ExecutedQty:     e.ExecutedQty,
			AvgPrice:        e.AvgPrice,
			Status:          e.Status,
			LastUpdateNs:    e.LastUpdateNs,
			fillNotional:    e.AvgPrice * e.ExecutedQty,
		}
	}
}

// ToCheckpoint serialises the current store into a CHECKPOINT payload,
// used by the WAL Writer's WriteCheckpoint.
func (s *Store) ToCheckpoint() codec.CheckpointPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]codec.OrderSnapshotEntry, 0, len(s.orders))
	for _, o := range s.orders {
		entries = append(entries, codec.OrderSnapshotEntry{
			ClientOrderID:   o.ClientOrderID,
			ExchangeOrderID: o.ExchangeOrderID,
			Symbol:          o.Symbol,
			Side:            o.Side,
			OrderType:       o.OrderType,
			TimeInForce:     o.TimeInForce,
			OriginalQty:     o.OriginalQty,
			HasLimitPrice:   o.HasLimitPrice,
			LimitPrice:      o.LimitPrice,
			ExecutedQty:     o.ExecutedQty,
			AvgPrice:        o.AvgPrice,
			Status:          o.Status,
			LastUpdateNs:    o.LastUpdateNs,
		})
	}
	return codec.CheckpointPayload{Orders: entries}
}
