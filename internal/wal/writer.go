package wal

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Zzzode/VeloZ/internal/codec"
	"github.com/Zzzode/VeloZ/internal/orderstore"
	"github.com/Zzzode/VeloZ/internal/segment"
)

// OutboxHook is the best-effort, outside-the-durability-boundary sink
// a Writer enqueues onto after a record is durably appended. It is
// satisfied by internal/notify.Outbox; kept as an interface here so
// this package never imports notify (notify depends only on codec's
// types, keeping the dependency pointing one way). "Durably" holds
// when SyncOnWrite is set; otherwise the record has been appended but
// not yet fsynced. A failure here can degrade but never seal the
// Writer.
type OutboxHook interface {
	Enqueue(seq uint64, kind codec.Kind, payload []byte) error
}

// Writer is the single entry point for durably recording an order
// event. One writer mutex serializes {assign sequence, encode, append,
// optional sync, apply to the Order Store} into one atomic unit of
// work per call.
type Writer struct {
	cfg    Config
	store  *segment.Store
	orders *orderstore.Store
	outbox OutboxHook
	logger *log.Logger

	mu               sync.Mutex
	state            State
	nextSeq          uint64
	stats            Stats
	recordsSinceCP   uint64
	lastCheckpointAt time.Time
}

// New opens (or creates) the segment directory at cfg.Dir and returns
// a Writer ready to accept records, assigning sequence numbers from 1.
// A caller continuing an existing log must call SetNextSequence with
// the next sequence number the Replay Engine derived from what already
// exists on disk.
func New(cfg Config, orders *orderstore.Store, outbox OutboxHook, logger *log.Logger) (*Writer, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.New(io.Discard, "wal: ", log.LstdFlags)
	}

	store, err := segment.Open(cfg.Dir, cfg.Prefix, 1, segment.Options{
		MaxSegmentBytes: cfg.MaxSegmentBytes,
		StaleLockAfter:  cfg.StaleLockAfter,
	})
	if err != nil {
		if err == segment.ErrLocked {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	return &Writer{
		cfg:              cfg,
		store:            store,
		orders:           orders,
		outbox:           outbox,
		logger:           logger,
		state:            Healthy,
		nextSeq:          1,
		lastCheckpointAt: time.Now(),
	}, nil
}

// SetNextSequence overrides the next sequence number to assign. The
// caller passes the Replay Engine's Result.NextSequence, once, after
// replay has determined where the durable log actually left off.
func (w *Writer) SetNextSequence(seq uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextSeq = seq
}

// SetReplayStats records how many entries the Replay Engine applied
// and how many it found corrupted, before the Writer starts accepting
// new writes.
func (w *Writer) SetReplayStats(entriesReplayed, corruptedEntries uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.EntriesReplayed = entriesReplayed
	w.stats.CorruptedEntries = corruptedEntries
}

func (w *Writer) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.CurrentSequence = w.nextSeq - 1
	return s
}

func (w *Writer) CurrentSequence() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextSeq - 1
}

// LogOrderNew durably records a new order's parameters and applies
// them to the Order Store within the same critical section.
func (w *Writer) LogOrderNew(p codec.OrderNewPayload) (uint64, error) {
	if p.ClientOrderID == "" || p.Validate() != nil {
		return 0, ErrInvalidArgument
	}
	return w.appendAndApply(codec.KindOrderNew, time.Now().UnixNano(), func(seq uint64, ts int64) *codec.Record {
		return codec.NewOrderNewRecord(seq, ts, p)
	}, func(ts int64) {
		w.orders.NoteOrderParams(p)
	})
}

// LogOrderUpdate durably records an order status transition at the
// caller-supplied event time tsNs — the same value is written into the
// record header and applied to the live Order Store, so a replay
// reconstructs the identical LastUpdateNs the live store held.
func (w *Writer) LogOrderUpdate(p codec.OrderUpdatePayload, tsNs int64) (uint64, error) {
	if p.ClientOrderID == "" || p.Validate() != nil {
		return 0, ErrInvalidArgument
	}
	return w.appendAndApply(codec.KindOrderUpdate, tsNs, func(seq uint64, ts int64) *codec.Record {
		return codec.NewOrderUpdateRecord(seq, ts, p)
	}, func(ts int64) {
		w.orders.ApplyUpdate(p.ClientOrderID, p.ExchangeOrderID, p.Status, p.Reason, ts)
	})
}

// LogOrderCancel durably records a cancellation at the caller-supplied
// event time tsNs.
func (w *Writer) LogOrderCancel(p codec.OrderUpdatePayload, tsNs int64) (uint64, error) {
	if p.ClientOrderID == "" || p.Validate() != nil {
		return 0, ErrInvalidArgument
	}
	p.Status = codec.StatusCanceled
	return w.appendAndApply(codec.KindOrderCancel, tsNs, func(seq uint64, ts int64) *codec.Record {
		return codec.NewOrderCancelRecord(seq, ts, p)
	}, func(ts int64) {
		w.orders.ApplyCancel(p.ClientOrderID, p.Reason, ts)
	})
}

// LogOrderFill durably records a fill at the caller-supplied event time
// tsNs and recomputes the order's executed quantity and average price.
func (w *Writer) LogOrderFill(p codec.OrderFillPayload, tsNs int64) (uint64, error) {
	if p.ClientOrderID == "" || p.Validate() != nil {
		return 0, ErrInvalidArgument
	}
	return w.appendAndApply(codec.KindOrderFill, tsNs, func(seq uint64, ts int64) *codec.Record {
		return codec.NewOrderFillRecord(seq, ts, p)
	}, func(ts int64) {
		if w.orders.ApplyFill(p.ClientOrderID, p.Symbol, p.Qty, p.Price, ts) {
			w.stats.OverfillAlerts++
			w.logger.Printf("overfill alert: %s executed qty exceeds original qty", p.ClientOrderID)
		}
	})
}

// WriteCheckpoint snapshots the Order Store into a CHECKPOINT record
// and fsyncs it before returning, whatever SyncOnWrite says.
// Callers may invoke this directly; it is also triggered automatically
// by appendAndApply per cfg.CheckpointEveryRecords/Interval.
func (w *Writer) WriteCheckpoint() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeCheckpointLocked()
}

func (w *Writer) writeCheckpointLocked() (uint64, error) {
	cp := w.orders.ToCheckpoint()
	seq, err := w.appendLocked(codec.KindCheckpoint, time.Now().UnixNano(), func(seq uint64, ts int64) *codec.Record {
		return codec.NewCheckpointRecord(seq, ts, cp)
	})
	if err != nil {
		return 0, err
	}
	if !w.cfg.SyncOnWrite {
		if err := w.store.Sync(); err != nil {
			w.seal(err)
			return 0, ErrSealed
		}
	}
	w.stats.Checkpoints++
	w.recordsSinceCP = 0
	w.lastCheckpointAt = time.Now()
	return seq, nil
}

// Sync fsyncs the current segment.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Sealed {
		return ErrSealed
	}
	if err := w.store.Sync(); err != nil {
		w.seal(err)
		return ErrSealed
	}
	return nil
}

// Close fsyncs and releases the segment directory.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Close()
}

// appendAndApply is the shared body of every Log* method: one critical
// section covering sequence assignment, encode, append, optional sync,
// apply-to-store, the outbox enqueue, and the auto-checkpoint check.
// ts is computed once by the caller and used for both the record
// header and the Order Store mutation, so replaying the record back
// reproduces the exact same LastUpdateNs the live store was given.
func (w *Writer) appendAndApply(kind codec.Kind, ts int64, build func(seq uint64, ts int64) *codec.Record, apply func(ts int64)) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq, err := w.appendLocked(kind, ts, build)
	if err != nil {
		return 0, err
	}

	apply(ts)

	w.recordsSinceCP++
	if w.recordsSinceCP >= w.cfg.CheckpointEveryRecords ||
		time.Since(w.lastCheckpointAt) >= w.cfg.CheckpointEveryInterval {
		if _, cpErr := w.writeCheckpointLocked(); cpErr != nil {
			w.logger.Printf("auto-checkpoint failed: %v", cpErr)
		}
	}

	return seq, nil
}

// appendLocked assigns the next sequence number, encodes, appends to
// the segment store, optionally syncs, rotates if the segment has
// grown past its threshold, and best-effort enqueues onto the outbox.
// Callers must already hold w.mu.
func (w *Writer) appendLocked(kind codec.Kind, ts int64, build func(seq uint64, ts int64) *codec.Record) (uint64, error) {
	if w.state == Sealed {
		return 0, ErrSealed
	}

	seq := w.nextSeq
	rec := build(seq, ts)

	data, err := codec.Encode(rec)
	if err != nil {
		return 0, fmt.Errorf("wal: encode: %w", err)
	}

	if w.store.ShouldRotate() {
		if err := w.store.Rotate(seq); err != nil {
			w.seal(err)
			return 0, ErrSealed
		}
	}

	if err := w.store.Append(data, seq); err != nil {
		w.seal(err)
		return 0, ErrSealed
	}
	if w.cfg.SyncOnWrite {
		if err := w.store.Sync(); err != nil {
			w.seal(err)
			return 0, ErrSealed
		}
	}

	if w.outbox != nil {
		if err := w.outbox.Enqueue(seq, kind, data); err != nil {
			// Outside the durability boundary: degrade, don't seal.
			w.state = Degraded
			w.logger.Printf("outbox enqueue failed for seq %d: %v", seq, err)
		}
	}

	w.nextSeq++
	w.stats.EntriesWritten++
	w.stats.BytesWritten += uint64(len(data))
	return seq, nil
}

func (w *Writer) seal(cause error) {
	w.state = Sealed
	w.logger.Printf("sealed: %v", cause)
}
