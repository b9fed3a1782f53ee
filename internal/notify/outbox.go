// Package notify is everything downstream of a durable write that is
// explicitly not part of the durability boundary: a best-effort outbox
// ledger and a Kafka broadcaster that drains it. Losing the process
// between a WAL append and a successful broadcast only delays
// notification — it never loses the order event itself, which is
// already appended to its segment file (and fsynced, when the Writer
// syncs on every write) by the time Outbox.Enqueue runs.
package notify

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	"github.com/Zzzode/VeloZ/internal/codec"
)

// State is an outbox entry's delivery state.
type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// Entry is one outbox record: an order event awaiting best-effort
// delivery to downstream consumers.
type Entry struct {
	Sequence    uint64
	Kind        codec.Kind
	Payload     []byte
	State       State
	IdemKey     string
	Retries     uint32
	LastAttempt int64
}

// Outbox is a pebble-backed NEW→SENT→ACKED ledger keyed by sequence
// number, satisfying wal.OutboxHook. It is a write-through cache the
// Broadcaster drains; nothing about the WAL's own durability depends
// on it.
type Outbox struct {
	db *pebble.DB
}

// Open opens (creating if absent) the outbox ledger at dir.
func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("notify: open outbox: %w", err)
	}
	return &Outbox{db: db}, nil
}

func outboxKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

// Enqueue implements wal.OutboxHook: it records a NEW entry for a
// just-appended record, generating a fresh idempotency key so a
// downstream consumer can de-duplicate retried deliveries.
func (o *Outbox) Enqueue(seq uint64, kind codec.Kind, payload []byte) error {
	e := Entry{
		Sequence: seq,
		Kind:     kind,
		Payload:  payload,
		State:    StateNew,
		IdemKey:  uuid.NewString(),
	}
	return o.put(e)
}

func (o *Outbox) put(e Entry) error {
	value, err := encodeEntry(e)
	if err != nil {
		return err
	}
	return o.db.Set(outboxKey(e.Sequence), value, pebble.Sync)
}

// MarkSent transitions an entry to SENT just before the Broadcaster
// hands it to the producer, ahead of the broker's acknowledgement: a
// crash between send and ack leaves it in SENT, which the next
// Broadcaster.Start moves back to NEW, so the result is one redundant
// redelivery rather than a lost one.
func (o *Outbox) MarkSent(seq uint64, retries uint32) error {
	e, ok, err := o.Get(seq)
	if err != nil || !ok {
		return err
	}
	e.State = StateSent
	e.Retries = retries
	e.LastAttempt = time.Now().UnixNano()
	return o.put(e)
}

// MarkAcked transitions an entry to ACKED once the broker has
// confirmed receipt.
func (o *Outbox) MarkAcked(seq uint64) error {
	e, ok, err := o.Get(seq)
	if err != nil || !ok {
		return err
	}
	e.State = StateAcked
	return o.put(e)
}

// Get returns the current entry for a sequence number, if present.
func (o *Outbox) Get(seq uint64) (Entry, bool, error) {
	value, closer, err := o.db.Get(outboxKey(seq))
	if err != nil {
		if err == pebble.ErrNotFound {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	defer closer.Close()
	e, err := decodeEntry(value)
	return e, true, err
}

// Delete removes the entry for seq whatever its state, e.g. retention
// cleanup of an ACKED entry once a consumer has confirmed the event
// was delivered and there is no further value in keeping it around.
func (o *Outbox) Delete(seq uint64) error {
	return o.db.Delete(outboxKey(seq), pebble.Sync)
}

// ScanByState calls fn for every entry currently in the given state,
// ordered by sequence ascending. This is what the Broadcaster polls
// with to find work.
func (o *Outbox) ScanByState(state State, fn func(Entry) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		e, err := decodeEntry(iter.Value())
		if err != nil {
			return err
		}
		if e.State != state {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close closes the underlying pebble instance.
func (o *Outbox) Close() error {
	return o.db.Close()
}
