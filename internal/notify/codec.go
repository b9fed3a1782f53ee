package notify

import (
	"encoding/json"

	"github.com/Zzzode/VeloZ/internal/codec"
)

// wireEntry is Entry's on-disk shape. Kept distinct from Entry so a
// future field added to Entry doesn't have to think about wire
// compatibility — this ledger is a cache, not the durability format.
type wireEntry struct {
	Sequence    uint64 `json:"sequence"`
	Kind        uint8  `json:"kind"`
	Payload     []byte `json:"payload"`
	State       uint8  `json:"state"`
	IdemKey     string `json:"idem_key"`
	Retries     uint32 `json:"retries"`
	LastAttempt int64  `json:"last_attempt"`
}

func encodeEntry(e Entry) ([]byte, error) {
	return json.Marshal(wireEntry{
		Sequence:    e.Sequence,
		Kind:        uint8(e.Kind),
		Payload:     e.Payload,
		State:       uint8(e.State),
		IdemKey:     e.IdemKey,
		Retries:     e.Retries,
		LastAttempt: e.LastAttempt,
	})
}

func decodeEntry(b []byte) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(b, &w); err != nil {
		return Entry{}, err
	}
	return Entry{
		Sequence:    w.Sequence,
		Kind:        codec.Kind(w.Kind),
		Payload:     w.Payload,
		State:       State(w.State),
		IdemKey:     w.IdemKey,
		Retries:     w.Retries,
		LastAttempt: w.LastAttempt,
	}, nil
}
