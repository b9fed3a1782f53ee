package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// IndexEntry describes one segment file: a write-through cache of
// segment metadata backed by an embedded KV store instead of an
// append-only JSON-lines file.
type IndexEntry struct {
	Filename  string `json:"filename"`
	FirstSeq  uint64 `json:"first_seq"`
	LastSeq   uint64 `json:"last_seq"`
	SizeBytes int64  `json:"size_bytes"`
	Sealed    bool   `json:"sealed"`
}

// Index is an advisory cache of segment metadata, written on segment
// creation, append, rotation, and deletion. It is never consulted by
// the Replay Engine, which always reads the raw segment files
// directly, nor by IterSegments, which lists the directory; the Store
// reads it back only for the newest segment's LastSeq on reopen. It is
// not rebuilt from the segment files when missing or out of date.
type Index struct {
	db *pebble.DB
}

// OpenIndex opens (creating if absent) the pebble instance backing a
// segment directory's index, stored in a ".<prefix>.index" subdirectory
// alongside the segment files themselves.
func OpenIndex(dir, prefix string) (*Index, error) {
	path := filepath.Join(dir, "."+prefix+".index")
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("segment: open index: %w", err)
	}
	return &Index{db: db}, nil
}

func indexKey(firstSeq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], firstSeq)
	return k[:]
}

// Put upserts a segment's metadata, durably (pebble.Sync). The write
// is not ordered against the segment file's own fsync: an entry can
// describe a segment or records that are not yet durable on disk.
func (idx *Index) Put(e IndexEntry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("segment: marshal index entry: %w", err)
	}
	return idx.db.Set(indexKey(e.FirstSeq), value, pebble.Sync)
}

// Get returns the metadata for the segment starting at firstSeq, if
// known to the index.
func (idx *Index) Get(firstSeq uint64) (IndexEntry, bool, error) {
	value, closer, err := idx.db.Get(indexKey(firstSeq))
	if err != nil {
		if err == pebble.ErrNotFound {
			return IndexEntry{}, false, nil
		}
		return IndexEntry{}, false, err
	}
	defer closer.Close()

	var e IndexEntry
	if err := json.Unmarshal(value, &e); err != nil {
		return IndexEntry{}, false, fmt.Errorf("segment: unmarshal index entry: %w", err)
	}
	return e, true, nil
}

// All returns every known segment's metadata, ordered by FirstSeq
// ascending (the natural order of the big-endian key encoding).
func (idx *Index) All() ([]IndexEntry, error) {
	iter, err := idx.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []IndexEntry
	for iter.First(); iter.Valid(); iter.Next() {
		var e IndexEntry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("segment: unmarshal index entry: %w", err)
		}
		out = append(out, e)
	}
	return out, iter.Error()
}

// Delete removes a segment's metadata, e.g. after the underlying file
// has been removed by retention.
func (idx *Index) Delete(firstSeq uint64) error {
	return idx.db.Delete(indexKey(firstSeq), pebble.Sync)
}

// Close closes the underlying pebble instance.
func (idx *Index) Close() error {
	return idx.db.Close()
}
