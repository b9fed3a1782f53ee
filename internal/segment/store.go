package segment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultMaxSegmentBytes is the rotation threshold used when
// Options.MaxSegmentBytes is left at zero.
const DefaultMaxSegmentBytes = 64 << 20 // 64 MiB

// DefaultStaleLockAfter is how old an unattended lock file must be,
// on top of its owning PID being dead, before a new Open reclaims it.
const DefaultStaleLockAfter = 30 * time.Second

// Options configures a Store.
type Options struct {
	MaxSegmentBytes int64
	StaleLockAfter  time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxSegmentBytes <= 0 {
		o.MaxSegmentBytes = DefaultMaxSegmentBytes
	}
	if o.StaleLockAfter <= 0 {
		o.StaleLockAfter = DefaultStaleLockAfter
	}
	return o
}

// SegmentRef identifies one on-disk segment file by its starting
// sequence number, in the order iter_segments yields them.
type SegmentRef struct {
	FirstSeq uint64
	Path     string
}

// Store owns one directory of WAL segment files for a single writer.
// It knows how to append raw framed bytes, fsync, rotate onto a new
// segment, and enumerate segments in order — all independent of record
// framing, which belongs to internal/codec and internal/wal.
type Store struct {
	dir    string
	prefix string
	opts   Options

	lock  *DirLock
	index *Index

	mu          sync.Mutex
	file        *os.File
	firstSeq    uint64
	lastSeq     uint64
	sizeBytes   int64
}

// Open acquires the directory lock, opens (or creates) the metadata
// index, and positions the Store for appending: onto the newest
// existing segment if one exists, or a fresh one starting at
// initialSeq otherwise.
func Open(dir, prefix string, initialSeq uint64, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("segment: mkdir %s: %w", dir, err)
	}

	lock, err := AcquireLock(dir, prefix, opts.StaleLockAfter)
	if err != nil {
		return nil, err
	}

	idx, err := OpenIndex(dir, prefix)
	if err != nil {
		lock.Release()
		return nil, err
	}

	s := &Store{dir: dir, prefix: prefix, opts: opts, lock: lock, index: idx}

	refs, err := s.IterSegments()
	if err != nil {
		idx.Close()
		lock.Release()
		return nil, err
	}

	if len(refs) == 0 {
		if err := s.openNewSegment(initialSeq); err != nil {
			idx.Close()
			lock.Release()
			return nil, err
		}
		return s, nil
	}

	newest := refs[len(refs)-1]
	if err := s.openExistingSegment(newest.FirstSeq); err != nil {
		idx.Close()
		lock.Release()
		return nil, err
	}
	return s, nil
}

func (s *Store) path(firstSeq uint64) string {
	return filepath.Join(s.dir, filename(s.prefix, firstSeq))
}

func (s *Store) openNewSegment(firstSeq uint64) error {
	f, err := os.OpenFile(s.path(firstSeq), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("segment: create segment: %w", err)
	}
	s.file = f
	s.firstSeq = firstSeq
	s.lastSeq = firstSeq - 1 // no records appended yet
	s.sizeBytes = 0
	return s.index.Put(IndexEntry{
		Filename: filepath.Base(f.Name()),
		FirstSeq: firstSeq,
		LastSeq:  s.lastSeq,
	})
}

func (s *Store) openExistingSegment(firstSeq uint64) error {
	f, err := os.OpenFile(s.path(firstSeq), os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("segment: open existing segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("segment: stat existing segment: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return fmt.Errorf("segment: seek to end of existing segment: %w", err)
	}
	s.file = f
	s.firstSeq = firstSeq
	s.sizeBytes = info.Size()

	entry, ok, err := s.index.Get(firstSeq)
	if err != nil {
		f.Close()
		return err
	}
	if ok {
		s.lastSeq = entry.LastSeq
	} else {
		// Index disagrees with the directory listing: fall back to an
		// empty-segment lastSeq without writing an index entry; the
		// next Append writes one. internal/replay is what
		// actually re-derives lastSeq authoritatively by scanning
		// records; the index is advisory.
		s.lastSeq = firstSeq - 1
	}
	return nil
}

// Append writes a framed record's raw bytes to the current segment.
// seq is the sequence number just assigned to that record, used only
// to keep the index's lastSeq current — it is the caller's (the WAL
// Writer's) job to guarantee seq values arrive in order.
func (s *Store) Append(data []byte, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.file.Write(data)
	if err != nil {
		return fmt.Errorf("segment: write: %w", err)
	}
	s.sizeBytes += int64(n)
	s.lastSeq = seq

	return s.index.Put(IndexEntry{
		Filename:  filepath.Base(s.file.Name()),
		FirstSeq:  s.firstSeq,
		LastSeq:   s.lastSeq,
		SizeBytes: s.sizeBytes,
	})
}

// Sync fsyncs the current segment file.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

// Size returns the current segment's size in bytes.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeBytes
}

// ShouldRotate reports whether the current segment has grown past the
// configured rotation threshold.
func (s *Store) ShouldRotate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeBytes >= s.opts.MaxSegmentBytes
}

// Rotate seals the current segment (fsync, mark sealed in the index,
// close) and opens a fresh one starting at nextSeq.
func (s *Store) Rotate(nextSeq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("segment: sync before rotate: %w", err)
	}
	if err := s.index.Put(IndexEntry{
		Filename:  filepath.Base(s.file.Name()),
		FirstSeq:  s.firstSeq,
		LastSeq:   s.lastSeq,
		SizeBytes: s.sizeBytes,
		Sealed:    true,
	}); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("segment: close sealed segment: %w", err)
	}

	f, err := os.OpenFile(s.path(nextSeq), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("segment: create rotated segment: %w", err)
	}
	s.file = f
	s.firstSeq = nextSeq
	s.lastSeq = nextSeq - 1
	s.sizeBytes = 0
	return s.index.Put(IndexEntry{
		Filename: filepath.Base(f.Name()),
		FirstSeq: nextSeq,
		LastSeq:  s.lastSeq,
	})
}

// IterSegments lists every segment file in this directory, ordered by
// FirstSeq ascending, read straight off the filesystem rather than the
// index — so a missing or stale index can never hide a segment from
// replay.
func (s *Store) IterSegments() ([]SegmentRef, error) {
	return ListSegments(s.dir, s.prefix)
}

// ListSegments lists every segment file matching prefix in dir,
// ordered by FirstSeq ascending, without requiring a Store (and so
// without taking the directory lock). This is what the Replay Engine
// uses at startup, before any Writer has opened the directory.
func ListSegments(dir, prefix string) ([]SegmentRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("segment: read dir %s: %w", dir, err)
	}

	var refs []SegmentRef
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		firstSeq, ok := parseFilename(prefix, e.Name())
		if !ok {
			continue
		}
		refs = append(refs, SegmentRef{FirstSeq: firstSeq, Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].FirstSeq < refs[j].FirstSeq })
	return refs, nil
}

// DeleteSegment removes a sealed segment's file and index entry. It is
// the caller's responsibility to never delete a segment that a
// checkpoint still depends on; the WAL Writer does not call it.
func (s *Store) DeleteSegment(firstSeq uint64) error {
	if err := os.Remove(s.path(firstSeq)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("segment: delete segment: %w", err)
	}
	return s.index.Delete(firstSeq)
}

// Close fsyncs and closes the current segment file, closes the index,
// and releases the directory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.mu.Unlock()

	idxErr := s.index.Close()
	lockErr := s.lock.Release()

	for _, err := range []error{syncErr, closeErr, idxErr, lockErr} {
		if err != nil {
			return err
		}
	}
	return nil
}
