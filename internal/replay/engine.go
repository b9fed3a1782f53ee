package replay

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/Zzzode/VeloZ/internal/codec"
	"github.com/Zzzode/VeloZ/internal/orderstore"
	"github.com/Zzzode/VeloZ/internal/segment"
)

// Result summarizes one replay run: how many entries were applied and
// how many were corrupted, plus the next sequence number the WAL
// Writer should continue from.
type Result struct {
	NextSequence     uint64
	EntriesReplayed  uint64
	CorruptedEntries uint64
	SequenceGaps     uint64
}

// Run replays every segment in dir matching prefix into orders,
// returning the sequence number the WAL Writer should assign next.
// gapTolerance bounds how many missing sequence numbers (summed across
// every segment-boundary gap found) are tolerated before replay aborts
// with ErrReplayGap; zero means any such gap is fatal. Gaps caused by a
// corrupted record being skipped and resynced within a single segment
// are tracked in Result.SequenceGaps but never fatal — only a gap that
// lands at a segment boundary with no corruption to explain it,
// meaning a whole segment file is missing from disk, counts against
// gapTolerance.
func Run(dir, prefix string, orders *orderstore.Store, gapTolerance uint64, logger *log.Logger) (Result, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "replay: ", log.LstdFlags)
	}

	refs, err := segment.ListSegments(dir, prefix)
	if err != nil {
		return Result{}, err
	}
	if len(refs) == 0 {
		return Result{NextSequence: 1}, nil
	}

	segs := make([]decodedSegment, 0, len(refs))
	for _, ref := range refs {
		ds, err := decodeSegment(ref, logger)
		if err != nil {
			return Result{}, err
		}
		segs = append(segs, ds)
	}

	checkpointSeg, checkpointIdx := findLastValidCheckpoint(segs, logger)

	var result Result
	var lastSeq uint64
	haveLastSeq := false
	var gapTotal uint64

	startSeg := 0
	startRec := 0
	if checkpointSeg >= 0 {
		cp := segs[checkpointSeg].records[checkpointIdx]
		orders.LoadCheckpoint(*cp.record.Checkpoint)
		lastSeq = cp.record.Sequence
		haveLastSeq = true
		startSeg = checkpointSeg
		startRec = checkpointIdx + 1
	}

	for si := startSeg; si < len(segs); si++ {
		recs := segs[si].records
		from := 0
		if si == startSeg {
			from = startRec
		}
		for ri := from; ri < len(recs); ri++ {
			rec := recs[ri].record

			if haveLastSeq && rec.Sequence > lastSeq+1 {
				missing := rec.Sequence - lastSeq - 1
				result.SequenceGaps++

				// A gap explained by a corrupted-and-resynced record is
				// recoverable by design (see decodeSegment) and never
				// fatal, whether the corruption fell inside this segment
				// or at the tail of the one before it. Only a gap at a
				// segment boundary with no corruption on either side to
				// explain it points at a whole segment file missing from
				// disk — that's what gapTolerance guards.
				atSegmentBoundary := ri == from && si > startSeg
				if atSegmentBoundary && segs[si-1].corruptedEntries == 0 && segs[si].corruptedEntries == 0 {
					gapTotal += missing
					logger.Printf("missing segment file: expected sequence %d, got %d (%d missing)", lastSeq+1, rec.Sequence, missing)
					if gapTotal > gapTolerance {
						return Result{}, fmt.Errorf("%w: %d missing sequence numbers before seq %d exceeds tolerance %d", ErrReplayGap, gapTotal, rec.Sequence, gapTolerance)
					}
				} else {
					logger.Printf("sequence gap: expected %d, got %d (%d missing)", lastSeq+1, rec.Sequence, missing)
				}
			}
			lastSeq = rec.Sequence
			haveLastSeq = true

			applyRecord(orders, rec)
			result.EntriesReplayed++
		}
		result.CorruptedEntries += segs[si].corruptedEntries
	}

	result.NextSequence = 1
	if haveLastSeq {
		result.NextSequence = lastSeq + 1
	}
	return result, nil
}

func applyRecord(orders *orderstore.Store, rec *codec.Record) {
	switch rec.Kind {
	case codec.KindOrderNew:
		orders.NoteOrderParams(*rec.OrderNew)
	case codec.KindOrderUpdate:
		u := rec.OrderUpdate
		orders.ApplyUpdate(u.ClientOrderID, u.ExchangeOrderID, u.Status, u.Reason, rec.TimestampNs)
	case codec.KindOrderCancel:
		u := rec.OrderUpdate
		orders.ApplyCancel(u.ClientOrderID, u.Reason, rec.TimestampNs)
	case codec.KindOrderFill:
		f := rec.OrderFill
		orders.ApplyFill(f.ClientOrderID, f.Symbol, f.Qty, f.Price, rec.TimestampNs)
	case codec.KindCheckpoint:
		orders.LoadCheckpoint(*rec.Checkpoint)
	case codec.KindRotationMarker:
		// Purely informational; nothing to apply.
	}
}

// findLastValidCheckpoint scans segments newest-first, and within a
// segment its records newest-first, for the most recent CHECKPOINT
// record. A checkpoint whose payload failed to decode was already
// excluded from decodedSegment.records by decodeSegment, so any
// CHECKPOINT record found here is, by construction, valid — this is
// the "fall back to the previous valid checkpoint" behaviour: a
// corrupt checkpoint simply never becomes a candidate.
func findLastValidCheckpoint(segs []decodedSegment, logger *log.Logger) (segIdx, recIdx int) {
	for si := len(segs) - 1; si >= 0; si-- {
		recs := segs[si].records
		for ri := len(recs) - 1; ri >= 0; ri-- {
			if recs[ri].record.Kind == codec.KindCheckpoint {
				return si, ri
			}
		}
	}
	return -1, -1
}

type decodedRecord struct {
	record *codec.Record
}

type decodedSegment struct {
	ref              segment.SegmentRef
	records          []decodedRecord
	corruptedEntries uint64
}

// decodeSegment reads one segment file in full and decodes every
// record it can find, resynchronizing past any corrupt bytes: on a
// decode error it scans forward byte-by-byte for the next occurrence
// of the magic prefix that also yields a valid header checksum, and
// resumes from there. This is the torn-write / bit-flip recovery path.
func decodeSegment(ref segment.SegmentRef, logger *log.Logger) (decodedSegment, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return decodedSegment{}, fmt.Errorf("replay: read segment %s: %w", ref.Path, err)
	}

	ds := decodedSegment{ref: ref}
	offset := 0
	for offset < len(data) {
		rec, n, err := codec.Decode(data[offset:])
		if err == codec.ErrEndOfStream {
			break
		}
		if err != nil {
			resync := findNextMagic(data, offset+1)
			if resync < 0 {
				logger.Printf("%s: unrecoverable corruption at offset %d: %v", ref.Path, offset, err)
				ds.corruptedEntries++
				break
			}
			logger.Printf("%s: corruption at offset %d (%v), resynced at offset %d", ref.Path, offset, err, resync)
			ds.corruptedEntries++
			offset = resync
			continue
		}
		ds.records = append(ds.records, decodedRecord{record: rec})
		offset += n
	}
	return ds, nil
}

func findNextMagic(data []byte, from int) int {
	for {
		idx := bytes.Index(data[from:], codec.Magic[:])
		if idx < 0 {
			return -1
		}
		at := from + idx
		if at+codec.HeaderSize <= len(data) {
			if _, _, err := codec.Decode(data[at:]); err == nil {
				return at
			}
		}
		from = at + 1
	}
}
