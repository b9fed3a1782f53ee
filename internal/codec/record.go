package codec

// Record is the decoded, in-memory form of one WAL entry: a tagged
// union over the record kinds — a plain value per kind, discriminated
// by Header.Kind, never an inheritance hierarchy.
type Record struct {
	Sequence    uint64
	TimestampNs int64
	Kind        Kind

	OrderNew       *OrderNewPayload
	OrderUpdate    *OrderUpdatePayload
	OrderFill      *OrderFillPayload
	Checkpoint     *CheckpointPayload
	RotationMarker *RotationMarkerPayload
}

func (r *Record) rawPayload() []byte {
	switch r.Kind {
	case KindOrderNew:
		return r.OrderNew.encode()
	case KindOrderUpdate, KindOrderCancel:
		return r.OrderUpdate.encode()
	case KindOrderFill:
		return r.OrderFill.encode()
	case KindCheckpoint:
		return r.Checkpoint.encode()
	case KindRotationMarker:
		return RotationMarkerPayload{}.encode()
	default:
		return nil
	}
}

// NewOrderNewRecord constructs an ORDER_NEW record. Sequence and
// timestamp are assigned by the caller (the WAL Writer).
func NewOrderNewRecord(seq uint64, ts int64, p OrderNewPayload) *Record {
	return &Record{Sequence: seq, TimestampNs: ts, Kind: KindOrderNew, OrderNew: &p}
}

// NewOrderUpdateRecord constructs an ORDER_UPDATE record.
func NewOrderUpdateRecord(seq uint64, ts int64, p OrderUpdatePayload) *Record {
	return &Record{Sequence: seq, TimestampNs: ts, Kind: KindOrderUpdate, OrderUpdate: &p}
}

// NewOrderCancelRecord constructs an ORDER_CANCEL record — schema
// identical to ORDER_UPDATE, tagged with the dedicated kind byte.
func NewOrderCancelRecord(seq uint64, ts int64, p OrderUpdatePayload) *Record {
	return &Record{Sequence: seq, TimestampNs: ts, Kind: KindOrderCancel, OrderUpdate: &p}
}

// NewOrderFillRecord constructs an ORDER_FILL record.
func NewOrderFillRecord(seq uint64, ts int64, p OrderFillPayload) *Record {
	return &Record{Sequence: seq, TimestampNs: ts, Kind: KindOrderFill, OrderFill: &p}
}

// NewCheckpointRecord constructs a CHECKPOINT record.
func NewCheckpointRecord(seq uint64, ts int64, p CheckpointPayload) *Record {
	return &Record{Sequence: seq, TimestampNs: ts, Kind: KindCheckpoint, Checkpoint: &p}
}

// NewRotationMarkerRecord constructs a ROTATION_MARKER record.
func NewRotationMarkerRecord(seq uint64, ts int64) *Record {
	p := RotationMarkerPayload{}
	return &Record{Sequence: seq, TimestampNs: ts, Kind: KindRotationMarker, RotationMarker: &p}
}

// Encode frames a record into its full on-disk byte representation:
// 32-byte header, payload, 4-byte payload checksum.
func Encode(r *Record) ([]byte, error) {
	payload := r.rawPayload()
	if len(payload) > 1<<32-1 {
		return nil, ErrCorruptPayload
	}

	header := encodeHeader(Header{
		Version:       Version,
		Kind:          r.Kind,
		Sequence:      r.Sequence,
		TimestampNs:   r.TimestampNs,
		PayloadLength: uint32(len(payload)),
	})

	out := make([]byte, 0, len(header)+len(payload)+4)
	out = append(out, header...)
	out = append(out, payload...)

	var sumBuf [4]byte
	sum := payloadChecksum(r.Kind, r.Sequence, r.TimestampNs, payload)
	sumBuf[0] = byte(sum)
	sumBuf[1] = byte(sum >> 8)
	sumBuf[2] = byte(sum >> 16)
	sumBuf[3] = byte(sum >> 24)
	out = append(out, sumBuf[:]...)
	return out, nil
}

// Decode parses a single record from the front of buf, returning the
// parsed record and the number of bytes consumed. Fewer than
// HeaderSize bytes remaining yields ErrEndOfStream; a bad
// magic/version/header-checksum yields ErrCorruptHeader; insufficient
// payload bytes yields ErrTruncated; a bad payload checksum yields
// ErrCorruptPayload.
func Decode(buf []byte) (*Record, int, error) {
	if len(buf) < HeaderSize {
		return nil, 0, ErrEndOfStream
	}
	hdr, err := decodeHeader(buf[:HeaderSize])
	if err != nil {
		return nil, 0, err
	}

	need := HeaderSize + int(hdr.PayloadLength) + 4
	if len(buf) < need {
		return nil, 0, ErrTruncated
	}

	payload := buf[HeaderSize : HeaderSize+int(hdr.PayloadLength)]
	wantSum := uint32(buf[need-4]) | uint32(buf[need-3])<<8 | uint32(buf[need-2])<<16 | uint32(buf[need-1])<<24
	gotSum := payloadChecksum(hdr.Kind, hdr.Sequence, hdr.TimestampNs, payload)
	if wantSum != gotSum {
		return nil, 0, ErrCorruptPayload
	}

	rec := &Record{Sequence: hdr.Sequence, TimestampNs: hdr.TimestampNs, Kind: hdr.Kind}
	switch hdr.Kind {
	case KindOrderNew:
		p, derr := decodeOrderNew(payload)
		if derr != nil {
			return nil, 0, ErrCorruptPayload
		}
		rec.OrderNew = &p
	case KindOrderUpdate, KindOrderCancel:
		p, derr := decodeOrderUpdate(payload)
		if derr != nil {
			return nil, 0, ErrCorruptPayload
		}
		rec.OrderUpdate = &p
	case KindOrderFill:
		p, derr := decodeOrderFill(payload)
		if derr != nil {
			return nil, 0, ErrCorruptPayload
		}
		rec.OrderFill = &p
	case KindCheckpoint:
		p, derr := decodeCheckpoint(payload)
		if derr != nil {
			return nil, 0, ErrCorruptPayload
		}
		rec.Checkpoint = &p
	case KindRotationMarker:
		p, derr := decodeRotationMarker(payload)
		if derr != nil {
			return nil, 0, ErrCorruptPayload
		}
		rec.RotationMarker = &p
	default:
		return nil, 0, ErrCorruptPayload
	}

	return rec, need, nil
}
