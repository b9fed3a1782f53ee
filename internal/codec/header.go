package codec

import (
	"encoding/binary"
	"hash/crc32"
)

// Kind discriminates the tagged union of WAL record payloads. Values
// 5 and 6 were added after the original four and deliberately continue
// the numbering rather than collide with it.
type Kind uint8

const (
	KindOrderNew       Kind = 1
	KindOrderUpdate    Kind = 2
	KindOrderFill      Kind = 3
	KindCheckpoint     Kind = 4
	KindOrderCancel    Kind = 5
	KindRotationMarker Kind = 6
)

func (k Kind) String() string {
	switch k {
	case KindOrderNew:
		return "ORDER_NEW"
	case KindOrderUpdate:
		return "ORDER_UPDATE"
	case KindOrderFill:
		return "ORDER_FILL"
	case KindCheckpoint:
		return "CHECKPOINT"
	case KindOrderCancel:
		return "ORDER_CANCEL"
	case KindRotationMarker:
		return "ROTATION_MARKER"
	default:
		return "UNKNOWN"
	}
}

// Version is the only payload schema this codec implements. A header
// carrying any other version byte fails to parse with ErrCorruptHeader.
const Version uint8 = 1

// Magic is the fixed 4-byte prefix of every record header, "VZWL" in
// ASCII.
var Magic = [4]byte{'V', 'Z', 'W', 'L'}

// HeaderSize is the fixed on-disk size of a record header in bytes.
const HeaderSize = 32

// crcTable is CRC32C (Castagnoli).
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Header is the fixed 32-byte prefix of every on-disk record.
type Header struct {
	Version        uint8
	Kind           Kind
	Sequence       uint64
	TimestampNs    int64
	PayloadLength  uint32
	HeaderChecksum uint32
}

// encodeHeader writes the 32-byte header, including its own checksum,
// computed over bytes [0,28).
func encodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic[:])
	buf[4] = h.Version
	buf[5] = byte(h.Kind)
	// buf[6:8] reserved, left zero
	binary.LittleEndian.PutUint64(buf[8:16], h.Sequence)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.TimestampNs))
	binary.LittleEndian.PutUint32(buf[24:28], h.PayloadLength)
	binary.LittleEndian.PutUint32(buf[28:32], crc32.Checksum(buf[0:28], crcTable))
	return buf
}

// decodeHeader parses and verifies a 32-byte header. buf must be at
// least HeaderSize bytes; callers check length before calling this.
func decodeHeader(buf []byte) (Header, error) {
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return Header{}, ErrCorruptHeader
	}
	version := buf[4]
	if version != Version {
		return Header{}, ErrCorruptHeader
	}
	wantChecksum := binary.LittleEndian.Uint32(buf[28:32])
	gotChecksum := crc32.Checksum(buf[0:28], crcTable)
	if wantChecksum != gotChecksum {
		return Header{}, ErrCorruptHeader
	}
	return Header{
		Version:       version,
		Kind:          Kind(buf[5]),
		Sequence:      binary.LittleEndian.Uint64(buf[8:16]),
		TimestampNs:   int64(binary.LittleEndian.Uint64(buf[16:24])),
		PayloadLength: binary.LittleEndian.Uint32(buf[24:28]),
	}, nil
}

// payloadChecksum computes the CRC32C over kind‖sequence‖timestamp‖payload.
func payloadChecksum(kind Kind, seq uint64, ts int64, payload []byte) uint32 {
	buf := make([]byte, 17+len(payload))
	buf[0] = byte(kind)
	binary.LittleEndian.PutUint64(buf[1:9], seq)
	binary.LittleEndian.PutUint64(buf[9:17], uint64(ts))
	copy(buf[17:], payload)
	return crc32.Checksum(buf, crcTable)
}
