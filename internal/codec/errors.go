package codec

import "errors"

// Decode failure kinds. These are not surfaced to WAL Writer callers —
// the Replay Engine recovers from them by skipping and resyncing.
var (
	// ErrEndOfStream means fewer than HeaderSize bytes remain; the
	// caller has reached the end of whatever buffer it is decoding.
	ErrEndOfStream = errors.New("codec: end of stream")

	// ErrCorruptHeader means the magic, version, or header checksum
	// did not verify.
	ErrCorruptHeader = errors.New("codec: corrupt header")

	// ErrTruncated means the header parsed but fewer than
	// payload_length+4 bytes remain — a torn tail write.
	ErrTruncated = errors.New("codec: truncated record")

	// ErrCorruptPayload means the payload checksum did not verify, or
	// the kind byte does not map to a known payload schema.
	ErrCorruptPayload = errors.New("codec: corrupt payload")
)
