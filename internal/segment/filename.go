package segment

import (
	"fmt"
	"strconv"
	"strings"
)

const fileSuffix = ".wal"

// filename encodes a segment's starting sequence number into its
// name: "<prefix>_<first_seq_hex_16>.wal", 16 hex digits, the natural
// hex encoding of the number zero-padded (a plain %016x).
func filename(prefix string, firstSeq uint64) string {
	return fmt.Sprintf("%s_%016x%s", prefix, firstSeq, fileSuffix)
}

// parseFilename extracts the first sequence number from a segment
// filename produced by this package, for the given prefix. It returns
// ok=false for anything that isn't shaped like one of our segments —
// callers use this to filter a directory listing down to WAL files.
func parseFilename(prefix, name string) (firstSeq uint64, ok bool) {
	want := prefix + "_"
	if !strings.HasPrefix(name, want) || !strings.HasSuffix(name, fileSuffix) {
		return 0, false
	}
	hexPart := strings.TrimSuffix(strings.TrimPrefix(name, want), fileSuffix)
	if len(hexPart) != 16 {
		return 0, false
	}
	v, err := strconv.ParseUint(hexPart, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func lockFilename(prefix string) string {
	return prefix + ".lock"
}
