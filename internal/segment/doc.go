// Package segment owns one directory of WAL segment files: it knows
// how to append bytes, fsync, rotate, enumerate segments in order, and
// guard the directory against a second concurrent writer. It knows
// nothing about record framing or sequencing — that is internal/codec
// and internal/wal's job.
package segment
