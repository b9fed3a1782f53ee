// Package codec frames, checksums, and parses the WAL's on-disk
// records. It knows nothing about segment files, sequencing, or the
// order-state table — just the byte layout of a single record and how
// to tell a valid one from a torn or corrupted one.
package codec
