package wal

import "time"

// Config configures a Writer. Zero-value fields are filled with the
// defaults below by New: a permissive caller-facing struct plus a
// private defaulting step.
type Config struct {
	// Dir is the segment directory. Required.
	Dir string
	// Prefix names the segment files within Dir (see internal/segment).
	Prefix string
	// MaxSegmentBytes rotates onto a new segment once the current one
	// reaches this size. Defaults to segment.DefaultMaxSegmentBytes.
	MaxSegmentBytes int64
	// SyncOnWrite fsyncs after every single Append when true. When
	// false, callers are responsible for calling Sync (or relying on
	// CheckpointEveryInterval) at whatever cadence they can tolerate
	// losing.
	//
	// The durable-by-default posture lives in internal/config.Load,
	// which defaults VZWL_WAL_SYNC_ON_WRITE to true before building this
	// Config; withDefaults below cannot do the same because a bare bool
	// can't distinguish "unset" from "explicitly false". A Config built
	// directly (bypassing config.Load) gets SyncOnWrite: false unless
	// set explicitly.
	SyncOnWrite bool
	// CheckpointEveryRecords triggers an automatic checkpoint once this
	// many records have been written since the last one. Zero selects
	// the default of 100,000 records.
	CheckpointEveryRecords uint64
	// CheckpointEveryInterval triggers an automatic checkpoint once
	// this much time has elapsed since the last one (checked when a
	// record is written). Zero selects the default of 60 seconds.
	CheckpointEveryInterval time.Duration
	// StaleLockAfter is how old a dead-owner lock file must be before
	// a new Writer reclaims it. Defaults to segment.DefaultStaleLockAfter.
	StaleLockAfter time.Duration
}

const (
	defaultCheckpointEveryRecords  = 100000
	defaultCheckpointEveryInterval = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "wal"
	}
	if c.CheckpointEveryRecords == 0 {
		c.CheckpointEveryRecords = defaultCheckpointEveryRecords
	}
	if c.CheckpointEveryInterval == 0 {
		c.CheckpointEveryInterval = defaultCheckpointEveryInterval
	}
	return c
}
