package wal

// Stats is a point-in-time snapshot of the Writer's counters.
// EntriesReplayed and CorruptedEntries are populated from the Replay
// Engine's Result via SetReplayStats before the Writer starts
// accepting new writes. OverfillAlerts counts orders whose cumulative fills exceed
// their original quantity, applied as ground truth rather than
// rejected.
type Stats struct {
	EntriesWritten   uint64
	BytesWritten     uint64
	Checkpoints      uint64
	CurrentSequence  uint64
	EntriesReplayed  uint64
	CorruptedEntries uint64
	OverfillAlerts   uint64
}
