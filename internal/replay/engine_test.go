package replay

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zzzode/VeloZ/internal/codec"
	"github.com/Zzzode/VeloZ/internal/orderstore"
	"github.com/Zzzode/VeloZ/internal/segment"
	"github.com/Zzzode/VeloZ/internal/wal"
)

func TestRunOnEmptyDirStartsAtSequenceOne(t *testing.T) {
	dir := t.TempDir()
	orders := orderstore.New(nil)
	res, err := Run(dir, "wal", orders, 0, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.NextSequence)
}

func TestBasicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	orders := orderstore.New(nil)
	w, err := wal.New(wal.Config{Dir: dir}, orders, nil, nil)
	require.NoError(t, err)

	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-1", Symbol: "BTCUSDT", OriginalQty: 1.0})
	require.NoError(t, err)
	_, err = w.LogOrderUpdate(codec.OrderUpdatePayload{ClientOrderID: "O-1", ExchangeOrderID: "EX-1", Status: codec.StatusAcknowledged}, 2000)
	require.NoError(t, err)
	_, err = w.LogOrderFill(codec.OrderFillPayload{ClientOrderID: "O-1", Symbol: "BTCUSDT", Qty: 1.0, Price: 50000}, 5000)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	live, ok := orders.Get("O-1")
	require.True(t, ok)
	require.Equal(t, int64(5000), live.LastUpdateNs)

	fresh := orderstore.New(nil)
	res, err := Run(dir, "wal", fresh, 0, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(4), res.NextSequence)
	require.Equal(t, uint64(3), res.EntriesReplayed)
	require.Equal(t, uint64(0), res.CorruptedEntries)

	o, ok := fresh.Get("O-1")
	require.True(t, ok)
	require.Equal(t, codec.StatusFilled, o.Status)
	require.Equal(t, int64(5000), o.LastUpdateNs)
}

func TestCheckpointAndRotationScenario(t *testing.T) {
	dir := t.TempDir()
	orders := orderstore.New(nil)
	w, err := wal.New(wal.Config{Dir: dir, MaxSegmentBytes: 1}, orders, nil, nil)
	require.NoError(t, err)

	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-1", OriginalQty: 1.0})
	require.NoError(t, err)
	_, err = w.WriteCheckpoint()
	require.NoError(t, err)
	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-2", OriginalQty: 2.0})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	refs, err := segment.ListSegments(dir, "wal")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(refs), 2)

	fresh := orderstore.New(nil)
	res, err := Run(dir, "wal", fresh, 0, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), res.CorruptedEntries)

	_, ok := fresh.Get("O-1")
	require.True(t, ok)
	_, ok = fresh.Get("O-2")
	require.True(t, ok)
}

func TestMissingSegmentFileCreatesFatalGapAtDefaultTolerance(t *testing.T) {
	dir := t.TempDir()
	orders := orderstore.New(nil)
	w, err := wal.New(wal.Config{Dir: dir, MaxSegmentBytes: 1}, orders, nil, nil)
	require.NoError(t, err)

	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-1", OriginalQty: 1.0})
	require.NoError(t, err)
	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-2", OriginalQty: 1.0})
	require.NoError(t, err)
	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-3", OriginalQty: 1.0})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	refs, err := segment.ListSegments(dir, "wal")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(refs), 3)

	// Delete the whole middle segment file, simulating an operator or
	// filesystem losing a rotated segment outright.
	require.NoError(t, os.Remove(refs[1].Path))

	fresh := orderstore.New(nil)
	_, err = Run(dir, "wal", fresh, 0, nil)
	require.ErrorIs(t, err, ErrReplayGap)
}

func TestSequenceGapWithinToleranceDoesNotFail(t *testing.T) {
	dir := t.TempDir()
	orders := orderstore.New(nil)
	w, err := wal.New(wal.Config{Dir: dir, MaxSegmentBytes: 1}, orders, nil, nil)
	require.NoError(t, err)

	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-1", OriginalQty: 1.0})
	require.NoError(t, err)
	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-2", OriginalQty: 1.0})
	require.NoError(t, err)
	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-3", OriginalQty: 1.0})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	refs, err := segment.ListSegments(dir, "wal")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(refs), 3)

	require.NoError(t, os.Remove(refs[1].Path))

	fresh := orderstore.New(nil)
	res, err := Run(dir, "wal", fresh, 1, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.SequenceGaps)
}

func TestBitFlipInMiddleOfLogIsSkippedAndCountedAsCorrupted(t *testing.T) {
	dir := t.TempDir()
	orders := orderstore.New(nil)
	w, err := wal.New(wal.Config{Dir: dir}, orders, nil, nil)
	require.NoError(t, err)

	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-1", OriginalQty: 1.0})
	require.NoError(t, err)
	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-2", OriginalQty: 1.0})
	require.NoError(t, err)
	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-3", OriginalQty: 1.0})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	refs, err := segment.ListSegments(dir, "wal")
	require.NoError(t, err)
	require.Len(t, refs, 1)

	data, err := os.ReadFile(refs[0].Path)
	require.NoError(t, err)
	// Each record here is 56 bytes; flip a bit inside the second
	// record's header (its timestamp field).
	data[codec.HeaderSize+40] ^= 0x01
	require.NoError(t, os.WriteFile(refs[0].Path, data, 0o644))

	fresh := orderstore.New(nil)
	res, err := Run(dir, "wal", fresh, 0, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.CorruptedEntries)

	_, ok := fresh.Get("O-1")
	require.True(t, ok)
	_, ok = fresh.Get("O-3")
	require.True(t, ok)
}

func TestTornTailAtEndOfSegmentIsDroppedWithoutFailure(t *testing.T) {
	dir := t.TempDir()
	orders := orderstore.New(nil)
	w, err := wal.New(wal.Config{Dir: dir}, orders, nil, nil)
	require.NoError(t, err)

	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-1", OriginalQty: 1.0})
	require.NoError(t, err)
	_, err = w.LogOrderNew(codec.OrderNewPayload{ClientOrderID: "O-2", OriginalQty: 1.0})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	refs, err := segment.ListSegments(dir, "wal")
	require.NoError(t, err)
	require.Len(t, refs, 1)

	data, err := os.ReadFile(refs[0].Path)
	require.NoError(t, err)
	// Simulate a crash mid-append: the last record's header and payload
	// are present but the final bytes of its checksum never made it to
	// disk. No
	// rotation marker follows, and there is nothing after the torn
	// bytes to resync onto.
	require.NoError(t, os.WriteFile(refs[0].Path, data[:len(data)-3], 0o644))

	fresh := orderstore.New(nil)
	res, err := Run(dir, "wal", fresh, 0, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.CorruptedEntries)
	require.Equal(t, uint64(0), res.SequenceGaps)

	_, ok := fresh.Get("O-1")
	require.True(t, ok)
	_, ok = fresh.Get("O-2")
	require.False(t, ok)
}
