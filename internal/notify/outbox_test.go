package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Zzzode/VeloZ/internal/codec"
)

func TestEnqueueThenMarkSentThenAcked(t *testing.T) {
	o, err := Open(t.TempDir())
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, o.Enqueue(1, codec.KindOrderNew, []byte("payload")))

	e, ok, err := o.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StateNew, e.State)
	require.NotEmpty(t, e.IdemKey)

	require.NoError(t, o.MarkSent(1, 1))
	e, _, _ = o.Get(1)
	require.Equal(t, StateSent, e.State)
	require.Equal(t, uint32(1), e.Retries)

	require.NoError(t, o.MarkAcked(1))
	e, _, _ = o.Get(1)
	require.Equal(t, StateAcked, e.State)
}

func TestScanByStateOnlyReturnsMatching(t *testing.T) {
	o, err := Open(t.TempDir())
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, o.Enqueue(1, codec.KindOrderNew, nil))
	require.NoError(t, o.Enqueue(2, codec.KindOrderFill, nil))
	require.NoError(t, o.MarkSent(2, 0))

	var newSeqs []uint64
	require.NoError(t, o.ScanByState(StateNew, func(e Entry) error {
		newSeqs = append(newSeqs, e.Sequence)
		return nil
	}))
	require.Equal(t, []uint64{1}, newSeqs)
}

func TestDeleteRemovesEntry(t *testing.T) {
	o, err := Open(t.TempDir())
	require.NoError(t, err)
	defer o.Close()

	require.NoError(t, o.Enqueue(1, codec.KindOrderNew, nil))
	require.NoError(t, o.Delete(1))

	_, ok, err := o.Get(1)
	require.NoError(t, err)
	require.False(t, ok)
}
