package segment

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesFirstSegment(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "wal", 1, Options{})
	require.NoError(t, err)
	defer s.Close()

	refs, err := s.IterSegments()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, uint64(1), refs[0].FirstSeq)
}

func TestAppendAndSize(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "wal", 1, Options{})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append([]byte("hello"), 1))
	require.NoError(t, s.Append([]byte("world!"), 2))
	require.Equal(t, int64(11), s.Size())
	require.NoError(t, s.Sync())
}

func TestRotateStartsNewSegment(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "wal", 1, Options{})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append([]byte("abc"), 1))
	require.NoError(t, s.Rotate(2))
	require.Equal(t, int64(0), s.Size())

	refs, err := s.IterSegments()
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, uint64(1), refs[0].FirstSeq)
	require.Equal(t, uint64(2), refs[1].FirstSeq)
}

func TestShouldRotate(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "wal", 1, Options{MaxSegmentBytes: 4})
	require.NoError(t, err)
	defer s.Close()

	require.False(t, s.ShouldRotate())
	require.NoError(t, s.Append([]byte("abcdef"), 1))
	require.True(t, s.ShouldRotate())
}

func TestReopenPicksUpNewestSegment(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "wal", 1, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Append([]byte("abc"), 1))
	require.NoError(t, s.Rotate(2))
	require.NoError(t, s.Append([]byte("de"), 2))
	require.NoError(t, s.Close())

	s2, err := Open(dir, "wal", 1, Options{})
	require.NoError(t, err)
	defer s2.Close()
	require.Equal(t, int64(2), s2.Size())
}

func TestReopenAppendsAfterExistingRecordsInsteadOfOverwriting(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "wal", 1, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Append([]byte("hello"), 1))
	require.NoError(t, s.Close())

	s2, err := Open(dir, "wal", 1, Options{})
	require.NoError(t, err)
	require.Equal(t, int64(5), s2.Size())
	require.NoError(t, s2.Append([]byte("world!"), 2))
	require.NoError(t, s2.Close())

	refs, err := ListSegments(dir, "wal")
	require.NoError(t, err)
	require.Len(t, refs, 1)

	data, err := os.ReadFile(refs[0].Path)
	require.NoError(t, err)
	require.Equal(t, "helloworld!", string(data))
}

func TestSecondOpenFailsWhileLockHeld(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "wal", 1, Options{})
	require.NoError(t, err)
	defer s.Close()

	_, err = Open(dir, "wal", 1, Options{})
	require.ErrorIs(t, err, ErrLocked)
}

func TestStaleLockIsReclaimed(t *testing.T) {
	dir := t.TempDir()

	lockPath := dir + "/wal.lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("999999999"), 0o644))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	s, err := Open(dir, "wal", 1, Options{StaleLockAfter: time.Millisecond})
	require.NoError(t, err)
	defer s.Close()
}

func TestDeleteSegmentRemovesFileAndIndexEntry(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "wal", 1, Options{})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append([]byte("abc"), 1))
	require.NoError(t, s.Rotate(2))
	require.NoError(t, s.DeleteSegment(1))

	refs, err := s.IterSegments()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, uint64(2), refs[0].FirstSeq)

	_, ok, err := s.index.Get(1)
	require.NoError(t, err)
	require.False(t, ok)
}
