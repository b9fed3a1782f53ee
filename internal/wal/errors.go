package wal

import "errors"

// ErrIO is returned by New when the segment directory cannot be opened
// (WAL_IO). A failed append, sync, or rotation does not return ErrIO:
// it seals the Writer, and the failing call itself returns ErrSealed.
var ErrIO = errors.New("wal: io error")

// ErrSealed is returned by any write call once the Writer has entered
// the Sealed state (WAL_SEALED) — an unrecoverable error has occurred
// and no further records may be appended.
var ErrSealed = errors.New("wal: sealed, no further writes accepted")

// ErrLocked is returned by New when another live process already owns
// the segment directory (WAL_LOCKED).
var ErrLocked = errors.New("wal: directory locked by another writer")

// ErrInvalidArgument is returned for calls with out-of-contract
// arguments, e.g. an empty client order ID.
var ErrInvalidArgument = errors.New("wal: invalid argument")
