// Package wal is the Write-Ahead Log core: the single entry point
// order-management code calls to durably record an order event before
// it is considered to have happened. It owns sequence assignment,
// record framing (internal/codec), segment storage (internal/segment),
// and the in-memory Order Store (internal/orderstore) as one atomic
// unit of work per call.
package wal
