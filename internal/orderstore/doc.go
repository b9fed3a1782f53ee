// Package orderstore holds the in-memory mapping from client order id
// to live order state, and applies WAL events to it: read concurrency
// via an RWMutex, event application methods that are tolerant of
// replay's out-of-order and duplicated inputs.
package orderstore
