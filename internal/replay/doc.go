// Package replay rebuilds the Order Store from a segment directory at
// startup: find the newest valid checkpoint, fall back to the one
// before it if the newest is corrupt, then replay forward from there,
// resynchronizing past any corrupt bytes it finds along the way.
package replay
