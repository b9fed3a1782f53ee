package replay

import "errors"

// ErrReplayGap is returned when the cumulative size of missing
// sequence numbers found during forward replay exceeds the caller's
// gap tolerance (REPLAY_GAP).
var ErrReplayGap = errors.New("replay: sequence gap exceeds tolerance")
