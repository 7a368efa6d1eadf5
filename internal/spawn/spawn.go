// Package spawn defines the raw process-spawn primitive the executor
// depends on. It is named out-of-scope by spec.md §1 ("the raw
// process-spawn primitive") — this package is the narrow interface plus one
// concrete implementation, not part of the engine's own logic.
package spawn

import (
	"bytes"
	"context"
	"io"
)

// Runner launches a command, streams its combined stdout+stderr to out, and
// waits for it to finish or for ctx to be cancelled. Implementations must
// forward cancellation to the child process itself (not merely stop
// waiting on it) — see spec.md's cancellation design note. A non-nil error
// means either the process could not be started (a SpawnError condition)
// or it exited non-zero.
type Runner interface {
	Run(ctx context.Context, argv []string, out io.Writer) error
}

// CombinedOutput runs argv and returns its stdout+stderr interleaved as a
// single buffer, for callers that want the text rather than a live stream
// (e.g. to attach to an error message).
func CombinedOutput(ctx context.Context, r Runner, argv []string) ([]byte, error) {
	var buf bytes.Buffer
	err := r.Run(ctx, argv, &buf)
	return buf.Bytes(), err
}
