package spawn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// ProcessRunner is the default Runner, backed by os/exec. Each child is put
// in its own process group so that cancellation can signal the whole group
// (a compiler driver like gcc/clang may itself fork helper processes).
type ProcessRunner struct{}

// Run starts argv[0] with argv[1:] as arguments, streaming combined output
// to out. If ctx is cancelled before the process exits, the process group
// is terminated and ctx.Err() is returned.
func (ProcessRunner) Run(ctx context.Context, argv []string, out io.Writer) error {
	if len(argv) == 0 {
		return errors.New("spawn: empty argument vector")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn %s: %w", argv[0], err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done // reap
		return ctx.Err()
	}
}
