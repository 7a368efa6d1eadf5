package event

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// TTYSink renders events for a human at a terminal, colorizing each stage
// the way internal/msg colorizes its own leveled output.
type TTYSink struct {
	W io.Writer

	mu sync.Mutex
}

func NewTTYSink(w io.Writer) *TTYSink { return &TTYSink{W: w} }

func (s *TTYSink) RunStart(runID string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.W, "%s %d target(s) (run %s)\n", color.HiGreenString("building"), total, runID)
}

func (s *TTYSink) TargetLine(target string, stage Stage, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.W, "[%s] %s %s\n", target, colorizeStage(stage), text)
}

func (s *TTYSink) TargetFinished(target string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.W, "[%s] %s\n", target, colorizeOutcome(outcome))
}

func (s *TTYSink) RunFinished(success bool, counts Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		fmt.Fprintf(s.W, "%s %d succeeded, %d skipped\n", color.HiGreenString("done"), counts.Succeeded, counts.Skipped)
		return
	}
	fmt.Fprintf(s.W, "%s %d succeeded, %d failed, %d skipped\n", color.RedString("failed"), counts.Succeeded, counts.Failed, counts.Skipped)
}

func colorizeStage(s Stage) string {
	switch s {
	case Compile:
		return color.CyanString("compiling")
	case Link:
		return color.CyanString("linking")
	case Archive:
		return color.CyanString("archiving")
	case Skip:
		return color.YellowString("skip")
	case Ok:
		return color.HiGreenString("ok")
	case Error:
		return color.RedString("error")
	case Detail:
		return color.HiBlackString("detail")
	default:
		return s.String()
	}
}

func colorizeOutcome(o Outcome) string {
	switch o {
	case Succeeded:
		return color.HiGreenString("succeeded")
	case Failed:
		return color.RedString("failed")
	case Skipped:
		return color.YellowString("skipped")
	default:
		return o.String()
	}
}
