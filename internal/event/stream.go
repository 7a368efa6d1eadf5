package event

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// StreamSink emits a line-oriented, machine-parseable protocol suitable for
// piping to another process: one line per event, no ANSI color, no
// interleaved partial lines. Format:
//
//	__RUN__\t<run-id>
//	__TOTAL__\t<n>
//	[TARGET:<name>]\t<stage>\t<text single-line, \n escaped as \\n>
//	[TARGET:<name>]\t__FINISHED__\t<outcome>
//	__FINISH__\t<success|failure>\t<succeeded>\t<failed>\t<skipped>
type StreamSink struct {
	W  io.Writer
	mu sync.Mutex
}

func NewStreamSink(w io.Writer) *StreamSink { return &StreamSink{W: w} }

func (s *StreamSink) RunStart(runID string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.W, "__RUN__\t%s\n__TOTAL__\t%d\n", runID, total)
}

func (s *StreamSink) TargetLine(target string, stage Stage, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.W, "[TARGET:%s]\t%s\t%s\n", target, stage, escapeLine(text))
}

func (s *StreamSink) TargetFinished(target string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.W, "[TARGET:%s]\t__FINISHED__\t%s\n", target, outcome)
}

func (s *StreamSink) RunFinished(success bool, counts Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := "success"
	if !success {
		status = "failure"
	}
	fmt.Fprintf(s.W, "__FINISH__\t%s\t%d\t%d\t%d\n", status, counts.Succeeded, counts.Failed, counts.Skipped)
}

func escapeLine(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
