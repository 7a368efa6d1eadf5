// Package msg provides leveled, colorized console output shared by the CLI
// and the event sinks.
package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Quiet suppresses Info output when set. Verbose additionally enables
// Detail, used for per-target error summaries and informational hints.
var (
	Quiet   bool
	Verbose bool
)

func Error(format string, a ...any) {
	fmt.Fprint(os.Stderr, color.HiRedString("error"))
	fmt.Fprint(os.Stderr, ": ")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprint(os.Stderr, "\n")
}

func Warn(format string, a ...any) {
	fmt.Fprint(os.Stderr, color.YellowString("warn"))
	fmt.Fprint(os.Stderr, ": ")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprint(os.Stderr, "\n")
}

func Fatal(format string, a ...any) {
	fmt.Fprint(os.Stderr, color.RedString("fatal"))
	fmt.Fprint(os.Stderr, ": ")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprint(os.Stderr, "\n")
	os.Exit(1)
}

func Info(format string, a ...any) {
	if Quiet {
		return
	}
	fmt.Print(color.HiGreenString("info"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

// Detail prints a verbose-only message, such as a per-target error summary.
func Detail(format string, a ...any) {
	if !Verbose {
		return
	}
	fmt.Print(color.HiBlackString(fmt.Sprintf(format, a...)))
	fmt.Print("\n")
}

// IndentWriter prefixes every line written to it with Prefix. Used to indent
// the streamed progress output of git clones and pulls.
type IndentWriter struct {
	Prefix    string
	W         io.Writer
	didPrefix bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if !w.didPrefix {
			w.W.Write([]byte(w.Prefix))
			w.didPrefix = true
		}
		w.W.Write([]byte{c})
		if c == '\n' || c == '\r' {
			w.didPrefix = false
		}
	}
	return len(p), nil
}
