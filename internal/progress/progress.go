package progress

import (
	"fmt"
	"io"
	"time"
)

// stage order for the CLI display
var stageNumbers = map[string]int{
	"validate":   1,
	"normalize":  2,
	"transcribe": 3,
	"summarize":  4,
}

const totalStages = 4

// Reporter handles CLI progress output
type Reporter struct {
	out       io.Writer
	startTime time.Time
	verbose   bool
}

// NewReporter creates a new progress reporter
func NewReporter(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:       out,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// Stage announces the beginning of a processing stage
func (r *Reporter) Stage(name, description string) {
	fmt.Fprintf(r.out, "[%d/%d] %s\n", stageNumbers[name], totalStages, description)
}

// Info shows a sub-progress message within a stage
func (r *Reporter) Info(format string, args ...any) {
	if r.verbose {
		fmt.Fprintf(r.out, "       %s\n", fmt.Sprintf(format, args...))
	}
}

// Done announces successful completion
func (r *Reporter) Done(outputPath string) {
	elapsed := time.Since(r.startTime)
	fmt.Fprintln(r.out, "Done! MIDI file written.")
	if outputPath != "" {
		fmt.Fprintf(r.out, "Output saved to: %s\n", outputPath)
	}
	fmt.Fprintf(r.out, "Completed in %.1f seconds\n", elapsed.Seconds())
}

// Error announces an error
func (r *Reporter) Error(err error) {
	fmt.Fprintf(r.out, "Error: %s\n", err)
}

// Warning announces a non-fatal warning
func (r *Reporter) Warning(format string, args ...any) {
	fmt.Fprintf(r.out, "Warning: %s\n", fmt.Sprintf(format, args...))
}
