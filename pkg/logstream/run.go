package logstream

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/3leaps/pspace/pkg/job"
)

// Result summarizes a finished run.
type Result struct {
	JobID string
	// Record is the last job snapshot seen.
	Record *job.Record
	// TotalLines is the cumulative line count, suitable for ResumeOffset.
	TotalLines int
	Reason     Reason
}

// Run drives the controller to completion, sleeping on clock between steps
// and writing log messages to out. The status line shown while a job waits to
// start is rewritten in place.
func (c *Controller) Run(ctx context.Context, clock Clock, out io.Writer) (Result, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	sw := &statusWriter{out: out}
	defer sw.close()

	for {
		step, err := c.Advance(ctx, clock.Now())
		if err != nil {
			return c.result(), err
		}
		if step.Status != "" {
			sw.status(step.Status)
		}
		if err := sw.lines(step.Lines); err != nil {
			return c.result(), err
		}
		if step.Phase == Done {
			return c.result(), nil
		}
		if err := clock.Sleep(ctx, step.Wait); err != nil {
			return c.result(), err
		}
	}
}

func (c *Controller) result() Result {
	return Result{
		JobID:      c.jobID,
		Record:     c.record,
		TotalLines: c.offset,
		Reason:     c.reason,
	}
}

type statusWriter struct {
	out   io.Writer
	open  bool
	width int
}

func (w *statusWriter) status(s string) {
	pad := ""
	if w.width > len(s) {
		pad = strings.Repeat(" ", w.width-len(s))
	}
	_, _ = fmt.Fprintf(w.out, "\r%s%s", s, pad)
	w.open = true
	w.width = len(s)
}

func (w *statusWriter) lines(lines []job.LogLine) error {
	if len(lines) == 0 {
		return nil
	}
	w.close()
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Message)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w.out, b.String())
	return err
}

func (w *statusWriter) close() {
	if w.open {
		_, _ = io.WriteString(w.out, "\n")
		w.open = false
	}
}
