package logstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/3leaps/pspace/pkg/job"
)

// Sentinel is the final log line the service emits once a job's output is
// complete.
const Sentinel = "PSEOF"

// DefaultMaxPages bounds a single paging pass.
const DefaultMaxPages = 10000

// Source is the subset of the remote API the controller needs.
type Source interface {
	Show(ctx context.Context, jobID string) (*job.Record, error)
	Logs(ctx context.Context, jobID string, lineStart int) ([]job.LogLine, error)
}

// Page is the result of one paging pass.
type Page struct {
	Lines []job.LogLine
	// Next is the offset to resume from.
	Next int
	// Capped is set when the pass stopped at the page cap rather than at an
	// empty page or the sentinel.
	Capped bool
}

// IsSentinel reports whether a log message is the end-of-stream marker.
func IsSentinel(message string) bool {
	return strings.TrimSpace(message) == Sentinel
}

// FetchAll pages through a job's log from start, requesting from an advancing
// offset until an empty page or a page ending in the sentinel. maxPages <= 0
// uses DefaultMaxPages.
func FetchAll(ctx context.Context, src Source, jobID string, start, maxPages int) (Page, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if start < 0 {
		start = 0
	}

	p := Page{Next: start}
	for pages := 0; ; pages++ {
		if pages >= maxPages {
			p.Capped = true
			return p, nil
		}
		if err := ctx.Err(); err != nil {
			return p, err
		}

		lines, err := src.Logs(ctx, jobID, p.Next)
		if err != nil {
			return p, fmt.Errorf("fetch logs for %s from line %d: %w", jobID, p.Next, err)
		}
		if len(lines) == 0 {
			return p, nil
		}

		p.Lines = append(p.Lines, lines...)
		p.Next += len(lines)
		if IsSentinel(lines[len(lines)-1].Message) {
			return p, nil
		}
	}
}

// Last returns the trailing n lines; n <= 0 returns all of them.
func Last(lines []job.LogLine, n int) []job.LogLine {
	if n <= 0 || n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}
