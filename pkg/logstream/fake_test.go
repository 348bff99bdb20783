package logstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/3leaps/pspace/pkg/job"
)

// fakeSource scripts Show responses and serves logs with a per-call cap.
type fakeSource struct {
	mu sync.Mutex

	records []*job.Record
	showErr error
	shows   int

	logs     []string
	pageCap  int
	logCalls int
	starts   []int
	// onLogs runs after each logs call, e.g. to append more lines.
	onLogs func(call int)
}

func (f *fakeSource) Show(_ context.Context, _ string) (*job.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shows++
	if f.showErr != nil {
		return nil, f.showErr
	}
	if len(f.records) == 0 {
		return nil, fmt.Errorf("no scripted record")
	}
	rec := f.records[0]
	if len(f.records) > 1 {
		f.records = f.records[1:]
	}
	if rec == nil {
		return &job.Record{}, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeSource) Logs(_ context.Context, _ string, lineStart int) ([]job.LogLine, error) {
	f.mu.Lock()
	f.logCalls++
	call := f.logCalls
	f.starts = append(f.starts, lineStart)
	var out []job.LogLine
	for i := lineStart; i < len(f.logs); i++ {
		if f.pageCap > 0 && len(out) >= f.pageCap {
			break
		}
		out = append(out, job.LogLine{Line: i + 1, Message: f.logs[i]})
	}
	hook := f.onLogs
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return out, nil
}

func (f *fakeSource) appendLogs(messages ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, messages...)
}

// fakeClock advances only when slept on.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("line %d", i+1)
	}
	return out
}
