package logstream

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/pspace/pkg/job"
)

var t0 = time.Date(2019, 4, 22, 18, 0, 0, 0, time.UTC)

func rec(state job.State) *job.Record {
	return &job.Record{ID: "j1", State: state}
}

func TestController_SnapshotPrintsTail(t *testing.T) {
	src := &fakeSource{records: []*job.Record{rec(job.StateRunning)}, logs: numbered(30), pageCap: 8}
	c := New(src, "j1", Options{TailLines: 5})
	var out bytes.Buffer

	res, err := c.Run(context.Background(), &fakeClock{now: t0}, &out)
	require.NoError(t, err)
	assert.Equal(t, ReasonSnapshot, res.Reason)
	assert.Equal(t, 30, res.TotalLines)
	assert.Equal(t, "line 26\nline 27\nline 28\nline 29\nline 30\n", out.String())
	assert.Equal(t, 1, src.shows)
}

func TestController_SnapshotResumesFromOffset(t *testing.T) {
	src := &fakeSource{records: []*job.Record{rec(job.StateStopped)}, logs: numbered(30)}
	start := ResumeOffset(28, true, "j1", "j1", 5)
	c := New(src, "j1", Options{TailLines: 5, LineStart: start})
	var out bytes.Buffer

	res, err := c.Run(context.Background(), &fakeClock{now: t0}, &out)
	require.NoError(t, err)
	assert.Equal(t, 23, src.starts[0])
	assert.Equal(t, 30, res.TotalLines)
	assert.Equal(t, "line 26\nline 27\nline 28\nline 29\nline 30\n", out.String())
}

func TestController_SnapshotNotStarted(t *testing.T) {
	src := &fakeSource{records: []*job.Record{rec(job.StatePending)}, logs: numbered(3)}
	c := New(src, "j1", Options{})
	var out bytes.Buffer

	res, err := c.Run(context.Background(), &fakeClock{now: t0}, &out)
	require.NoError(t, err)
	assert.Equal(t, ReasonNotStarted, res.Reason)
	assert.Equal(t, 0, src.logCalls)
	assert.Equal(t, "\rJob j1: Pending\n", out.String())
}

func TestController_SentinelEndsFollowRegardlessOfState(t *testing.T) {
	src := &fakeSource{records: []*job.Record{rec(job.StateRunning)}, logs: []string{"a", "b"}}
	src.onLogs = func(call int) {
		if call == 2 {
			src.appendLogs("c", Sentinel)
		}
	}
	clock := &fakeClock{now: t0}
	c := New(src, "j1", Options{Follow: true})
	var out bytes.Buffer

	res, err := c.Run(context.Background(), clock, &out)
	require.NoError(t, err)
	assert.Equal(t, ReasonSentinel, res.Reason)
	assert.Equal(t, job.StateRunning, res.Record.State)
	assert.Equal(t, 4, res.TotalLines)
	assert.Equal(t, "a\nb\nc\nPSEOF\n", out.String())
	assert.NotEmpty(t, clock.sleeps)
	for _, d := range clock.sleeps {
		assert.Equal(t, DefaultPollInterval, d)
	}
}

func TestController_TimeoutForLongFinishedJob(t *testing.T) {
	stopped := &job.Record{ID: "j1", State: job.StateStopped, DtFinished: "2019-04-22T18:00:00.000Z"}
	src := &fakeSource{records: []*job.Record{stopped}, logs: []string{"a", "b"}}
	c := New(src, "j1", Options{Follow: true})

	step, err := c.Advance(context.Background(), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Done, step.Phase)
	assert.Equal(t, ReasonTimeout, c.Reason())
	assert.Len(t, step.Lines, 2)
}

func TestController_DrainsUntilTimeout(t *testing.T) {
	stopped := &job.Record{ID: "j1", State: job.StateStopped, DtFinished: "2019-04-22T18:00:00.000Z"}
	src := &fakeSource{records: []*job.Record{stopped}, logs: []string{"a"}}
	clock := &fakeClock{now: t0.Add(5 * time.Second)}
	c := New(src, "j1", Options{Follow: true})

	res, err := c.Run(context.Background(), clock, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.True(t, clock.now.Sub(t0) > DefaultSentinelTimeout)
	// Draining does not look the job up again.
	assert.Equal(t, 1, src.shows)
}

func TestController_DrainWithoutFinishTimeUsesFirstObservation(t *testing.T) {
	src := &fakeSource{records: []*job.Record{rec(job.StateRunning), rec(job.StateFailed)}}
	c := New(src, "j1", Options{Follow: true})
	ctx := context.Background()

	_, err := c.Advance(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, Streaming, c.Phase())

	_, err = c.Advance(ctx, t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, Draining, c.Phase())

	_, err = c.Advance(ctx, t0.Add(25*time.Second))
	require.NoError(t, err)
	assert.Equal(t, Draining, c.Phase())

	_, err = c.Advance(ctx, t0.Add(26*time.Second))
	require.NoError(t, err)
	assert.Equal(t, Done, c.Phase())
	assert.Equal(t, ReasonTimeout, c.Reason())
}

func TestController_SentinelDuringDrain(t *testing.T) {
	src := &fakeSource{records: []*job.Record{rec(job.StateStopped)}, logs: []string{"a"}}
	c := New(src, "j1", Options{Follow: true})
	ctx := context.Background()

	_, err := c.Advance(ctx, t0)
	require.NoError(t, err)
	require.Equal(t, Draining, c.Phase())

	src.appendLogs(Sentinel)
	step, err := c.Advance(ctx, t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, Done, step.Phase)
	assert.Equal(t, ReasonSentinel, c.Reason())
	require.Len(t, step.Lines, 1)
	assert.Equal(t, 2, c.Offset())
}

func TestController_WaitsForStartWithoutFetchingLogs(t *testing.T) {
	src := &fakeSource{
		records: []*job.Record{
			rec(job.StatePending),
			rec(job.StatePending),
			rec(job.StateProvisioned),
			rec(job.StateRunning),
		},
		logs: []string{"hello", Sentinel},
	}
	src.onLogs = func(int) {}
	c := New(src, "j1", Options{Follow: true})
	ctx := context.Background()

	step, err := c.Advance(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, WaitingToStart, step.Phase)
	assert.Equal(t, "Job j1: Pending", step.Status)

	step, err = c.Advance(ctx, t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.Empty(t, step.Status)

	step, err = c.Advance(ctx, t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "Job j1: Provisioned", step.Status)
	assert.Equal(t, 0, src.logCalls)

	step, err = c.Advance(ctx, t0.Add(15*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "Job j1: Running", step.Status)
	assert.Equal(t, Done, step.Phase)
	assert.Equal(t, ReasonSentinel, c.Reason())
	assert.Len(t, step.Lines, 2)
}

func TestController_StatusLineRewrittenInPlace(t *testing.T) {
	src := &fakeSource{
		records: []*job.Record{rec(job.StateProvisioned), rec(job.StateRunning)},
		logs:    []string{"x", Sentinel},
	}
	c := New(src, "j1", Options{Follow: true})
	var out bytes.Buffer

	_, err := c.Run(context.Background(), &fakeClock{now: t0}, &out)
	require.NoError(t, err)
	assert.Equal(t, "\rJob j1: Provisioned\rJob j1: Running    \nx\nPSEOF\n", out.String())
}

func TestController_ShowErrorShortCircuits(t *testing.T) {
	remote := errors.New("status 404: Job not found")
	src := &fakeSource{showErr: remote, logs: numbered(3)}
	c := New(src, "j1", Options{Follow: true})
	var out bytes.Buffer

	res, err := c.Run(context.Background(), &fakeClock{now: t0}, &out)
	require.ErrorIs(t, err, remote)
	assert.Equal(t, 0, src.logCalls)
	assert.Nil(t, res.Record)
	assert.Empty(t, out.String())
}

func TestController_MalformedRecordBoundedRetry(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		src := &fakeSource{
			records: []*job.Record{rec(job.StateRunning), nil, nil, nil, rec(job.StateRunning)},
			logs:    []string{"a"},
		}
		src.onLogs = func(call int) {
			if call == 2 {
				src.appendLogs(Sentinel)
			}
		}
		c := New(src, "j1", Options{Follow: true})

		res, err := c.Run(context.Background(), &fakeClock{now: t0}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, ReasonSentinel, res.Reason)
	})

	t.Run("aborts", func(t *testing.T) {
		src := &fakeSource{records: []*job.Record{rec(job.StateRunning), nil}, logs: []string{"a"}}
		c := New(src, "j1", Options{Follow: true})

		_, err := c.Run(context.Background(), &fakeClock{now: t0}, &bytes.Buffer{})
		require.ErrorIs(t, err, ErrMalformedRecord)
		assert.Equal(t, 1+DefaultMaxMalformed+1, src.shows)
	})
}

func TestController_CancelledContext(t *testing.T) {
	src := &fakeSource{records: []*job.Record{rec(job.StateRunning)}, logs: []string{"a"}}
	c := New(src, "j1", Options{Follow: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	res, err := c.Run(ctx, &fakeClock{now: t0}, &out)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, strings.TrimSpace(out.String()))
	assert.Equal(t, Connecting, c.Phase())
	assert.Equal(t, 0, res.TotalLines)
}

func TestSystemClock_SleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SystemClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "waiting", WaitingToStart.String())
	assert.Equal(t, "done", Done.String())
}
