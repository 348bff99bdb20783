// Package logstream prints a job's log either as a one-off snapshot or by
// following it until the output is conclusively finished.
//
// The controller is a small state machine:
//
//	Connecting -> WaitingToStart -> Streaming -> Draining -> Done
//
// Connecting looks the job up once. WaitingToStart polls state only, because
// the log endpoint is not meaningful before the job runs. Streaming polls state
// and new lines. Draining keeps fetching after the job reached a terminal state,
// since the sentinel can lag completion. Done is reached on the sentinel or when
// the drain window runs out.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/pspace/pkg/job"
)

// Defaults for follow mode.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultSentinelTimeout = 20 * time.Second
	DefaultMaxMalformed    = 3
)

// ErrMalformedRecord is returned when the job lookup keeps answering without a
// state.
var ErrMalformedRecord = errors.New("job record has no state")

// Phase is the controller's position in the stream lifecycle.
type Phase int

const (
	Connecting Phase = iota
	WaitingToStart
	Streaming
	Draining
	Done
)

func (p Phase) String() string {
	switch p {
	case Connecting:
		return "connecting"
	case WaitingToStart:
		return "waiting"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Reason records why the controller reached Done.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonSnapshot   Reason = "snapshot"
	ReasonNotStarted Reason = "not-started"
	ReasonSentinel   Reason = "sentinel"
	ReasonTimeout    Reason = "timeout"
)

// Options configures a Controller.
type Options struct {
	// Follow keeps polling until the stream is finished.
	Follow bool
	// TailLines limits the initial output to the last N lines; 0 prints all.
	TailLines int
	// LineStart is the offset of the first fetch (see ResumeOffset).
	LineStart int

	PollInterval    time.Duration
	SentinelTimeout time.Duration
	MaxMalformed    int
	MaxPages        int

	Logger *zap.Logger
}

// Step is the outcome of one Advance call.
type Step struct {
	Phase Phase
	// Lines are new log lines, in order.
	Lines []job.LogLine
	// Status is set when the job state changed while waiting to start.
	Status string
	// Wait is how long to sleep before the next Advance.
	Wait time.Duration
}

// Controller streams one job's log. It is not safe for concurrent use.
type Controller struct {
	src   Source
	jobID string
	opts  Options
	log   *zap.Logger

	phase     Phase
	reason    Reason
	offset    int
	lastMsg   string
	record    *job.Record
	lastState job.State
	malformed int
	// drainFrom anchors the sentinel timeout.
	drainFrom time.Time
}

// New creates a controller for jobID.
func New(src Source, jobID string, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.SentinelTimeout <= 0 {
		opts.SentinelTimeout = DefaultSentinelTimeout
	}
	if opts.MaxMalformed < 0 {
		opts.MaxMalformed = 0
	} else if opts.MaxMalformed == 0 {
		opts.MaxMalformed = DefaultMaxMalformed
	}
	if opts.LineStart < 0 {
		opts.LineStart = 0
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		src:    src,
		jobID:  jobID,
		opts:   opts,
		log:    log.With(zap.String("job_id", jobID)),
		offset: opts.LineStart,
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase { return c.phase }

// Reason returns why the controller finished, or ReasonNone.
func (c *Controller) Reason() Reason { return c.reason }

// Offset is the cumulative number of log lines known for the job: the next
// fetch starts here.
func (c *Controller) Offset() int { return c.offset }

// Record is the last job snapshot seen, or nil before the first lookup.
func (c *Controller) Record() *job.Record { return c.record }

// Advance performs one step at time now. Errors leave the controller in its
// current phase; the caller is expected to abort.
func (c *Controller) Advance(ctx context.Context, now time.Time) (Step, error) {
	switch c.phase {
	case Connecting:
		return c.connect(ctx, now)
	case WaitingToStart:
		return c.waitForStart(ctx, now)
	case Streaming:
		return c.stream(ctx, now)
	case Draining:
		return c.drain(ctx, now)
	default:
		return Step{Phase: Done}, nil
	}
}

func (c *Controller) connect(ctx context.Context, now time.Time) (Step, error) {
	rec, ok, err := c.poll(ctx)
	if err != nil {
		return Step{Phase: c.phase}, err
	}
	if !ok {
		return Step{Phase: c.phase, Wait: c.opts.PollInterval}, nil
	}
	c.lastState = rec.State

	if job.IsNotStarted(rec.State) {
		step := Step{Status: c.statusLine(rec.State)}
		if !c.opts.Follow {
			c.finish(ReasonNotStarted)
			step.Phase = c.phase
			return step, nil
		}
		c.phase = WaitingToStart
		step.Phase = c.phase
		step.Wait = c.opts.PollInterval
		return step, nil
	}

	page, err := c.fetch(ctx)
	if err != nil {
		return Step{Phase: c.phase}, err
	}
	step := Step{Lines: Last(page.Lines, c.opts.TailLines)}

	if !c.opts.Follow {
		c.finish(ReasonSnapshot)
		step.Phase = c.phase
		return step, nil
	}

	c.afterFetch(rec, now)
	step.Phase = c.phase
	step.Wait = c.opts.PollInterval
	return step, nil
}

func (c *Controller) waitForStart(ctx context.Context, now time.Time) (Step, error) {
	rec, ok, err := c.poll(ctx)
	if err != nil {
		return Step{Phase: c.phase}, err
	}
	if !ok {
		return Step{Phase: c.phase, Wait: c.opts.PollInterval}, nil
	}

	var step Step
	if rec.State != c.lastState {
		step.Status = c.statusLine(rec.State)
		c.lastState = rec.State
	}
	if job.IsNotStarted(rec.State) {
		step.Phase = c.phase
		step.Wait = c.opts.PollInterval
		return step, nil
	}

	c.log.Debug("job started", zap.String("state", string(rec.State)))
	page, err := c.fetch(ctx)
	if err != nil {
		return Step{Phase: c.phase}, err
	}
	step.Lines = page.Lines
	c.afterFetch(rec, now)
	step.Phase = c.phase
	step.Wait = c.opts.PollInterval
	return step, nil
}

func (c *Controller) stream(ctx context.Context, now time.Time) (Step, error) {
	rec, ok, err := c.poll(ctx)
	if err != nil {
		return Step{Phase: c.phase}, err
	}
	if !ok {
		return Step{Phase: c.phase, Wait: c.opts.PollInterval}, nil
	}
	c.lastState = rec.State

	page, err := c.fetch(ctx)
	if err != nil {
		return Step{Phase: c.phase}, err
	}
	c.afterFetch(rec, now)
	return Step{Phase: c.phase, Lines: page.Lines, Wait: c.opts.PollInterval}, nil
}

func (c *Controller) drain(ctx context.Context, now time.Time) (Step, error) {
	page, err := c.fetch(ctx)
	if err != nil {
		return Step{Phase: c.phase}, err
	}
	c.afterFetch(c.record, now)
	return Step{Phase: c.phase, Lines: page.Lines, Wait: c.opts.PollInterval}, nil
}

// poll looks the job up. ok is false for a malformed record that is still
// within the retry budget.
func (c *Controller) poll(ctx context.Context) (*job.Record, bool, error) {
	rec, err := c.src.Show(ctx, c.jobID)
	if err != nil {
		return nil, false, err
	}
	if rec == nil || rec.State == "" {
		c.malformed++
		if c.malformed > c.opts.MaxMalformed {
			return nil, false, fmt.Errorf("%w: job %s after %d attempts", ErrMalformedRecord, c.jobID, c.malformed)
		}
		c.log.Warn("Job lookup returned no state, retrying",
			zap.Int("attempt", c.malformed),
			zap.Int("max_attempts", c.opts.MaxMalformed))
		return nil, false, nil
	}
	c.malformed = 0
	c.record = rec
	return rec, true, nil
}

func (c *Controller) fetch(ctx context.Context) (Page, error) {
	page, err := FetchAll(ctx, c.src, c.jobID, c.offset, c.opts.MaxPages)
	if err != nil {
		return page, err
	}
	c.offset = page.Next
	if n := len(page.Lines); n > 0 {
		c.lastMsg = page.Lines[n-1].Message
	}
	if page.Capped {
		c.log.Warn("Log paging stopped at page cap", zap.Int("offset", c.offset))
	}
	return page, nil
}

// afterFetch applies the termination rules once new lines have been read.
func (c *Controller) afterFetch(rec *job.Record, now time.Time) {
	if IsSentinel(c.lastMsg) {
		c.finish(ReasonSentinel)
		return
	}
	if rec == nil || !job.IsDone(rec.State) {
		c.phase = Streaming
		return
	}

	if c.phase != Draining {
		c.drainFrom = now
		if finished := rec.FinishedAt(); finished != nil {
			c.drainFrom = *finished
		}
		c.phase = Draining
		c.log.Debug("job finished, waiting for end of log",
			zap.String("state", string(rec.State)),
			zap.Time("drain_from", c.drainFrom))
	}
	if now.Sub(c.drainFrom) > c.opts.SentinelTimeout {
		c.log.Debug("end-of-log marker not seen before timeout",
			zap.Duration("timeout", c.opts.SentinelTimeout))
		c.finish(ReasonTimeout)
	}
}

func (c *Controller) finish(r Reason) {
	c.phase = Done
	c.reason = r
}

func (c *Controller) statusLine(state job.State) string {
	return fmt.Sprintf("Job %s: %s", c.jobID, state)
}
