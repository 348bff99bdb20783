package job

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout is what remains of a service timestamp after the
// five-character fractional/zone suffix (".123Z") is removed.
const timestampLayout = "2006-01-02T15:04:05"

// ParseTimestamp parses a service timestamp such as "2019-04-22T18:03:05.123Z".
//
// The service always reports UTC. Values that do not fit the stripped layout are
// tried as RFC 3339 before giving up.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if len(raw) > 5 {
		if t, err := time.ParseInLocation(timestampLayout, raw[:len(raw)-5], time.UTC); err == nil {
			return t, nil
		}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// StartedAt returns the parsed start time, or nil when absent or unparseable.
func (r *Record) StartedAt() *time.Time {
	return optionalTime(r.DtStarted)
}

// FinishedAt returns the parsed finish time, or nil when absent or unparseable.
func (r *Record) FinishedAt() *time.Time {
	return optionalTime(r.DtFinished)
}

// Duration returns the elapsed run time. Running jobs are measured against now.
func (r *Record) Duration(now time.Time) (time.Duration, bool) {
	started := r.StartedAt()
	if started == nil {
		return 0, false
	}
	end := now
	if finished := r.FinishedAt(); finished != nil {
		end = *finished
	}
	return end.Sub(*started), true
}

func optionalTime(raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := ParseTimestamp(raw)
	if err != nil {
		return nil
	}
	return &t
}
