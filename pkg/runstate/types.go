package runstate

import (
	"encoding/json"
	"math"

	"github.com/3leaps/pspace/pkg/job"
)

// Well-known pspace_info keys.
const (
	KeyLastJobID     = "last_job_id"
	KeyTotalLogLines = "total_log_lines"
)

// State is the persisted record of the most recently operated-on job.
//
// NOTE: the section names are part of the on-disk contract.
type State struct {
	JobInfo    *job.Record    `json:"job_info,omitempty"`
	PspaceInfo map[string]any `json:"pspace_info,omitempty"`
}

// JobID returns job_info.id, if present.
func (s *State) JobID() (string, bool) {
	if s == nil || s.JobInfo == nil || s.JobInfo.ID == "" {
		return "", false
	}
	return s.JobInfo.ID, true
}

// LastJobID returns pspace_info.last_job_id, if present.
func (s *State) LastJobID() (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.PspaceInfo[KeyLastJobID].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// TotalLogLines returns pspace_info.total_log_lines, if present.
func (s *State) TotalLogLines() (int, bool) {
	if s == nil {
		return 0, false
	}
	return toInt(s.PspaceInfo[KeyTotalLogLines])
}

// Lookup returns the value of a dotted "section.field" path.
func (s *State) Lookup(section, field string) (any, bool) {
	if s == nil {
		return nil, false
	}
	switch section {
	case "job_info":
		if s.JobInfo == nil {
			return nil, false
		}
		// Round-trip through JSON so field names match the wire names.
		b, err := json.Marshal(s.JobInfo)
		if err != nil {
			return nil, false
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, false
		}
		v, ok := m[field]
		return v, ok && v != nil
	case "pspace_info":
		v, ok := s.PspaceInfo[field]
		return v, ok && v != nil
	default:
		return nil, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
