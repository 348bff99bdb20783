package logstream

import (
	"fmt"
	"strconv"
	"strings"
)

// ResumeOffset returns the line to start fetching from. A previous run of the
// same job lets the fetch skip lines that would be cut by the tail anyway.
// tailLines == 0 (show all) always starts at zero.
func ResumeOffset(totalLines int, haveTotal bool, lastJobID, jobID string, tailLines int) int {
	if tailLines == 0 || !haveTotal || lastJobID == "" || lastJobID != jobID {
		return 0
	}
	return max(0, totalLines-tailLines)
}

// ParseTailLines interprets a "last" option: an integer, or any word starting
// with "a" (all) meaning every line, reported as 0.
func ParseTailLines(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("last: value is unset")
	case int:
		return nonNegative(t)
	case int64:
		return nonNegative(int(t))
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("last: %v is not a whole number", t)
		}
		return nonNegative(int(t))
	case string:
		s := strings.TrimSpace(t)
		if s != "" && (s[0] == 'a' || s[0] == 'A') {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("last: %q is not a number or \"all\"", t)
		}
		return nonNegative(n)
	default:
		return 0, fmt.Errorf("last: unsupported value %v (%T)", v, v)
	}
}

func nonNegative(n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("last: %d is negative", n)
	}
	return n, nil
}
