package paperspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RemoteError is an error record returned by the service: the request reached
// the API but the API refused it.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Op == "" {
		return fmt.Sprintf("paperspace: status %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("paperspace %s: status %d: %s", e.Op, e.Status, msg)
}

// IsRemote reports whether err is (or wraps) a *RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// AsRemote extracts the *RemoteError from err.
func AsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// errorEnvelope covers the two shapes the service uses:
//
//	{"error": {"name": "...", "status": 404, "message": "..."}}
//	{"error": true, "status": 404, "message": "..."}
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Status  int             `json:"status"`
	Message string          `json:"message"`
}

type errorDetail struct {
	Name    string `json:"name"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// parseErrorRecord inspects a response body for an error record. ok is false
// when the body is not an error record.
func parseErrorRecord(op string, httpStatus int, body []byte) (*RemoteError, bool) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var env errorEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil || len(env.Error) == 0 || string(env.Error) == "null" {
		return nil, false
	}

	re := &RemoteError{Op: op, Status: httpStatus, Message: env.Message}
	if env.Status != 0 {
		re.Status = env.Status
	}

	var detail errorDetail
	if err := json.Unmarshal(env.Error, &detail); err == nil {
		if detail.Status != 0 {
			re.Status = detail.Status
		}
		if detail.Message != "" {
			re.Message = detail.Message
		}
	} else {
		var flag bool
		if err := json.Unmarshal(env.Error, &flag); err == nil && !flag {
			return nil, false
		}
		var text string
		if err := json.Unmarshal(env.Error, &text); err == nil && re.Message == "" {
			re.Message = text
		}
	}
	return re, true
}

// errorFromResponse builds a RemoteError for a non-2xx response.
func errorFromResponse(op string, httpStatus int, body []byte) *RemoteError {
	if re, ok := parseErrorRecord(op, httpStatus, body); ok {
		return re
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return &RemoteError{Op: op, Status: httpStatus, Message: msg}
}
