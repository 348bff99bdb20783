// Package job models the remote job records returned by the Paperspace job
// service and the predicates that gate polling behavior.
package job

// State is the lifecycle state reported by the remote job service.
//
// Normal progression:
//
//	Pending -> Provisioned -> Running -> Stopped | Failed
//
// Error and Cancelled are reachable from any state before a terminal one.
type State string

const (
	StatePending     State = "Pending"
	StateProvisioned State = "Provisioned"
	StateRunning     State = "Running"
	StateStopped     State = "Stopped"
	StateError       State = "Error"
	StateFailed      State = "Failed"
	StateCancelled   State = "Cancelled"
)

// States is the canonical state list, in the order the service documents them.
var States = []State{
	StatePending,
	StateProvisioned,
	StateRunning,
	StateStopped,
	StateError,
	StateFailed,
	StateCancelled,
}

// Record is a snapshot of a remote job.
//
// The client only ever reads snapshots; the remote service owns mutation.
// Every field is omitempty so a persisted record stays sparse.
type Record struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	State       State  `json:"state,omitempty" yaml:"state,omitempty"`
	Entrypoint  string `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Project     string `json:"project,omitempty" yaml:"project,omitempty"`
	ProjectID   string `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	MachineType string `json:"machineType,omitempty" yaml:"machineType,omitempty"`
	Container   string `json:"container,omitempty" yaml:"container,omitempty"`
	Cluster     string `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	DtCreated   string `json:"dtCreated,omitempty" yaml:"dtCreated,omitempty"`
	DtStarted   string `json:"dtStarted,omitempty" yaml:"dtStarted,omitempty"`
	DtFinished  string `json:"dtFinished,omitempty" yaml:"dtFinished,omitempty"`
	ExitCode    *int   `json:"exitCode,omitempty" yaml:"exitCode,omitempty"`
}

// LogLine is one entry returned by the job logs endpoint.
type LogLine struct {
	Line      int    `json:"line"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// Artifact describes one file produced by a job.
type Artifact struct {
	File string `json:"file"`
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}
