// Package paperspace is a client for the Paperspace jobs API.
//
// Only the operations the CLI needs are implemented: create, list, show, stop,
// logs, and artifact listing/download.
package paperspace

import (
	"context"
	"io"

	"github.com/3leaps/pspace/pkg/job"
)

// API is the remote job service as seen by the CLI. Error responses from the
// service are returned as *RemoteError.
type API interface {
	Create(ctx context.Context, params CreateParams) (*job.Record, error)
	List(ctx context.Context, filter ListFilter) ([]job.Record, error)
	Show(ctx context.Context, jobID string) (*job.Record, error)
	Stop(ctx context.Context, jobID string) error
	Logs(ctx context.Context, jobID string, lineStart int) ([]job.LogLine, error)
	ArtifactsList(ctx context.Context, jobID string) ([]job.Artifact, error)
	Download(ctx context.Context, url string, w io.Writer) error
}

// CreateParams describes a job submission.
type CreateParams struct {
	Container   string
	MachineType string
	// Command is the full shell command line run on the remote machine.
	Command     string
	Project     string
	IgnoreFiles []string

	// Workspace is a zip archive of the working directory. Nil submits no workspace.
	Workspace     io.Reader
	WorkspaceName string
}

// ListFilter narrows List results. Empty fields are not sent.
type ListFilter struct {
	Project string
	State   job.State
}
