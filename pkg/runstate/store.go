// Package runstate persists the last-run record used to default later commands.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/pspace/pkg/job"
)

// ErrNoMarker is returned by Save when the working directory is not a pspace project.
var ErrNoMarker = errors.New("no pspace project marker in working directory")

// Store loads and saves State relative to a working directory.
//
// Directory layout:
//
//	<workdir>/pspace.yaml            project marker (or .pspace/pspace.yaml)
//	<workdir>/.pspace/state.json     persisted run state
//
// Concurrent invocations in the same workdir may race; the last writer wins.
// Writes are atomic (temp file + rename) so a reader never sees a torn file.
type Store struct {
	workDir string
	markers []string
}

// NewStore returns a store rooted at workDir. markers are paths relative to
// workDir; state is only ever written when one of them exists.
func NewStore(workDir string, markers ...string) *Store {
	return &Store{workDir: strings.TrimSpace(workDir), markers: markers}
}

// Dir is the dedicated state subdirectory.
func (s *Store) Dir() string {
	return filepath.Join(s.workDir, DirName)
}

// Path is the state file location.
func (s *Store) Path() string {
	return filepath.Join(s.Dir(), FileName)
}

// DirName is the dedicated subdirectory holding state (and optionally the project file).
const DirName = ".pspace"

// FileName is the state file name inside DirName.
const FileName = "state.json"

// HasMarker reports whether a project marker exists in the working directory.
func (s *Store) HasMarker() bool {
	for _, m := range s.markers {
		if st, err := os.Stat(filepath.Join(s.workDir, m)); err == nil && !st.IsDir() {
			return true
		}
	}
	return false
}

// Load returns the persisted state. A missing file is not an error: it returns
// (nil, nil) so callers treat the layer as empty.
func (s *Store) Load() (*State, error) {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read run state: %w", err)
	}

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, nil
	}

	var st State
	if err := json.Unmarshal([]byte(trimmed), &st); err != nil {
		return nil, fmt.Errorf("parse run state: %w", err)
	}
	return &st, nil
}

// Save overwrites the state wholesale with rec and extra. Nothing from the
// previous file is carried over.
func (s *Store) Save(rec *job.Record, extra map[string]any) error {
	if !s.HasMarker() {
		return ErrNoMarker
	}
	if rec == nil {
		return fmt.Errorf("job record is nil")
	}

	st := State{JobInfo: rec}
	if len(extra) > 0 {
		st.PspaceInfo = make(map[string]any, len(extra))
		for k, v := range extra {
			if v != nil {
				st.PspaceInfo[k] = v
			}
		}
	}

	b, err := json.MarshalIndent(&st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	b = append(b, '\n')

	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir(), FileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}
