// Package artifacts downloads a job's output files and log into a local
// directory or an S3 prefix.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LogFileName is the name the job log is saved under.
const LogFileName = "log.txt"

// ErrUnsafeName is returned for artifact names that would escape the
// destination.
var ErrUnsafeName = errors.New("unsafe artifact name")

// Sink stores artifact files. Names are slash-separated and relative.
type Sink interface {
	Put(ctx context.Context, name string, body io.ReadSeeker, size int64) error
	// Location describes where the sink writes, for display.
	Location() string
}

// LocalSink writes files under Dir.
type LocalSink struct {
	Dir string
}

var _ Sink = (*LocalSink)(nil)

func (s *LocalSink) Location() string { return s.Dir }

// Put writes body to Dir/name atomically.
func (s *LocalSink) Put(ctx context.Context, name string, body io.ReadSeeker, _ int64) error {
	clean, err := CleanName(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Join(s.Dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", clean, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", clean, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", clean, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename %s: %w", clean, err)
	}
	return nil
}

// CleanName normalizes an artifact name and rejects absolute paths and
// parent references.
func CleanName(name string) (string, error) {
	n := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if n == "" || strings.HasPrefix(n, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	n = path.Clean(n)
	if n == "." || n == ".." || strings.HasPrefix(n, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return n, nil
}

// Destination is a parsed destdir value.
type Destination struct {
	// Dir is set for local destinations.
	Dir string
	// Bucket and Prefix are set for s3:// destinations.
	Bucket string
	Prefix string
}

// IsS3 reports whether the destination is an S3 URI.
func (d Destination) IsS3() bool { return d.Bucket != "" }

// ParseDestination interprets destdir for jobID. Local destinations resolve
// to destdir/<job_id>; s3://bucket/prefix resolves to prefix/<job_id>/.
func ParseDestination(destdir, jobID string) (Destination, error) {
	if jobID == "" {
		return Destination{}, errors.New("job id is required")
	}
	if rest, ok := strings.CutPrefix(destdir, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Destination{}, fmt.Errorf("s3 destination %q has no bucket", destdir)
		}
		prefix = strings.Trim(prefix, "/")
		if prefix != "" {
			prefix += "/"
		}
		return Destination{Bucket: bucket, Prefix: prefix + jobID + "/"}, nil
	}
	if strings.TrimSpace(destdir) == "" {
		return Destination{}, errors.New("destination directory is required")
	}
	return Destination{Dir: filepath.Join(destdir, jobID)}, nil
}
