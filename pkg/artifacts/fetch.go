package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/3leaps/pspace/pkg/job"
	"github.com/3leaps/pspace/pkg/logstream"
)

// Source is the part of the remote API Fetch needs.
type Source interface {
	logstream.Source
	ArtifactsList(ctx context.Context, jobID string) ([]job.Artifact, error)
	Download(ctx context.Context, url string, w io.Writer) error
}

// Summary reports what Fetch stored.
type Summary struct {
	Location string
	Files    int
	Bytes    int64
	LogLines int
}

// Fetch copies every artifact of jobID into sink, then saves the complete job
// log as LogFileName. Artifacts without a download link are skipped.
func Fetch(ctx context.Context, src Source, jobID string, sink Sink, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("job_id", jobID))
	sum := Summary{Location: sink.Location()}

	arts, err := src.ArtifactsList(ctx, jobID)
	if err != nil {
		return sum, err
	}

	for _, a := range arts {
		if a.URL == "" {
			logger.Warn("Artifact has no download link, skipping", zap.String("file", a.File))
			continue
		}
		n, err := copyArtifact(ctx, src, sink, a)
		if err != nil {
			return sum, fmt.Errorf("artifact %s: %w", a.File, err)
		}
		logger.Debug("Saved artifact", zap.String("file", a.File), zap.Int64("bytes", n))
		sum.Files++
		sum.Bytes += n
	}

	page, err := logstream.FetchAll(ctx, src, jobID, 0, 0)
	if err != nil {
		return sum, err
	}
	var b strings.Builder
	for _, l := range page.Lines {
		b.WriteString(l.Message)
		b.WriteByte('\n')
	}
	text := b.String()
	if err := sink.Put(ctx, LogFileName, bytes.NewReader([]byte(text)), int64(len(text))); err != nil {
		return sum, fmt.Errorf("save log: %w", err)
	}
	sum.LogLines = len(page.Lines)
	return sum, nil
}

// copyArtifact stages the download in a temp file so the sink gets a
// seekable body of known size.
func copyArtifact(ctx context.Context, src Source, sink Sink, a job.Artifact) (int64, error) {
	tmp, err := os.CreateTemp("", "pspace-artifact-*")
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if err := src.Download(ctx, a.URL, tmp); err != nil {
		return 0, err
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if err := sink.Put(ctx, a.File, tmp, size); err != nil {
		return 0, err
	}
	return size, nil
}
