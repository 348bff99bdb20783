package workspace

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Stats summarizes a packed archive.
type Stats struct {
	Files   int
	Skipped int
	Bytes   int64
}

// Pack writes a zip of dir to w, leaving out paths matched by ignore.
// Symlinks and other non-regular files are skipped.
func Pack(ctx context.Context, dir string, ignore *Ignore, w io.Writer) (Stats, error) {
	var stats Stats
	if ignore == nil {
		var err error
		if ignore, err = NewIgnore(nil); err != nil {
			return stats, err
		}
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return stats, fmt.Errorf("resolve workspace %s: %w", dir, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return stats, fmt.Errorf("stat workspace: %w", err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("workspace %s is not a directory", root)
	}

	zw := zip.NewWriter(w)
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if ignore.Match(rel) {
			stats.Skipped++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		n, err := addFile(zw, p, rel)
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += n
		return nil
	})
	if walkErr != nil {
		_ = zw.Close()
		return stats, fmt.Errorf("pack workspace: %w", walkErr)
	}
	if err := zw.Close(); err != nil {
		return stats, fmt.Errorf("finish workspace archive: %w", err)
	}
	return stats, nil
}

func addFile(zw *zip.Writer, path, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, err
	}
	return io.Copy(dst, f)
}

// ArchiveName returns a unique archive file name for dir.
func ArchiveName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "workspace"
	}
	base = strings.ReplaceAll(base, " ", "_")
	return fmt.Sprintf("%s-%s.zip", base, uuid.NewString()[:8])
}
