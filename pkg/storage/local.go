package storage

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

type localStorage struct {
	baseDir   string
	urlPrefix string
}

// NewLocalStorage creates a filesystem-backed AssetStorage rooted at baseDir.
// Files are served by the HTTP layer under urlPrefix.
func NewLocalStorage(baseDir, urlPrefix string) (AssetStorage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &localStorage{
		baseDir:   abs,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
	}, nil
}

func (s *localStorage) Upload(ctx context.Context, r io.Reader, folder, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := path.Join(folder, path.Base(fileName))
	dest, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// write to a hidden temp file and rename so a partial upload is never served
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return s.urlPrefix + "/" + rel, nil
}

func (s *localStorage) Delete(ctx context.Context, fileURL string) error {
	normalized := NormalizeURL(s.urlPrefix, fileURL)
	if !strings.HasPrefix(normalized, s.urlPrefix+"/") {
		return ErrUnmanagedURL
	}

	target, err := s.resolve(strings.TrimPrefix(normalized, s.urlPrefix+"/"))
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve maps a slash-separated relative path to a file inside baseDir.
func (s *localStorage) resolve(rel string) (string, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(rel))
	within, err := filepath.Rel(s.baseDir, full)
	if err != nil || within == "." || strings.HasPrefix(within, "..") {
		return "", fmt.Errorf("invalid asset path %q: %w", rel, ErrUnmanagedURL)
	}
	return full, nil
}
