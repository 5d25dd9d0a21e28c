// Package artifact persists rendered receipt documents and serves them
// back for download. One artifact exists per receipt, named
// deterministically from the receipt number.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrArtifactNotFound = errors.New("artifact_not_found")
	ErrInvalidPath      = errors.New("invalid_artifact_path")
)

// Store abstracts artifact persistence so tests can substitute memory.
type Store interface {
	// Save writes the artifact and returns its stable reference.
	Save(ctx context.Context, name string, content io.Reader) (string, error)
	// Open streams a previously saved artifact by its reference.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// FileStore keeps artifacts on the local filesystem under a root dir.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("artifact root directory is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." {
		return "", ErrInvalidPath
	}

	target := filepath.Join(s.root, name)
	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return target, nil
}

func (s *FileStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	// References are always a file directly under root; anything else is
	// rejected before touching the filesystem.
	clean := filepath.Clean(path)
	if filepath.Dir(clean) != filepath.Clean(s.root) {
		return nil, ErrInvalidPath
	}

	f, err := os.Open(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactNotFound
		}
		return nil, err
	}
	return f, nil
}

// ReceiptArtifactName is the deterministic artifact filename convention.
func ReceiptArtifactName(receiptNumber string) string {
	return fmt.Sprintf("receipt-%s.pdf", receiptNumber)
}
