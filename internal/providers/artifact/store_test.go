package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestFileStoreSaveAndOpen(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	path, err := store.Save(ctx, ReceiptArtifactName("JKVIS-2024-42-1"), bytes.NewReader([]byte("%PDF-1.7")))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != "receipt-JKVIS-2024-42-1.pdf" {
		t.Fatalf("unexpected artifact name %s", path)
	}

	r, err := store.Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "%PDF-1.7" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestFileStoreOpenMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = store.Open(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	if !errors.Is(err, ErrInvalidPath) && !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("expected not-found or invalid-path, got %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = store.Open(context.Background(), "../etc/passwd")
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
}
