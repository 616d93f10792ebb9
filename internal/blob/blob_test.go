package blob

import (
	"io"
	"strings"
	"testing"
)

func TestFSStoreSaveAndOpen(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	ref, err := store.Save("bukti.jpg", strings.NewReader("image-bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(ref, ".jpg") {
		t.Errorf("expected ref to keep extension, got %q", ref)
	}

	rc, err := store.Open(ref)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("expected stored content back, got %q", data)
	}
}

func TestFSStoreUniqueRefs(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	ref1, err := store.Save("bukti.png", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	ref2, err := store.Save("bukti.png", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ref1 == ref2 {
		t.Errorf("expected unique refs for same filename, got %q twice", ref1)
	}
}

func TestFSStoreDelete(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	ref, err := store.Save("nota.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ref); err == nil {
		t.Error("expected Open to fail after Delete")
	}
}

func TestFSStoreRejectsTraversal(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	for _, ref := range []string{"", "../etc/passwd", "a/b.png"} {
		if _, err := store.Open(ref); err == nil {
			t.Errorf("expected Open(%q) to fail", ref)
		}
		if err := store.Delete(ref); err == nil {
			t.Errorf("expected Delete(%q) to fail", ref)
		}
	}
}
