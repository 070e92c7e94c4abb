package kvstore

import (
	"bytes"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	t.Run("MissingKey", func(t *testing.T) {
		_, ok, err := s.Get("nope")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if ok {
			t.Error("missing key reported as found")
		}
	})

	t.Run("SetGet", func(t *testing.T) {
		if err := s.Set("k", []byte("v1")); err != nil {
			t.Fatalf("set: %v", err)
		}
		blob, ok, err := s.Get("k")
		if err != nil || !ok {
			t.Fatalf("get: ok=%v err=%v", ok, err)
		}
		if !bytes.Equal(blob, []byte("v1")) {
			t.Errorf("got %q", blob)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := s.Set("k", []byte("v2")); err != nil {
			t.Fatalf("set: %v", err)
		}
		blob, _, _ := s.Get("k")
		if !bytes.Equal(blob, []byte("v2")) {
			t.Errorf("got %q, want v2", blob)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Delete("k"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		_, ok, _ := s.Get("k")
		if ok {
			t.Error("deleted key still found")
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	testStore(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(KeyProjects, []byte("[]")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	blob, ok, err := reopened.Get(KeyProjects)
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if string(blob) != "[]" {
		t.Errorf("got %q", blob)
	}
}
