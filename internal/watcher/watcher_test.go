package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"songbook/internal/lyrics"
	"songbook/pkg/models"
)

func TestWatcherReportsDeletedLyricsFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Lyrics_Test_abc123.txt")
	if err := os.WriteFile(path, []byte("words"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	select {
	case got := <-w.Missing():
		if got != path {
			t.Errorf("got %q, want %q", got, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("deletion never reported")
	}
}

func TestWatcherIgnoresNonLyricsFiles(t *testing.T) {
	root := t.TempDir()
	audio := filepath.Join(root, "take1.mp3")
	txt := filepath.Join(root, "notes.txt")
	for _, p := range []string{audio, txt} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	w, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Remove the non-lyrics file first; only the .txt removal may surface.
	if err := os.Remove(audio); err != nil {
		t.Fatalf("remove audio: %v", err)
	}
	if err := os.Remove(txt); err != nil {
		t.Fatalf("remove txt: %v", err)
	}

	select {
	case got := <-w.Missing():
		if got != txt {
			t.Errorf("non-lyrics removal reported: %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("txt deletion never reported")
	}
}

// The watcher goroutine only delivers paths; repair runs wherever the channel
// is drained. Repairing on the draining goroutine while it owns all project
// mutation keeps concurrent readers of project state safe.
func TestMissingChannelHandsOffRepair(t *testing.T) {
	root := t.TempDir()
	lyricsMgr := lyrics.NewManager(root)
	p := models.NewProject("Raceless")
	lyricsMgr.EnsureLyricsFile(p)
	path := p.Files[0]

	w, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Single drainer owning the project, like main's foreground loop.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case got := <-w.Missing():
			if got == path {
				lyricsMgr.EnsureLyricsFile(p)
			}
		case <-time.After(5 * time.Second):
		}
	}()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	wg.Wait()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("lyrics file not repaired after hand-off: %v", err)
	}
	if len(p.Files) != 1 || p.Files[0] != path {
		t.Errorf("repair changed references: %v", p.Files)
	}
}
