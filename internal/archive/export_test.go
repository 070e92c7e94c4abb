package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"songbook/internal/lyrics"
	"songbook/pkg/models"
)

func TestExportProducesZip(t *testing.T) {
	root := t.TempDir()
	lyricsMgr := lyrics.NewManager(root)
	m := NewManager(root, lyricsMgr, nil)
	e := NewExporter(root)

	p := models.NewProject("Shipping")
	lyricsMgr.EnsureLyricsFile(p)
	lyricsMgr.SaveLyrics("chorus", p)
	if err := m.ArchiveLyrics(p); err != nil {
		t.Fatalf("archive: %v", err)
	}

	done := make(chan *ExportJob, 1)
	jobID := e.Export(p, func(job *ExportJob) { done <- job })

	var job *ExportJob
	select {
	case job = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("export did not finish")
	}

	if job.ID != jobID || job.Status != ExportCompleted {
		t.Fatalf("unexpected job state: %+v", job)
	}
	if job.CompletedAt == nil {
		t.Errorf("completed job must carry a completion time")
	}

	r, err := zip.OpenReader(job.OutputPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()

	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}
	if !names["project.json"] {
		t.Errorf("project.json missing from export, got %v", names)
	}
	foundFiles, foundArchive := false, false
	for name := range names {
		if len(name) > 6 && name[:6] == "files/" {
			foundFiles = true
		}
		if len(name) > 8 && name[:8] == "archive/" {
			foundArchive = true
		}
	}
	if !foundFiles || !foundArchive {
		t.Errorf("export missing files or archive snapshots: %v", names)
	}
}

func TestFailedExportLeavesNoPartialZip(t *testing.T) {
	root := t.TempDir()
	lyricsMgr := lyrics.NewManager(root)
	m := NewManager(root, lyricsMgr, nil)
	e := NewExporter(root)

	p := models.NewProject("Torn")
	lyricsMgr.EnsureLyricsFile(p)
	lyricsMgr.SaveLyrics("verse", p)
	if err := m.ArchiveLyrics(p); err != nil {
		t.Fatalf("archive: %v", err)
	}

	// A stray regular file squats on the export directory path.
	if err := os.WriteFile(filepath.Join(root, "Exports"), []byte("in the way"), 0644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	done := make(chan *ExportJob, 1)
	e.Export(p, func(job *ExportJob) { done <- job })

	var job *ExportJob
	select {
	case job = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("export did not finish")
	}

	if job.Status != ExportFailed {
		t.Fatalf("expected failed export, got %+v", job)
	}
	if job.Error == "" {
		t.Errorf("failed job must carry an error message")
	}
	if job.OutputPath != "" {
		t.Errorf("failed job must not claim an output path, got %q", job.OutputPath)
	}

	var leftovers []string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && filepath.Ext(path) == ".zip" {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	if len(leftovers) != 0 {
		t.Errorf("partial zip left behind: %v", leftovers)
	}
}

func TestJobLookup(t *testing.T) {
	e := NewExporter(t.TempDir())
	if job := e.Job("missing"); job != nil {
		t.Errorf("unknown job must be nil, got %+v", job)
	}
}
