package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"songbook/internal/codec"
	"songbook/internal/lyrics"
	"songbook/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ExportStatus represents the status of an export job.
type ExportStatus string

const (
	ExportPending   ExportStatus = "pending"
	ExportRunning   ExportStatus = "running"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)

// ExportJob tracks one project export.
type ExportJob struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	Status      ExportStatus `json:"status"`
	OutputPath  string       `json:"output_path,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Exporter zips full project exports (metadata, referenced files, archive)
// on a background worker. The export itself never mutates the project; the
// result is delivered to the foreground via the completion callback.
type Exporter struct {
	root    string
	jobs    map[string]*ExportJob
	jobsMux sync.RWMutex
	logger  *logrus.Logger
}

// NewExporter creates an exporter writing zips under <root>/Exports.
func NewExporter(root string) *Exporter {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Exporter{
		root:   root,
		jobs:   make(map[string]*ExportJob),
		logger: logger,
	}
}

// Export starts a background export of the project and returns the job id.
// The callback (if non-nil) runs once with the finished job.
func (e *Exporter) Export(p *models.Project, done func(*ExportJob)) string {
	job := &ExportJob{
		ID:        uuid.New().String(),
		ProjectID: p.ID,
		Status:    ExportPending,
		CreatedAt: time.Now(),
	}

	e.jobsMux.Lock()
	e.jobs[job.ID] = job
	e.jobsMux.Unlock()

	// Snapshot what the worker needs; the caller may keep mutating the
	// project once this returns.
	record := codec.Encode(p)
	title := p.Title
	entries := make([]models.ArchiveEntry, p.Archive.Len())
	copy(entries, p.Archive.Entries)

	go func() {
		e.setStatus(job.ID, ExportRunning, "", "")

		path, err := e.writeZip(title, record, entries)
		if err != nil {
			e.logger.WithError(err).WithField("project", record.ID).Error("Project export failed")
			e.setStatus(job.ID, ExportFailed, "", err.Error())
		} else {
			e.logger.WithFields(logrus.Fields{
				"project": record.ID,
				"path":    path,
			}).Info("Project export completed")
			e.setStatus(job.ID, ExportCompleted, path, "")
		}

		if done != nil {
			done(e.Job(job.ID))
		}
	}()

	return job.ID
}

// Job returns a copy of the job with the given id, or nil.
func (e *Exporter) Job(id string) *ExportJob {
	e.jobsMux.RLock()
	defer e.jobsMux.RUnlock()

	job, ok := e.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func (e *Exporter) setStatus(id string, status ExportStatus, outputPath, errMsg string) {
	e.jobsMux.Lock()
	defer e.jobsMux.Unlock()

	job, ok := e.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.OutputPath = outputPath
	job.Error = errMsg
	if status == ExportCompleted || status == ExportFailed {
		now := time.Now()
		job.CompletedAt = &now
	}
}

// writeZip produces <root>/Exports/<sanitized-title>_<timestamp>.zip with the
// project metadata, every referenced file, and every archive snapshot.
// Referenced files that are missing on disk are skipped.
func (e *Exporter) writeZip(title string, record codec.StoredProjectRecord, entries []models.ArchiveEntry) (string, error) {
	exportDir := filepath.Join(e.root, "Exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.zip", lyrics.SanitizeTitle(title), time.Now().Format(timestampLayout))
	path := filepath.Join(exportDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	zw := zip.NewWriter(f)
	if err := e.addContents(zw, record, entries); err != nil {
		zw.Close()
		f.Close()
		os.Remove(path)
		return "", err
	}

	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// addContents writes the metadata, referenced files, and archive snapshots
// into the open zip. Missing referenced files are skipped, not fatal.
func (e *Exporter) addContents(zw *zip.Writer, record codec.StoredProjectRecord, entries []models.ArchiveEntry) error {
	meta, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	w, err := zw.Create("project.json")
	if err != nil {
		return err
	}
	if _, err := w.Write(meta); err != nil {
		return err
	}

	for _, file := range record.Files {
		if err := addFile(zw, file, filepath.Join("files", filepath.Base(file))); err != nil {
			e.logger.WithError(err).WithField("path", file).Warn("Skipping file in export")
		}
	}
	for _, entry := range entries {
		if err := addFile(zw, entry.FilePath, filepath.Join("archive", filepath.Base(entry.FilePath))); err != nil {
			e.logger.WithError(err).WithField("path", entry.FilePath).Warn("Skipping archive snapshot in export")
		}
	}
	return nil
}

func addFile(zw *zip.Writer, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.Create(filepath.ToSlash(dest))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
