// Package archive maintains the per-project, timestamped, append-only log of
// archived snapshots: file placement, cleanup, retention, and size
// accounting.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"songbook/internal/audioprobe"
	"songbook/internal/lyrics"
	"songbook/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	archiveDirName  = "Archives"
	timestampLayout = "2006-01-02_15-04-05"
)

var audioExts = []string{".mp3", ".wav", ".flac", ".m4a"}

// Manager owns archive directories under <root>/Archives/<projectID> and the
// archival operations that fill them. Archival runs before the live artifact
// is overwritten by the caller; on any failure the live artifact is left
// untouched.
type Manager struct {
	root   string
	lyrics *lyrics.Manager
	probe  *audioprobe.Prober
	logger *logrus.Logger
}

// NewManager creates an archive manager rooted at the documents directory.
// The prober may be nil, in which case audio entries get plain labels.
func NewManager(root string, lyricsMgr *lyrics.Manager, probe *audioprobe.Prober) *Manager {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Manager{
		root:   root,
		lyrics: lyricsMgr,
		probe:  probe,
		logger: logger,
	}
}

// ArchiveDirectory returns the project's archive directory, creating it on
// demand. Idempotent.
func (m *Manager) ArchiveDirectory(projectID string) (string, error) {
	dir := filepath.Join(m.root, archiveDirName, projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	return dir, nil
}

// ArchiveLyrics snapshots the project's current lyrics into its archive. A
// project with empty lyrics archives nothing and succeeds.
func (m *Manager) ArchiveLyrics(p *models.Project) error {
	content := m.lyrics.LoadLyrics(p)
	if content == "" {
		return nil
	}

	entry, err := m.writeSnapshot(p.ID, models.KindLyrics, []byte(content))
	if err != nil {
		return err
	}
	p.Archive.Insert(entry)

	m.logger.WithFields(logrus.Fields{
		"project": p.ID,
		"path":    entry.FilePath,
	}).Info("Archived lyrics")
	return nil
}

// ArchiveAudio snapshots the project's current audio file. A project without
// an audio reference archives nothing and succeeds.
func (m *Manager) ArchiveAudio(p *models.Project) error {
	src := audioPath(p)
	if src == "" {
		return nil
	}

	dir, err := m.ArchiveDirectory(p.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	dest, err := m.snapshotPath(dir, models.KindAudio, now)
	if err != nil {
		return err
	}
	if err := copyFile(src, dest); err != nil {
		return fmt.Errorf("failed to copy audio into archive: %w", err)
	}

	entry := newEntry(models.KindAudio, dest, now)
	if m.probe != nil {
		if desc := m.probe.Probe(src).Describe(); desc != "" {
			entry.Label = entry.Label + " - " + desc
		}
	}
	p.Archive.Insert(entry)

	m.logger.WithFields(logrus.Fields{
		"project": p.ID,
		"source":  src,
		"path":    dest,
	}).Info("Archived audio")
	return nil
}

// ArchiveArtwork snapshots the project's current artwork bytes. A project
// without artwork archives nothing and succeeds.
func (m *Manager) ArchiveArtwork(p *models.Project) error {
	if len(p.Artwork) == 0 {
		return nil
	}

	entry, err := m.writeSnapshot(p.ID, models.KindArtwork, p.Artwork)
	if err != nil {
		return err
	}
	p.Archive.Insert(entry)

	m.logger.WithFields(logrus.Fields{
		"project": p.ID,
		"path":    entry.FilePath,
	}).Info("Archived artwork")
	return nil
}

// ArchiveConversation writes a human-readable transcript of the given
// messages into the project's archive and inserts the entry. System messages
// are excluded; a conversation with nothing left after filtering archives
// nothing and succeeds.
func (m *Manager) ArchiveConversation(messages []models.ChatMessage, p *models.Project) error {
	transcript := FormatTranscript(messages)
	if transcript == "" {
		return nil
	}

	entry, err := m.writeSnapshot(p.ID, models.KindConversation, []byte(transcript))
	if err != nil {
		return err
	}
	p.Archive.Insert(entry)

	m.logger.WithFields(logrus.Fields{
		"project": p.ID,
		"path":    entry.FilePath,
	}).Info("Archived conversation")
	return nil
}

// FormatTranscript renders the non-system messages as readable text. Returns
// "" when no message survives the filter.
func FormatTranscript(messages []models.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		if strings.EqualFold(msg.Role(), "system") {
			continue
		}
		b.WriteString(capitalize(msg.Role()))
		b.WriteString(": ")
		b.WriteString(msg.Content())
		b.WriteString("\n\n")
	}
	return b.String()
}

// RemoveEntriesOlderThan deletes entries strictly older than now minus the
// given number of days, optionally deleting their backing files. Returns the
// number of entries removed.
func (m *Manager) RemoveEntriesOlderThan(p *models.Project, days int, deleteFiles bool) int {
	cutoff := time.Now().AddDate(0, 0, -days)

	kept := p.Archive.Entries[:0]
	removed := 0
	for _, e := range p.Archive.Entries {
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
			continue
		}
		removed++
		if deleteFiles {
			if err := os.Remove(e.FilePath); err != nil && !os.IsNotExist(err) {
				m.logger.WithError(err).WithField("path", e.FilePath).Warn("Failed to delete expired archive file")
			}
		}
	}
	p.Archive.Entries = kept

	if removed > 0 {
		m.logger.WithFields(logrus.Fields{
			"project": p.ID,
			"removed": removed,
			"days":    days,
		}).Info("Pruned expired archive entries")
	}
	return removed
}

// PruneMissing drops entries whose backing file no longer exists. A vanished
// file is a detectable state, not an error. Returns the number dropped.
func (m *Manager) PruneMissing(p *models.Project) int {
	kept := p.Archive.Entries[:0]
	pruned := 0
	for _, e := range p.Archive.Entries {
		if _, err := os.Stat(e.FilePath); err != nil {
			pruned++
			continue
		}
		kept = append(kept, e)
	}
	p.Archive.Entries = kept
	return pruned
}

// CleanupOrphanedFiles deletes files in the project's archive directory that
// no current entry references. Run opportunistically, not on a schedule.
// Returns the number of files deleted.
func (m *Manager) CleanupOrphanedFiles(p *models.Project) int {
	dir := filepath.Join(m.root, archiveDirName, p.ID)
	items, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	referenced := make(map[string]bool, p.Archive.Len())
	for _, e := range p.Archive.Entries {
		referenced[filepath.Base(e.FilePath)] = true
	}

	deleted := 0
	for _, item := range items {
		if item.IsDir() || referenced[item.Name()] {
			continue
		}
		path := filepath.Join(dir, item.Name())
		if err := os.Remove(path); err != nil {
			m.logger.WithError(err).WithField("path", path).Warn("Failed to delete orphaned archive file")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		m.logger.WithFields(logrus.Fields{
			"project": p.ID,
			"deleted": deleted,
		}).Info("Cleaned up orphaned archive files")
	}
	return deleted
}

// TotalArchiveSize sums the on-disk size of every entry's file. Entries whose
// file is missing are skipped silently.
func (m *Manager) TotalArchiveSize(p *models.Project) int64 {
	var total int64
	for _, e := range p.Archive.Entries {
		st, err := os.Stat(e.FilePath)
		if err != nil {
			continue
		}
		total += st.Size()
	}
	return total
}

// LoadEntries rebuilds a project's archive by scanning its archive directory.
// The metadata blob intentionally excludes the archive, so kind and timestamp
// are recovered from the snapshot naming contract; files that do not follow
// it are ignored. A missing directory yields an empty archive.
func (m *Manager) LoadEntries(projectID string) models.ProjectArchive {
	var archive models.ProjectArchive

	dir := filepath.Join(m.root, archiveDirName, projectID)
	items, err := os.ReadDir(dir)
	if err != nil {
		return archive
	}

	for _, item := range items {
		if item.IsDir() {
			continue
		}
		kind, ts, ok := parseSnapshotName(item.Name())
		if !ok {
			continue
		}
		entry := newEntry(kind, filepath.Join(dir, item.Name()), ts)
		archive.Insert(entry)
	}
	return archive
}

// DeleteProject removes a project's on-disk footprint. With withArchive
// false, nothing on disk is touched and the archive directory survives the
// project (the caller only drops the metadata). With withArchive true, the
// archive directory tree and every referenced file are removed as well.
func (m *Manager) DeleteProject(p *models.Project, withArchive bool) error {
	if !withArchive {
		m.logger.WithField("project", p.ID).Info("Deleted project metadata, archive preserved")
		return nil
	}

	dir := filepath.Join(m.root, archiveDirName, p.ID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove archive directory: %w", err)
	}

	for _, f := range p.Files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			m.logger.WithError(err).WithField("path", f).Warn("Failed to delete project file")
		}
	}
	p.Archive.Entries = nil

	m.logger.WithField("project", p.ID).Info("Deleted project with archive")
	return nil
}

// writeSnapshot places content into the project's archive directory under a
// timestamped name and returns the entry for it.
func (m *Manager) writeSnapshot(projectID string, kind models.EntryKind, content []byte) (models.ArchiveEntry, error) {
	dir, err := m.ArchiveDirectory(projectID)
	if err != nil {
		return models.ArchiveEntry{}, err
	}

	now := time.Now()
	dest, err := m.snapshotPath(dir, kind, now)
	if err != nil {
		return models.ArchiveEntry{}, err
	}
	if err := os.WriteFile(dest, content, 0644); err != nil {
		return models.ArchiveEntry{}, fmt.Errorf("failed to write archive snapshot: %w", err)
	}
	return newEntry(kind, dest, now), nil
}

// snapshotPath builds the timestamped destination path, suffixing a counter
// when two snapshots of the same kind land in the same second. A stat
// failure other than not-exist aborts rather than probing forever.
func (m *Manager) snapshotPath(dir string, kind models.EntryKind, ts time.Time) (string, error) {
	stamp := ts.Format(timestampLayout)
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", kind, stamp, kind.Ext()))
	for i := 2; ; i++ {
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to probe snapshot path: %w", err)
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%s_%d.%s", kind, stamp, i, kind.Ext()))
	}
}

// parseSnapshotName recovers kind and timestamp from
// <kind>_<YYYY-MM-DD_HH-mm-ss>[_<n>].<ext>.
func parseSnapshotName(name string) (models.EntryKind, time.Time, bool) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	idx := strings.Index(base, "_")
	if idx < 0 {
		return "", time.Time{}, false
	}

	kind := models.EntryKind(base[:idx])
	switch kind {
	case models.KindLyrics, models.KindAudio, models.KindArtwork, models.KindConversation:
	default:
		return "", time.Time{}, false
	}
	if ext != "."+kind.Ext() {
		return "", time.Time{}, false
	}

	rest := base[idx+1:]
	if len(rest) < len(timestampLayout) {
		return "", time.Time{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, rest[:len(timestampLayout)], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}
	return kind, ts, true
}

// audioPath returns the project's referenced audio file, or "".
func audioPath(p *models.Project) string {
	for _, f := range p.Files {
		ext := strings.ToLower(filepath.Ext(f))
		for _, a := range audioExts {
			if ext == a {
				return f
			}
		}
	}
	return ""
}

func newEntry(kind models.EntryKind, path string, ts time.Time) models.ArchiveEntry {
	return models.ArchiveEntry{
		ID:        uuid.New().String(),
		CreatedAt: ts,
		Kind:      kind,
		Label:     models.DefaultLabel(kind, ts),
		FilePath:  path,
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
