// Package lyrics guarantees every project has exactly one lyrics text file
// and knows how to load and save its content.
package lyrics

import (
	"os"
	"path/filepath"
	"strings"

	"songbook/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const lyricsExt = ".txt"

// Manager creates, repairs, loads, and saves per-project lyrics files under
// the documents root.
type Manager struct {
	root   string
	logger *logrus.Logger
}

// NewManager creates a lyrics file manager rooted at the documents directory.
func NewManager(root string) *Manager {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Manager{
		root:   root,
		logger: logger,
	}
}

// LyricsPath returns the project's lyrics file reference, or "" if none.
func (m *Manager) LyricsPath(p *models.Project) string {
	for _, f := range p.Files {
		if strings.EqualFold(filepath.Ext(f), lyricsExt) {
			return f
		}
	}
	return ""
}

// EnsureLyricsFile makes sure the project references exactly one lyrics file
// and that the file exists on disk. An existing reference whose file has
// vanished is recreated empty at the same path; a project without a
// reference gets a fresh empty file named from its sanitized title. Repeated
// calls are no-ops. Filesystem failures are logged and non-fatal: the
// project is left without a usable lyrics file.
func (m *Manager) EnsureLyricsFile(p *models.Project) {
	m.dropDuplicateReferences(p)

	if path := m.LyricsPath(p); path != "" {
		if _, err := os.Stat(path); err == nil {
			return
		}
		// Idempotent repair: recreate empty at the same path.
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			m.logger.WithError(err).WithField("path", path).Error("Failed to create lyrics directory")
			return
		}
		if err := os.WriteFile(path, []byte{}, 0644); err != nil {
			m.logger.WithError(err).WithField("path", path).Error("Failed to recreate missing lyrics file")
			return
		}
		m.logger.WithField("path", path).Info("Recreated missing lyrics file")
		return
	}

	name := "Lyrics_" + SanitizeTitle(p.Title) + "_" + shortID() + lyricsExt
	path := filepath.Join(m.root, name)

	if err := os.MkdirAll(m.root, 0755); err != nil {
		m.logger.WithError(err).WithField("root", m.root).Error("Failed to create documents root")
		return
	}
	if err := os.WriteFile(path, []byte{}, 0644); err != nil {
		m.logger.WithError(err).WithField("path", path).Error("Failed to create lyrics file")
		return
	}

	p.Files = append(p.Files, path)
	m.logger.WithFields(logrus.Fields{
		"project": p.ID,
		"path":    path,
	}).Info("Created lyrics file")
}

// dropDuplicateReferences keeps only the first lyrics-file reference.
func (m *Manager) dropDuplicateReferences(p *models.Project) {
	seen := false
	files := p.Files[:0]
	for _, f := range p.Files {
		if strings.EqualFold(filepath.Ext(f), lyricsExt) {
			if seen {
				m.logger.WithField("path", f).Warn("Dropping duplicate lyrics reference")
				continue
			}
			seen = true
		}
		files = append(files, f)
	}
	p.Files = files
}

// LoadLyrics returns the content of the referenced lyrics file, or the empty
// string if none is referenced or the read fails.
func (m *Manager) LoadLyrics(p *models.Project) string {
	path := m.LyricsPath(p)
	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		m.logger.WithError(err).WithField("path", path).Warn("Failed to read lyrics file")
		return ""
	}
	return string(data)
}

// SaveLyrics overwrites the referenced lyrics file. A project without a
// lyrics reference logs the failure and is left unchanged.
func (m *Manager) SaveLyrics(text string, p *models.Project) {
	path := m.LyricsPath(p)
	if path == "" {
		m.logger.WithField("project", p.ID).Warn("No lyrics file referenced, cannot save")
		return
	}

	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		m.logger.WithError(err).WithField("path", path).Error("Failed to save lyrics file")
	}
}

// SanitizeTitle makes a project title safe for use in a file name: spaces
// and path separators become underscores.
func SanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled"
	}
	replacer := strings.NewReplacer(
		" ", "_",
		"/", "_",
		"\\", "_",
		":", "_",
	)
	return replacer.Replace(title)
}

// shortID returns a 6-character disambiguator for generated file names.
func shortID() string {
	return uuid.New().String()[:6]
}
