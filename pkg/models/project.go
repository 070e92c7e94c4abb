package models

import "github.com/google/uuid"

// DefaultFontName is the font applied when a stored record predates the
// text-style fields.
const DefaultFontName = "System"

// Project represents a song project in the library: its metadata, the files
// it references on disk, and its archive of supplanted artifacts.
type Project struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Artwork  []byte         `json:"-"` // raw image bytes, not part of the wire form here
	Files    []string       `json:"files"`
	FontName string         `json:"fontName"`
	Bold     bool           `json:"bold"`
	Italic   bool           `json:"italic"`
	Archive  ProjectArchive `json:"-"` // never embedded in the metadata blob
}

// NewProject creates a project with a fresh stable identifier and default
// text style. The caller is expected to ensure a lyrics file afterwards.
func NewProject(title string) *Project {
	return &Project{
		ID:       uuid.New().String(),
		Title:    title,
		FontName: DefaultFontName,
	}
}
