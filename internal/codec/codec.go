// Package codec converts projects to and from their flat, storable form and
// owns optional-field defaulting for forward/backward compatibility.
package codec

import (
	"bytes"

	"songbook/pkg/models"
)

// StoredProjectRecord is the wire form of a project. Lyrics content is never
// embedded here, only the path to its file; the archive is intentionally
// excluded to keep the metadata blob small.
//
// Font and style fields are pointers because older record versions omit them
// entirely and absent must stay distinguishable from zero.
type StoredProjectRecord struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Files    []string `json:"files"`
	Artwork  []byte   `json:"artwork,omitempty"`
	FontName *string  `json:"fontName,omitempty"`
	Bold     *bool    `json:"bold,omitempty"`
	Italic   *bool    `json:"italic,omitempty"`
}

// Encode captures every project field except the archive. Pure and total.
func Encode(p *models.Project) StoredProjectRecord {
	files := make([]string, len(p.Files))
	copy(files, p.Files)

	var artwork []byte
	if len(p.Artwork) > 0 {
		artwork = make([]byte, len(p.Artwork))
		copy(artwork, p.Artwork)
	}

	font := p.FontName
	bold := p.Bold
	italic := p.Italic
	return StoredProjectRecord{
		ID:       p.ID,
		Title:    p.Title,
		Files:    files,
		Artwork:  artwork,
		FontName: &font,
		Bold:     &bold,
		Italic:   &italic,
	}
}

// Decode rebuilds a project from its stored form. Total: absent optional
// fields resolve to defaults, and artwork bytes that do not look like an
// image decode to no artwork rather than failing the record.
func Decode(rec StoredProjectRecord) *models.Project {
	p := &models.Project{
		ID:       rec.ID,
		Title:    rec.Title,
		FontName: models.DefaultFontName,
	}

	p.Files = make([]string, len(rec.Files))
	copy(p.Files, rec.Files)

	if rec.FontName != nil && *rec.FontName != "" {
		p.FontName = *rec.FontName
	}
	if rec.Bold != nil {
		p.Bold = *rec.Bold
	}
	if rec.Italic != nil {
		p.Italic = *rec.Italic
	}

	if IsImage(rec.Artwork) {
		p.Artwork = make([]byte, len(rec.Artwork))
		copy(p.Artwork, rec.Artwork)
	}

	return p
}

// IsImage sniffs the magic bytes of common image container formats.
func IsImage(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}): // JPEG
		return true
	case bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}): // PNG
		return true
	case bytes.HasPrefix(data, []byte("GIF8")): // GIF
		return true
	default:
		return false
	}
}
