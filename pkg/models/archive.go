package models

import (
	"fmt"
	"sort"
	"time"
)

// EntryKind identifies what kind of artifact an archive entry preserves.
type EntryKind string

const (
	KindLyrics       EntryKind = "lyrics"
	KindAudio        EntryKind = "audio"
	KindArtwork      EntryKind = "artwork"
	KindConversation EntryKind = "conversation"
)

// Ext returns the file extension used for archived files of this kind.
// The extension is a fixed function of the kind.
func (k EntryKind) Ext() string {
	switch k {
	case KindAudio:
		return "mp3"
	case KindArtwork:
		return "png"
	default: // lyrics, conversation
		return "txt"
	}
}

// DisplayName returns the human-readable name for the kind.
func (k EntryKind) DisplayName() string {
	switch k {
	case KindLyrics:
		return "Lyrics"
	case KindAudio:
		return "Audio"
	case KindArtwork:
		return "Artwork"
	case KindConversation:
		return "Conversation"
	default:
		return string(k)
	}
}

// ArchiveEntry is one archived snapshot. Entries are immutable once created.
type ArchiveEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Kind      EntryKind `json:"kind"`
	Label     string    `json:"label"`
	FilePath  string    `json:"filePath"`
}

// DefaultLabel builds the auto-generated label for an entry from its kind and
// creation time. Used unless the caller overrides the label explicitly.
func DefaultLabel(kind EntryKind, ts time.Time) string {
	return fmt.Sprintf("%s %s", kind.DisplayName(), ts.Format("Jan 2, 2006 15:04"))
}

// ProjectArchive is the ordered log of archived snapshots for one project,
// kept sorted newest-first.
type ProjectArchive struct {
	Entries []ArchiveEntry
}

// Insert adds an entry while maintaining the newest-first ordering.
func (a *ProjectArchive) Insert(e ArchiveEntry) {
	idx := sort.Search(len(a.Entries), func(i int) bool {
		return a.Entries[i].CreatedAt.Before(e.CreatedAt)
	})
	a.Entries = append(a.Entries, ArchiveEntry{})
	copy(a.Entries[idx+1:], a.Entries[idx:])
	a.Entries[idx] = e
}

// OfKind returns the entries of the given kind, preserving order.
func (a *ProjectArchive) OfKind(kind EntryKind) []ArchiveEntry {
	var out []ArchiveEntry
	for _, e := range a.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Remove deletes the entry with the given id. Returns false if not found.
func (a *ProjectArchive) Remove(id string) bool {
	for i, e := range a.Entries {
		if e.ID == id {
			a.Entries = append(a.Entries[:i], a.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (a *ProjectArchive) Len() int {
	return len(a.Entries)
}
