// Package prefs persists the user-preferences record and migrates it across
// schema versions. The record must survive schema changes without data loss.
package prefs

import (
	"encoding/json"

	"songbook/internal/kvstore"

	"github.com/sirupsen/logrus"
)

// GradientMode selects which projects feed the home-screen gradient.
type GradientMode string

const (
	GradientAll      GradientMode = "all"
	GradientSelected GradientMode = "selected"
)

// DefaultHomeTitle is the display title used on first run.
const DefaultHomeTitle = "Home"

// Preferences is the in-memory preferences record. It is a plain value:
// callers pass it into and get it back from the store, there is no shared
// observable singleton.
type Preferences struct {
	HomeTitle    string
	GradientMode GradientMode
	SelectedIDs  []string
	ProjectOrder []string
}

// DefaultPreferences returns the first-run record.
func DefaultPreferences() Preferences {
	return Preferences{
		HomeTitle:    DefaultHomeTitle,
		GradientMode: GradientAll,
	}
}

// EffectiveSelection resolves the gradient-source project ids against the
// currently live project ids. When mode is "selected" but the selection
// matches none of the live projects, the result falls back to all of them;
// the selection can never silently produce an empty gradient set.
func (p Preferences) EffectiveSelection(liveIDs []string) []string {
	if p.GradientMode != GradientSelected {
		return liveIDs
	}

	selected := make(map[string]bool, len(p.SelectedIDs))
	for _, id := range p.SelectedIDs {
		selected[id] = true
	}

	var matched []string
	for _, id := range liveIDs {
		if selected[id] {
			matched = append(matched, id)
		}
	}
	if len(matched) == 0 {
		return liveIDs
	}
	return matched
}

// storedPreferences is the current wire schema. The display title is encoded
// under the legacy "username" key so older schema readers can still parse the
// blob; this asymmetry is a deliberate compatibility shim.
type storedPreferences struct {
	Username         string   `json:"username"`
	GradientMode     string   `json:"gradientMode,omitempty"`
	SelectedProjects []string `json:"selectedProjects,omitempty"`
	ProjectOrder     []string `json:"projectOrder,omitempty"`
}

// legacyPreferences is the pre-gradient schema: only the title, under the
// same legacy key, no mode/selection/order fields.
type legacyPreferences struct {
	Username string `json:"username"`
}

// Store persists the preferences record in the blob store.
type Store struct {
	kv     kvstore.Store
	logger *logrus.Logger
}

// NewStore creates a preferences store on top of the given blob store.
func NewStore(kv kvstore.Store) *Store {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Store{
		kv:     kv,
		logger: logger,
	}
}

// Load reads the preferences record, migrating legacy blobs and falling back
// to defaults on any decode failure. It never returns an error to the caller.
//
// After every successful load, an empty project order is backfilled from the
// stored project collection if one exists. The backfill reads project storage
// directly rather than going through the project repository, so the two
// stores cannot recurse into each other.
func (s *Store) Load() Preferences {
	blob, ok, err := s.kv.Get(kvstore.KeyPreferences)
	if err != nil || !ok {
		if err != nil {
			s.logger.WithError(err).Warn("Failed to read preferences blob, using defaults")
		}
		return s.backfillOrder(DefaultPreferences())
	}

	rec, decoded := s.decode(blob)
	if !decoded {
		s.logger.Warn("Preferences blob unreadable in both schemas, using defaults")
		return s.backfillOrder(DefaultPreferences())
	}
	return s.backfillOrder(rec)
}

// decode attempts the current schema first and up-converts the legacy shape.
// A blob without a recognizable gradient mode is treated as legacy: JSON
// decoding cannot distinguish an absent field from the old schema on its own.
func (s *Store) decode(blob []byte) (Preferences, bool) {
	var stored storedPreferences
	if err := json.Unmarshal(blob, &stored); err == nil {
		mode := GradientMode(stored.GradientMode)
		if mode == GradientAll || mode == GradientSelected {
			title := stored.Username
			if title == "" {
				title = DefaultHomeTitle
			}
			return Preferences{
				HomeTitle:    title,
				GradientMode: mode,
				SelectedIDs:  stored.SelectedProjects,
				ProjectOrder: stored.ProjectOrder,
			}, true
		}
	}

	var legacy legacyPreferences
	if err := json.Unmarshal(blob, &legacy); err != nil {
		return Preferences{}, false
	}

	rec := DefaultPreferences()
	if legacy.Username != "" {
		rec.HomeTitle = legacy.Username
	}
	s.logger.WithField("title", rec.HomeTitle).Info("Migrated legacy preferences blob")
	return rec, true
}

// backfillOrder populates an empty project order from the stored project
// collection (one-time migration for records predating the order field).
func (s *Store) backfillOrder(rec Preferences) Preferences {
	if len(rec.ProjectOrder) > 0 {
		return rec
	}

	ids := s.storedProjectIDs()
	if len(ids) == 0 {
		return rec
	}

	rec.ProjectOrder = ids
	if err := s.Save(rec); err != nil {
		s.logger.WithError(err).Warn("Failed to persist backfilled project order")
	} else {
		s.logger.WithField("count", len(ids)).Info("Backfilled project order from stored projects")
	}
	return rec
}

// storedProjectIDs peeks at the project metadata blob for its ids, in storage
// order. Decode failures yield no ids.
func (s *Store) storedProjectIDs() []string {
	blob, ok, err := s.kv.Get(kvstore.KeyProjects)
	if err != nil || !ok {
		return nil
	}

	var records []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil
	}

	var ids []string
	for _, rec := range records {
		if rec.ID != "" {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// Save writes the record. The display title goes out under the legacy key
// (see storedPreferences).
func (s *Store) Save(rec Preferences) error {
	mode := rec.GradientMode
	if mode != GradientSelected {
		mode = GradientAll
	}

	blob, err := json.Marshal(storedPreferences{
		Username:         rec.HomeTitle,
		GradientMode:     string(mode),
		SelectedProjects: rec.SelectedIDs,
		ProjectOrder:     rec.ProjectOrder,
	})
	if err != nil {
		return err
	}

	if err := s.kv.Set(kvstore.KeyPreferences, blob); err != nil {
		s.logger.WithError(err).Error("Failed to write preferences blob")
		return err
	}
	return nil
}
