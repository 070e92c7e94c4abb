// Package repository persists the ordered project collection and owns the
// display ordering of projects.
package repository

import (
	"encoding/json"
	"fmt"

	"songbook/internal/codec"
	"songbook/internal/kvstore"
	"songbook/internal/prefs"
	"songbook/pkg/models"

	"github.com/sirupsen/logrus"
)

// Repository stores the full project list as one JSON blob in the key-value
// store and keeps the persisted project order in preferences consistent with
// it.
type Repository struct {
	kv     kvstore.Store
	prefs  *prefs.Store
	logger *logrus.Logger
}

// New creates a repository on top of the given blob store and preferences
// store.
func New(kv kvstore.Store, prefStore *prefs.Store) *Repository {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Repository{
		kv:     kv,
		prefs:  prefStore,
		logger: logger,
	}
}

// Save serializes the full ordered list into one blob and re-persists the
// project-order field in preferences so both sources of truth stay
// consistent.
func (r *Repository) Save(projects []*models.Project) error {
	records := make([]codec.StoredProjectRecord, 0, len(projects))
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		records = append(records, codec.Encode(p))
		ids = append(ids, p.ID)
	}

	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode project records: %w", err)
	}

	if err := r.kv.Set(kvstore.KeyProjects, blob); err != nil {
		return fmt.Errorf("failed to write project blob: %w", err)
	}

	rec := r.prefs.Load()
	rec.ProjectOrder = ids
	if err := r.prefs.Save(rec); err != nil {
		r.logger.WithError(err).Warn("Failed to persist project order")
	}

	r.logger.WithField("count", len(projects)).Debug("Saved project collection")
	return nil
}

// Load reads the project collection, tolerating individual corrupt records,
// and re-applies the persisted display order. Any top-level decode failure
// yields an empty list; loading never fails the caller.
func (r *Repository) Load() []*models.Project {
	blob, ok, err := r.kv.Get(kvstore.KeyProjects)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to read project blob, treating store as empty")
		return nil
	}
	if !ok {
		return nil
	}

	// Decode element-wise so one corrupt record cannot abort the rest.
	var raws []json.RawMessage
	if err := json.Unmarshal(blob, &raws); err != nil {
		r.logger.WithError(err).Warn("Project blob unparsable, treating store as empty")
		return nil
	}

	var projects []*models.Project
	for i, raw := range raws {
		var rec codec.StoredProjectRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.logger.WithError(err).WithField("index", i).Warn("Skipping corrupt project record")
			continue
		}
		projects = append(projects, codec.Decode(rec))
	}

	return applyOrder(projects, r.prefs.Load().ProjectOrder)
}

// applyOrder moves projects whose ids appear in the order list to the front,
// in that order. Ids not found in storage are dropped; stored projects the
// order list does not cover keep their relative storage order and follow at
// the end, so every stored project stays visible exactly once even when the
// order list is stale or incomplete.
func applyOrder(projects []*models.Project, order []string) []*models.Project {
	if len(order) == 0 {
		return projects
	}

	byID := make(map[string]*models.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	placed := make(map[string]bool, len(order))
	ordered := make([]*models.Project, 0, len(projects))
	for _, id := range order {
		if p, ok := byID[id]; ok && !placed[id] {
			ordered = append(ordered, p)
			placed[id] = true
		}
	}
	for _, p := range projects {
		if !placed[p.ID] {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
