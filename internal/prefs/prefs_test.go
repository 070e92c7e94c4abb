package prefs

import (
	"encoding/json"
	"strings"
	"testing"

	"songbook/internal/kvstore"
)

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	store := NewStore(kvstore.NewMemoryStore())

	rec := store.Load()
	if rec.HomeTitle != DefaultHomeTitle {
		t.Errorf("title: got %q, want %q", rec.HomeTitle, DefaultHomeTitle)
	}
	if rec.GradientMode != GradientAll {
		t.Errorf("mode: got %q, want %q", rec.GradientMode, GradientAll)
	}
	if len(rec.SelectedIDs) != 0 || len(rec.ProjectOrder) != 0 {
		t.Errorf("expected empty selection and order, got %v / %v", rec.SelectedIDs, rec.ProjectOrder)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(kvstore.NewMemoryStore())

	rec := Preferences{
		HomeTitle:    "Studio",
		GradientMode: GradientSelected,
		SelectedIDs:  []string{"p2"},
		ProjectOrder: []string{"p2", "p1"},
	}
	if err := store.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := store.Load()
	if got.HomeTitle != "Studio" || got.GradientMode != GradientSelected {
		t.Errorf("got %+v", got)
	}
	if len(got.SelectedIDs) != 1 || got.SelectedIDs[0] != "p2" {
		t.Errorf("selection: got %v", got.SelectedIDs)
	}
	if len(got.ProjectOrder) != 2 || got.ProjectOrder[0] != "p2" {
		t.Errorf("order: got %v", got.ProjectOrder)
	}
}

// The display title must go out under the legacy wire key so older readers
// can still parse the blob.
func TestTitleEncodedUnderLegacyKey(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	store := NewStore(kv)

	rec := DefaultPreferences()
	rec.HomeTitle = "Studio"
	if err := store.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	blob, ok, err := kv.Get(kvstore.KeyPreferences)
	if err != nil || !ok {
		t.Fatalf("preferences blob missing: %v", err)
	}
	if !strings.Contains(string(blob), `"username":"Studio"`) {
		t.Errorf("wire form must use the legacy key, got %s", blob)
	}

	if got := store.Load(); got.HomeTitle != "Studio" {
		t.Errorf("reload: got %q, want Studio", got.HomeTitle)
	}
}

func TestLegacyMigration(t *testing.T) {
	kv := kvstore.NewMemoryStore()

	// Stored projects that should feed the order backfill.
	projectBlob, _ := json.Marshal([]map[string]string{
		{"id": "p1", "title": "First"},
		{"id": "p2", "title": "Second"},
	})
	if err := kv.Set(kvstore.KeyProjects, projectBlob); err != nil {
		t.Fatalf("seed projects: %v", err)
	}
	// Legacy schema: only the title field under the legacy key.
	if err := kv.Set(kvstore.KeyPreferences, []byte(`{"username":"My Songs"}`)); err != nil {
		t.Fatalf("seed prefs: %v", err)
	}

	store := NewStore(kv)
	rec := store.Load()

	if rec.HomeTitle != "My Songs" {
		t.Errorf("title: got %q, want My Songs", rec.HomeTitle)
	}
	if rec.GradientMode != GradientAll {
		t.Errorf("mode: got %q, want %q", rec.GradientMode, GradientAll)
	}
	if len(rec.SelectedIDs) != 0 {
		t.Errorf("selection must be empty after migration, got %v", rec.SelectedIDs)
	}
	if len(rec.ProjectOrder) != 2 || rec.ProjectOrder[0] != "p1" || rec.ProjectOrder[1] != "p2" {
		t.Errorf("order must backfill from storage, got %v", rec.ProjectOrder)
	}

	// The backfill is one-time: a reload must not re-run it.
	again := store.Load()
	if len(again.ProjectOrder) != 2 {
		t.Errorf("backfilled order must persist, got %v", again.ProjectOrder)
	}
}

func TestUnreadableBlobFallsBackToDefaults(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	if err := kv.Set(kvstore.KeyPreferences, []byte("not json at all")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := NewStore(kv).Load()
	if rec.HomeTitle != DefaultHomeTitle || rec.GradientMode != GradientAll {
		t.Errorf("expected defaults, got %+v", rec)
	}
}

func TestEffectiveSelection(t *testing.T) {
	live := []string{"p1", "p2", "p3"}

	testCases := []struct {
		name string
		rec  Preferences
		want []string
	}{
		{
			name: "AllMode",
			rec:  Preferences{GradientMode: GradientAll, SelectedIDs: []string{"p1"}},
			want: live,
		},
		{
			name: "SelectedWithMatches",
			rec:  Preferences{GradientMode: GradientSelected, SelectedIDs: []string{"p3", "p1"}},
			want: []string{"p1", "p3"},
		},
		{
			name: "SelectedEmptyFallsBack",
			rec:  Preferences{GradientMode: GradientSelected},
			want: live,
		},
		{
			name: "SelectedAllStaleFallsBack",
			rec:  Preferences{GradientMode: GradientSelected, SelectedIDs: []string{"zz"}},
			want: live,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.rec.EffectiveSelection(live)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("got %v, want %v", got, tc.want)
					break
				}
			}
		})
	}
}
