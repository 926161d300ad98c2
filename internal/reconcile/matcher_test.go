package reconcile

import (
	"strings"
	"testing"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/shared"
)

func testIndex() *models.LibraryIndex {
	items := []models.LibraryItem{
		{ID: "lib-1", Name: "Die Hard", Year: 1988, IMDbID: "tt0095016", TMDbID: "562"},
		{ID: "lib-2", Name: "Heat", Year: 1995, IMDbID: "tt0113277", TMDbID: "949"},
		{ID: "lib-3", Name: "Heat", Year: 1986, IMDbID: "", TMDbID: ""},
		{ID: "lib-4", Name: "The Thing", Year: 1982, IMDbID: "", TMDbID: "1091"},
	}
	return shared.BuildLibraryIndex(items)
}

func TestResolve(t *testing.T) {
	defaultPriority := []string{"imdb_id", "tmdb_id", "title"}
	index := testIndex()

	t.Run("imdb id wins over everything", func(t *testing.T) {
		entries := []models.ExternalListEntry{
			{Title: "Completely Wrong Title", IMDbID: "tt0095016"},
		}
		got := Resolve(entries, index, defaultPriority)
		if len(got.ItemIDs) != 1 || got.ItemIDs[0] != "lib-1" {
			t.Fatalf("ItemIDs = %v, want [lib-1]", got.ItemIDs)
		}
		if len(got.Unresolved) != 0 {
			t.Errorf("Unresolved = %v, want none", got.Unresolved)
		}
	})

	t.Run("falls through to tmdb then title", func(t *testing.T) {
		entries := []models.ExternalListEntry{
			{Title: "unknown", TMDbID: "1091"},
			{Title: "Die Hard"},
		}
		got := Resolve(entries, index, defaultPriority)
		want := []string{"lib-4", "lib-1"}
		if len(got.ItemIDs) != len(want) {
			t.Fatalf("ItemIDs = %v, want %v", got.ItemIDs, want)
		}
		for i := range want {
			if got.ItemIDs[i] != want[i] {
				t.Errorf("ItemIDs[%d] = %s, want %s", i, got.ItemIDs[i], want[i])
			}
		}
	})

	t.Run("ambiguous title is never broken arbitrarily", func(t *testing.T) {
		entries := []models.ExternalListEntry{
			{Title: "Heat", Year: 1995},
		}
		got := Resolve(entries, index, defaultPriority)
		if len(got.ItemIDs) != 0 {
			t.Fatalf("ItemIDs = %v, want none", got.ItemIDs)
		}
		if len(got.Unresolved) != 1 {
			t.Fatalf("Unresolved = %v, want one entry", got.Unresolved)
		}
		if !strings.Contains(got.Unresolved[0].Reason, "ambiguous") {
			t.Errorf("Reason = %q, want ambiguity", got.Unresolved[0].Reason)
		}
	})

	t.Run("id match bypasses title ambiguity", func(t *testing.T) {
		entries := []models.ExternalListEntry{
			{Title: "Heat", IMDbID: "tt0113277"},
		}
		got := Resolve(entries, index, defaultPriority)
		if len(got.ItemIDs) != 1 || got.ItemIDs[0] != "lib-2" {
			t.Fatalf("ItemIDs = %v, want [lib-2]", got.ItemIDs)
		}
	})

	t.Run("no match reported with reason", func(t *testing.T) {
		entries := []models.ExternalListEntry{
			{Title: "Not In Library", IMDbID: "tt9999999"},
		}
		got := Resolve(entries, index, defaultPriority)
		if len(got.Unresolved) != 1 {
			t.Fatalf("Unresolved = %v, want one entry", got.Unresolved)
		}
		if got.Unresolved[0].Reason != "no match under any strategy" {
			t.Errorf("Reason = %q", got.Unresolved[0].Reason)
		}
	})

	t.Run("duplicate entries resolve once", func(t *testing.T) {
		entries := []models.ExternalListEntry{
			{Title: "Die Hard", IMDbID: "tt0095016"},
			{Title: "Die Hard (1988)"},
		}
		got := Resolve(entries, index, defaultPriority)
		if len(got.ItemIDs) != 1 {
			t.Fatalf("ItemIDs = %v, want single lib-1", got.ItemIDs)
		}
	})

	t.Run("priority restricts strategies", func(t *testing.T) {
		entries := []models.ExternalListEntry{
			{Title: "The Thing", TMDbID: "1091"},
		}
		got := Resolve(entries, index, []string{"imdb_id"})
		if len(got.ItemIDs) != 0 {
			t.Fatalf("ItemIDs = %v, want none under imdb-only priority", got.ItemIDs)
		}
	})

	t.Run("list order is preserved", func(t *testing.T) {
		entries := []models.ExternalListEntry{
			{Title: "The Thing"},
			{IMDbID: "tt0095016"},
			{IMDbID: "tt0113277"},
		}
		got := Resolve(entries, index, defaultPriority)
		want := []string{"lib-4", "lib-1", "lib-2"}
		for i := range want {
			if got.ItemIDs[i] != want[i] {
				t.Fatalf("ItemIDs = %v, want %v", got.ItemIDs, want)
			}
		}
	})
}
