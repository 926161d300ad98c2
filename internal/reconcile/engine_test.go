package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/services"
	"github.com/desertthunder/collectarr/internal/shared"
	mocks "github.com/desertthunder/collectarr/internal/testing"
)

var testLibrary = []models.LibraryItem{
	{ID: "lib-1", Name: "Die Hard", Year: 1988, IMDbID: "tt0095016", TMDbID: "562"},
	{ID: "lib-2", Name: "Heat", Year: 1995, IMDbID: "tt0113277", TMDbID: "949"},
	{ID: "lib-3", Name: "Alien", Year: 1979, IMDbID: "tt0078748", TMDbID: "348"},
}

func fixedClock(month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, month, day, 12, 0, 0, 0, time.UTC)
	}
}

func testEngine(server *mocks.MockMediaServer, provider services.ListProvider, tracker Tracker, settings Settings) *Engine {
	if settings.Now == nil {
		settings.Now = fixedClock(7, 1)
	}
	return NewEngine(server, map[string]services.ListProvider{"mdblist": provider}, tracker, settings, shared.NewLogger(nil))
}

func entriesFor(ids ...string) []models.ExternalListEntry {
	var entries []models.ExternalListEntry
	for _, id := range ids {
		entries = append(entries, models.ExternalListEntry{IMDbID: id})
	}
	return entries
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()
	spec := models.CollectionSpec{Name: "Action Classics", Source: "mdblist", ListID: "100"}

	t.Run("creates missing collection and adds members", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		provider := &mocks.MockListProvider{Default: entriesFor("tt0095016", "tt0113277")}
		tracker := mocks.NewMockTracker()

		report, err := testEngine(server, provider, tracker, Settings{}).Run(ctx, []models.CollectionSpec{spec})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if report.Failed() != 0 {
			t.Fatalf("Failed() = %d, report: %+v", report.Failed(), report.Collections)
		}

		state := server.Collections["Action Classics"]
		if state == nil {
			t.Fatal("collection was not created")
		}
		if len(state.MemberIDs) != 2 || state.MemberIDs[0] != "lib-1" || state.MemberIDs[1] != "lib-2" {
			t.Errorf("MemberIDs = %v, want [lib-1 lib-2]", state.MemberIDs)
		}
		if tracker.Records["Action Classics"] == nil {
			t.Error("collection was not recorded as managed")
		}
	})

	t.Run("second run with same list is a no-op", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		provider := &mocks.MockListProvider{Default: entriesFor("tt0095016", "tt0113277")}
		tracker := mocks.NewMockTracker()
		engine := testEngine(server, provider, tracker, Settings{})

		if _, err := engine.Run(ctx, []models.CollectionSpec{spec}); err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		server.Calls = nil

		if _, err := engine.Run(ctx, []models.CollectionSpec{spec}); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if len(server.Calls) != 0 {
			t.Errorf("second run issued mutations: %v", server.Calls)
		}
	})

	t.Run("remove missing prunes unlisted members", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		server.Collections["Action Classics"] = &models.CollectionState{
			ID: "coll-9", Name: "Action Classics",
			MemberIDs: []string{"lib-1", "lib-3"}, Visible: true,
		}
		provider := &mocks.MockListProvider{Default: entriesFor("tt0095016")}
		engine := testEngine(server, provider, mocks.NewMockTracker(), Settings{RemoveMissing: true})

		if _, err := engine.Run(ctx, []models.CollectionSpec{spec}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		state := server.Collections["Action Classics"]
		if len(state.MemberIDs) != 1 || state.MemberIDs[0] != "lib-1" {
			t.Errorf("MemberIDs = %v, want [lib-1]", state.MemberIDs)
		}
	})

	t.Run("remove missing disabled keeps extra members", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		server.Collections["Action Classics"] = &models.CollectionState{
			ID: "coll-9", Name: "Action Classics",
			MemberIDs: []string{"lib-1", "lib-3"}, Visible: true,
		}
		provider := &mocks.MockListProvider{Default: entriesFor("tt0095016")}
		engine := testEngine(server, provider, mocks.NewMockTracker(), Settings{RemoveMissing: false})

		if _, err := engine.Run(ctx, []models.CollectionSpec{spec}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		state := server.Collections["Action Classics"]
		if len(state.MemberIDs) != 2 {
			t.Errorf("MemberIDs = %v, want both kept", state.MemberIDs)
		}
	})

	t.Run("per-spec remove_missing overrides global", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		server.Collections["Action Classics"] = &models.CollectionState{
			ID: "coll-9", Name: "Action Classics",
			MemberIDs: []string{"lib-1", "lib-3"}, Visible: true,
		}
		off := false
		override := spec
		override.RemoveMissing = &off
		provider := &mocks.MockListProvider{Default: entriesFor("tt0095016")}
		engine := testEngine(server, provider, mocks.NewMockTracker(), Settings{RemoveMissing: true})

		if _, err := engine.Run(ctx, []models.CollectionSpec{override}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if got := server.Collections["Action Classics"].MemberIDs; len(got) != 2 {
			t.Errorf("MemberIDs = %v, want both kept under spec override", got)
		}
	})

	t.Run("dry run issues no mutations", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		provider := &mocks.MockListProvider{Default: entriesFor("tt0095016")}
		tracker := mocks.NewMockTracker()
		engine := testEngine(server, provider, tracker, Settings{DryRun: true})

		report, err := engine.Run(ctx, []models.CollectionSpec{spec})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(server.Calls) != 0 {
			t.Errorf("dry run issued mutations: %v", server.Calls)
		}
		if len(tracker.Records) != 0 {
			t.Errorf("dry run recorded managed collections: %v", tracker.Records)
		}
		if report.Collections[0].Status != StatusPreview {
			t.Errorf("Status = %s, want %s", report.Collections[0].Status, StatusPreview)
		}
		if report.Collections[0].MutationCounts[MutationCreate] != 1 {
			t.Errorf("MutationCounts = %v, want planned create", report.Collections[0].MutationCounts)
		}
	})

	t.Run("one failing spec does not block the others", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		provider := &mocks.MockListProvider{
			Lists: map[string][]models.ExternalListEntry{
				"ok-1": entriesFor("tt0095016"),
				"ok-2": entriesFor("tt0078748"),
			},
		}
		provider.Lists["broken"] = nil
		specs := []models.CollectionSpec{
			{Name: "First", Source: "mdblist", ListID: "ok-1"},
			{Name: "Broken", Source: "trakt", Category: "trending"},
			{Name: "Second", Source: "mdblist", ListID: "ok-2"},
		}
		engine := testEngine(server, provider, mocks.NewMockTracker(), Settings{})

		report, err := engine.Run(ctx, specs)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if report.Failed() != 1 {
			t.Fatalf("Failed() = %d, want 1", report.Failed())
		}
		if report.Collections[1].Status != StatusFailed {
			t.Errorf("Broken status = %s", report.Collections[1].Status)
		}
		if server.Collections["First"] == nil || server.Collections["Second"] == nil {
			t.Error("surviving specs were not applied")
		}
	})

	t.Run("provider error marks spec failed", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		provider := &mocks.MockListProvider{Err: errors.New("upstream down")}
		engine := testEngine(server, provider, mocks.NewMockTracker(), Settings{})

		report, err := engine.Run(ctx, []models.CollectionSpec{spec})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if report.Collections[0].Status != StatusFailed {
			t.Errorf("Status = %s, want failed", report.Collections[0].Status)
		}
	})

	t.Run("empty list is skipped rather than emptied", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		server.Collections["Action Classics"] = &models.CollectionState{
			ID: "coll-9", Name: "Action Classics", MemberIDs: []string{"lib-1"}, Visible: true,
		}
		provider := &mocks.MockListProvider{}
		engine := testEngine(server, provider, mocks.NewMockTracker(), Settings{RemoveMissing: true})

		report, err := engine.Run(ctx, []models.CollectionSpec{spec})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if report.Collections[0].Status != StatusSkipped {
			t.Errorf("Status = %s, want skipped", report.Collections[0].Status)
		}
		if got := server.Collections["Action Classics"].MemberIDs; len(got) != 1 {
			t.Errorf("MemberIDs = %v, members were pruned on empty fetch", got)
		}
	})

	t.Run("seasonal collection hidden out of season", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		seasonal := spec
		seasonal.Name = "Christmas Movies"
		seasonal.Seasonal = &models.SeasonalWindow{StartMonth: 12, StartDay: 1, EndMonth: 1, EndDay: 6}
		provider := &mocks.MockListProvider{Default: entriesFor("tt0095016")}
		engine := testEngine(server, provider, mocks.NewMockTracker(), Settings{Now: fixedClock(7, 1)})

		if _, err := engine.Run(ctx, []models.CollectionSpec{seasonal}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		state := server.Collections["Christmas Movies"]
		if state.Visible {
			t.Error("collection visible out of season")
		}

		// In season the next run flips it back, membership untouched.
		engine.settings.Now = fixedClock(12, 20)
		if _, err := engine.Run(ctx, []models.CollectionSpec{seasonal}); err != nil {
			t.Fatalf("in-season run failed: %v", err)
		}
		if !server.Collections["Christmas Movies"].Visible {
			t.Error("collection hidden in season")
		}
	})

	t.Run("delete unlisted removes managed orphan only", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		server.Collections["Old Managed"] = &models.CollectionState{ID: "coll-old", Name: "Old Managed", Visible: true}
		server.Collections["User Made"] = &models.CollectionState{ID: "coll-user", Name: "User Made", Visible: true}
		tracker := mocks.NewMockTracker()
		tracker.Records["Old Managed"] = &models.ManagedCollection{Name: "Old Managed", CollectionID: "coll-old"}
		provider := &mocks.MockListProvider{Default: entriesFor("tt0095016")}
		engine := testEngine(server, provider, tracker, Settings{DeleteUnlisted: true})

		report, err := engine.Run(ctx, []models.CollectionSpec{spec})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if server.Collections["Old Managed"] != nil {
			t.Error("managed orphan was not deleted")
		}
		if server.Collections["User Made"] == nil {
			t.Error("unmanaged collection was deleted")
		}
		if tracker.Records["Old Managed"] != nil {
			t.Error("managed record was not forgotten")
		}
		if len(report.Deleted) != 1 || report.Deleted[0] != "Old Managed" {
			t.Errorf("Deleted = %v", report.Deleted)
		}
	})

	t.Run("partial apply failure is reported", func(t *testing.T) {
		server := mocks.NewMockMediaServer(testLibrary...)
		server.Collections["Action Classics"] = &models.CollectionState{
			ID: "coll-9", Name: "Action Classics", MemberIDs: []string{"lib-3"}, Visible: true,
		}
		server.FailOn["AddToCollection"] = errors.New("server hiccup")
		provider := &mocks.MockListProvider{Default: entriesFor("tt0095016")}
		engine := testEngine(server, provider, mocks.NewMockTracker(), Settings{RemoveMissing: true})

		report, err := engine.Run(ctx, []models.CollectionSpec{spec})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		rep := report.Collections[0]
		if rep.Status != StatusFailed {
			t.Fatalf("Status = %s, want failed", rep.Status)
		}
		if len(rep.ApplyFailures) != 1 {
			t.Errorf("ApplyFailures = %v, want one", rep.ApplyFailures)
		}
		// The remove still went through despite the failed add.
		if got := server.Collections["Action Classics"].MemberIDs; len(got) != 0 {
			t.Errorf("MemberIDs = %v, want remove applied independently", got)
		}
	})
}

func TestPlan(t *testing.T) {
	settings := Settings{Now: fixedClock(7, 1)}
	spec := models.CollectionSpec{Name: "Action Classics", Source: "mdblist", ListID: "100"}

	t.Run("image on server is preserved", func(t *testing.T) {
		withImage := spec
		withImage.Image = "/posters/action.jpg"
		state := &models.CollectionState{ID: "c1", Name: spec.Name, Visible: true, ImageTag: "existing"}

		cs := Plan(withImage, state, ResolvedMembership{}, nil, settings)
		for _, m := range cs.Mutations {
			if m.Kind == MutationSetImage {
				t.Error("planned image upload over an existing image")
			}
		}
	})

	t.Run("image set when server has none", func(t *testing.T) {
		withImage := spec
		withImage.Image = "/posters/action.jpg"
		state := &models.CollectionState{ID: "c1", Name: spec.Name, Visible: true}

		cs := Plan(withImage, state, ResolvedMembership{}, nil, settings)
		found := false
		for _, m := range cs.Mutations {
			if m.Kind == MutationSetImage && m.ImagePath == "/posters/action.jpg" {
				found = true
			}
		}
		if !found {
			t.Error("missing set-image mutation")
		}
	})

	t.Run("metadata rewritten only when spec changed", func(t *testing.T) {
		withMeta := spec
		withMeta.Overview = "Best of the 80s"
		state := &models.CollectionState{ID: "c1", Name: spec.Name, Visible: true}
		prior := &models.ManagedCollection{Name: spec.Name, Overview: "Best of the 80s"}

		cs := Plan(withMeta, state, ResolvedMembership{}, prior, settings)
		for _, m := range cs.Mutations {
			if m.Kind == MutationSetMetadata {
				t.Error("planned metadata rewrite with unchanged spec value")
			}
		}

		withMeta.Overview = "Best of the 80s, revised"
		cs = Plan(withMeta, state, ResolvedMembership{}, prior, settings)
		found := false
		for _, m := range cs.Mutations {
			if m.Kind == MutationSetMetadata && m.Metadata.Overview == "Best of the 80s, revised" {
				found = true
			}
		}
		if !found {
			t.Error("missing set-metadata mutation after spec change")
		}
	})

	t.Run("display order written once then gated by tracker", func(t *testing.T) {
		withOrder := spec
		withOrder.DisplayOrder = "PremiereDate"
		state := &models.CollectionState{ID: "c1", Name: spec.Name, Visible: true}

		cs := Plan(withOrder, state, ResolvedMembership{}, nil, settings)
		found := false
		for _, m := range cs.Mutations {
			if m.Kind == MutationSetMetadata && m.Metadata.DisplayOrder == "PremiereDate" {
				found = true
			}
		}
		if !found {
			t.Error("missing set-metadata mutation for display order")
		}

		prior := &models.ManagedCollection{Name: spec.Name, DisplayOrder: "PremiereDate"}
		cs = Plan(withOrder, state, ResolvedMembership{}, prior, settings)
		for _, m := range cs.Mutations {
			if m.Kind == MutationSetMetadata {
				t.Error("planned display-order rewrite with unchanged spec value")
			}
		}
	})

	t.Run("clear first removes all then adds target", func(t *testing.T) {
		state := &models.CollectionState{ID: "c1", Name: spec.Name, MemberIDs: []string{"lib-1", "lib-9"}, Visible: true}
		resolved := ResolvedMembership{ItemIDs: []string{"lib-1", "lib-2"}}
		clear := settings
		clear.ClearFirst = true

		cs := Plan(spec, state, resolved, nil, clear)
		if len(cs.Mutations) != 2 {
			t.Fatalf("Mutations = %+v, want remove then add", cs.Mutations)
		}
		if cs.Mutations[0].Kind != MutationRemoveMembers || len(cs.Mutations[0].ItemIDs) != 2 {
			t.Errorf("first mutation = %+v", cs.Mutations[0])
		}
		if cs.Mutations[1].Kind != MutationAddMembers || len(cs.Mutations[1].ItemIDs) != 2 {
			t.Errorf("second mutation = %+v", cs.Mutations[1])
		}
	})
}

func TestSortEntries(t *testing.T) {
	entries := func() []models.ExternalListEntry {
		return []models.ExternalListEntry{
			{Title: "B Movie", Rank: 2, Rating: 6.1, Votes: 50},
			{Title: "A Movie", Rank: 3, Rating: 9.0, Votes: 10},
			{Title: "C Movie", Rank: 1, Rating: 7.5, Votes: 99},
		}
	}

	tests := []struct {
		name   string
		sortBy string
		want   []string
	}{
		{"default rank order", "", []string{"C Movie", "B Movie", "A Movie"}},
		{"rating descending", "rating", []string{"A Movie", "C Movie", "B Movie"}},
		{"votes descending", "votes", []string{"C Movie", "B Movie", "A Movie"}},
		{"title ascending", "title", []string{"A Movie", "B Movie", "C Movie"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := entries()
			sortEntries(got, tc.sortBy)
			for i, want := range tc.want {
				if got[i].Title != want {
					t.Fatalf("order = %v, want %v", titles(got), tc.want)
				}
			}
		})
	}
}

func titles(entries []models.ExternalListEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}
