package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/reconcile"
	"github.com/desertthunder/collectarr/internal/services"
	"github.com/desertthunder/collectarr/internal/shared"
	mocks "github.com/desertthunder/collectarr/internal/testing"
)

func TestScheduler(t *testing.T) {
	library := []models.LibraryItem{
		{ID: "lib-1", Name: "Die Hard", Year: 1988, IMDbID: "tt0095016"},
	}
	specs := []models.CollectionSpec{
		{Name: "Action Classics", Source: "mdblist", ListID: "100"},
	}

	t.Run("runs immediately then on interval until cancelled", func(t *testing.T) {
		server := mocks.NewMockMediaServer(library...)
		provider := &mocks.MockListProvider{Default: []models.ExternalListEntry{{IMDbID: "tt0095016"}}}
		engine := reconcile.NewEngine(
			server,
			map[string]services.ListProvider{"mdblist": provider},
			mocks.NewMockTracker(),
			reconcile.Settings{},
			shared.NewLogger(nil),
		)

		runs := make(chan *reconcile.RunReport, 16)
		scheduler := NewScheduler(engine, specs, 10*time.Millisecond, shared.NewLogger(nil))
		scheduler.OnReport = func(r *reconcile.RunReport) { runs <- r }

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- scheduler.Run(ctx) }()

		// first run fires without waiting for a tick
		select {
		case <-runs:
		case <-time.After(2 * time.Second):
			t.Fatal("no immediate run")
		}

		// at least one scheduled tick follows
		select {
		case <-runs:
		case <-time.After(2 * time.Second):
			t.Fatal("no scheduled run")
		}

		cancel()
		select {
		case err := <-done:
			if err != context.Canceled {
				t.Errorf("Run returned %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop on cancel")
		}
	})
}

func TestBulkExport(t *testing.T) {
	library := []models.LibraryItem{
		{ID: "lib-1", Name: "Die Hard", Year: 1988, IMDbID: "tt0095016"},
		{ID: "lib-2", Name: "Heat", Year: 1995, IMDbID: "tt0113277"},
	}

	setup := func() *mocks.MockMediaServer {
		server := mocks.NewMockMediaServer(library...)
		server.Collections["Action Classics"] = &models.CollectionState{
			ID: "coll-1", Name: "Action Classics", MemberIDs: []string{"lib-1", "lib-2"}, Visible: true,
		}
		server.Collections["Crime Films"] = &models.CollectionState{
			ID: "coll-2", Name: "Crime Films", MemberIDs: []string{"lib-2"}, Visible: true,
		}
		return server
	}

	t.Run("exports every collection to json with manifest", func(t *testing.T) {
		server := setup()
		exporter := NewExporter(server, shared.NewLogger(nil))

		dir := t.TempDir()
		result, err := exporter.BulkExport(context.Background(), nil, BulkExportOpts{
			Format:    "json",
			OutputDir: dir,
		})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if result.TotalCollections != 2 || result.SuccessfulExports != 2 || result.FailedExports != 0 {
			t.Errorf("result = %+v", result)
		}
		if result.ManifestPath == "" {
			t.Error("manifest path not set")
		}
		for _, r := range result.Results {
			if len(r.Files) != 1 {
				t.Errorf("Files = %v for %s", r.Files, r.CollectionName)
			}
		}
	})

	t.Run("csv format writes items and metadata files", func(t *testing.T) {
		server := setup()
		exporter := NewExporter(server, shared.NewLogger(nil))

		result, err := exporter.BulkExport(context.Background(), nil, BulkExportOpts{
			Format:    "csv",
			OutputDir: t.TempDir(),
		})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		for _, r := range result.Results {
			if len(r.Files) != 2 {
				t.Errorf("Files = %v for %s, want csv + metadata", r.Files, r.CollectionName)
			}
		}
	})

	t.Run("fetch failure counts as failed export", func(t *testing.T) {
		server := setup()
		server.FailOn["FetchCollectionState"] = context.DeadlineExceeded
		exporter := NewExporter(server, shared.NewLogger(nil))

		result, err := exporter.BulkExport(context.Background(), nil, BulkExportOpts{
			Format:    "json",
			OutputDir: t.TempDir(),
		})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		if result.FailedExports != 2 || result.SuccessfulExports != 0 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("progress updates flow through channel", func(t *testing.T) {
		server := setup()
		exporter := NewExporter(server, shared.NewLogger(nil))

		prog := make(chan ProgressUpdate, 64)
		_, err := exporter.BulkExport(context.Background(), prog, BulkExportOpts{
			Format:    "json",
			OutputDir: t.TempDir(),
		})
		if err != nil {
			t.Fatalf("BulkExport failed: %v", err)
		}
		close(prog)

		var phases []Phase
		for u := range prog {
			phases = append(phases, u.Phase)
		}
		if len(phases) == 0 {
			t.Fatal("no progress updates received")
		}
		if phases[0] != FetchCollections {
			t.Errorf("first phase = %s, want %s", phases[0], FetchCollections)
		}
	})
}
