package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/shared"
)

func TestMDBListService(t *testing.T) {
	ctx := context.Background()
	spec := models.CollectionSpec{Name: "Top", Source: "mdblist", ListID: "user/top-movies"}

	t.Run("NewMDBListService defaults base URLs", func(t *testing.T) {
		svc := NewMDBListService("key", "", "", nil)
		if svc.listURL != defaultMDBListURL {
			t.Errorf("expected default list URL, got %s", svc.listURL)
		}
		if svc.apiURL != defaultMDBListAPIURL {
			t.Errorf("expected default API URL, got %s", svc.apiURL)
		}
	})

	t.Run("Name", func(t *testing.T) {
		if svc := NewMDBListService("key", "", "", nil); svc.Name() != "mdblist" {
			t.Errorf("expected name mdblist, got %s", svc.Name())
		}
	})

	t.Run("FetchList", func(t *testing.T) {
		t.Run("uses the public JSON endpoint", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/lists/user/top-movies/json" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				json.NewEncoder(w).Encode([]map[string]any{
					{"title": "Dune", "year": 2021, "imdb_id": "tt1160419", "tmdb_id": 438631},
					{"title": "Heat", "release_year": 1995, "imdbid": "0113277"},
				})
			}))
			defer srv.Close()

			svc := NewMDBListService("key", srv.URL, srv.URL, srv.Client())
			entries, err := svc.FetchList(ctx, spec)
			if err != nil {
				t.Fatalf("expected entries, got %v", err)
			}

			if len(entries) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(entries))
			}
			if entries[0].TMDbID != "438631" {
				t.Errorf("expected numeric tmdb_id rendered as string, got %q", entries[0].TMDbID)
			}
			if entries[1].IMDbID != "tt0113277" {
				t.Errorf("expected tt prefix added, got %q", entries[1].IMDbID)
			}
			if entries[1].Year != 1995 {
				t.Errorf("expected release_year fallback, got %d", entries[1].Year)
			}
			if entries[0].Rank != 1 || entries[1].Rank != 2 {
				t.Errorf("expected positional ranks, got %d and %d", entries[0].Rank, entries[1].Rank)
			}
		})

		t.Run("falls back to the API endpoint", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/lists/user/top-movies/json":
					w.WriteHeader(http.StatusInternalServerError)
				case "/lists/user/top-movies/items":
					if r.URL.Query().Get("apikey") != "key" {
						t.Error("expected apikey query parameter on API fallback")
					}
					json.NewEncoder(w).Encode(map[string]any{
						"items": []map[string]any{
							{"title": "Alien", "year": 1979, "imdb_id": "tt0078748"},
						},
					})
				default:
					t.Errorf("unexpected path %s", r.URL.Path)
				}
			}))
			defer srv.Close()

			svc := NewMDBListService("key", srv.URL, srv.URL, srv.Client())
			entries, err := svc.FetchList(ctx, spec)
			if err != nil {
				t.Fatalf("expected fallback entries, got %v", err)
			}
			if len(entries) != 1 || entries[0].Title != "Alien" {
				t.Errorf("expected Alien from API fallback, got %+v", entries)
			}
		})

		t.Run("applies the spec limit", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode([]map[string]any{
					{"title": "A", "imdb_id": "tt1"},
					{"title": "B", "imdb_id": "tt2"},
					{"title": "C", "imdb_id": "tt3"},
				})
			}))
			defer srv.Close()

			limited := spec
			limited.Limit = 2

			svc := NewMDBListService("key", srv.URL, srv.URL, srv.Client())
			entries, err := svc.FetchList(ctx, limited)
			if err != nil {
				t.Fatalf("expected entries, got %v", err)
			}
			if len(entries) != 2 {
				t.Errorf("expected limit of 2 applied, got %d", len(entries))
			}
		})

		t.Run("missing list maps to ErrListNotFound", func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer srv.Close()

			svc := NewMDBListService("key", srv.URL, srv.URL, srv.Client())
			_, err := svc.FetchList(ctx, spec)
			if !errors.Is(err, shared.ErrListNotFound) {
				t.Errorf("expected ErrListNotFound, got %v", err)
			}
		})
	})
}
