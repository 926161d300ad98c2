// MDBList implementation of [ListProvider]
//
// Public lists are served from the JSON endpoint on mdblist.com; the
// authenticated API on api.mdblist.com is the fallback.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultMDBListURL    = "https://mdblist.com"
	defaultMDBListAPIURL = "https://api.mdblist.com"
)

// MDBListService implements [ListProvider] for MDBList.com.
type MDBListService struct {
	apiKey     string
	listURL    string
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewMDBListService creates an MDBList fetcher. Base URLs default to the
// public endpoints when empty; requests are limited to one per second to
// stay friendly to the free tier.
func NewMDBListService(apiKey, listURL, apiURL string, client *http.Client) *MDBListService {
	if listURL == "" {
		listURL = defaultMDBListURL
	}
	if apiURL == "" {
		apiURL = defaultMDBListAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &MDBListService{
		apiKey:     apiKey,
		listURL:    strings.TrimRight(listURL, "/"),
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
	}
}

func (m *MDBListService) Name() string {
	return "mdblist"
}

// mdblistItem tolerates the field-name variants MDBList uses across its
// JSON endpoint and API responses.
type mdblistItem struct {
	Title       string `json:"title"`
	Name        string `json:"name"`
	Year        int    `json:"year"`
	ReleaseYear int    `json:"release_year"`
	IMDbID      string `json:"imdb_id"`
	IMDbIDAlt   string `json:"imdbid"`
	TMDbID      any    `json:"tmdb_id"`
	TMDbIDAlt   any    `json:"tmdbid"`
	Rank        int    `json:"rank"`
	Type        string `json:"mediatype"`
}

// FetchList retrieves the entries for spec.ListID, preferring the public
// JSON endpoint and falling back to the API.
func (m *MDBListService) FetchList(ctx context.Context, spec models.CollectionSpec) ([]models.ExternalListEntry, error) {
	entries, err := m.fetchJSON(ctx, spec.ListID)
	if err != nil {
		entries, err = m.fetchAPI(ctx, spec.ListID)
		if err != nil {
			return nil, err
		}
	}

	if spec.Limit > 0 && len(entries) > spec.Limit {
		entries = entries[:spec.Limit]
	}

	return entries, nil
}

func (m *MDBListService) fetchJSON(ctx context.Context, listID string) ([]models.ExternalListEntry, error) {
	endpoint := fmt.Sprintf("%s/lists/%s/json", m.listURL, listID)

	body, err := m.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var items []mdblistItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unexpected response format from MDBList: %w", err)
	}

	return m.normalize(items), nil
}

func (m *MDBListService) fetchAPI(ctx context.Context, listID string) ([]models.ExternalListEntry, error) {
	endpoint := fmt.Sprintf("%s/lists/%s/items?apikey=%s", m.apiURL, listID, url.QueryEscape(m.apiKey))

	body, err := m.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// The API wraps items in an object on some list types and returns a
	// bare array on others.
	var items []mdblistItem
	if err := json.Unmarshal(body, &items); err != nil {
		var wrapped struct {
			Items []mdblistItem `json:"items"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("unexpected response format from MDBList API: %w", err)
		}
		items = wrapped.Items
	}

	return m.normalize(items), nil
}

func (m *MDBListService) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", shared.ErrListNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: mdblist returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

func (m *MDBListService) normalize(items []mdblistItem) []models.ExternalListEntry {
	entries := make([]models.ExternalListEntry, 0, len(items))
	for i, it := range items {
		title := it.Title
		if title == "" {
			title = it.Name
		}

		year := it.Year
		if year == 0 {
			year = it.ReleaseYear
		}

		rank := it.Rank
		if rank == 0 {
			rank = i + 1
		}

		entries = append(entries, models.ExternalListEntry{
			Title:  title,
			Year:   year,
			IMDbID: canonicalIMDbID(firstNonEmpty(it.IMDbID, it.IMDbIDAlt)),
			TMDbID: numericID(it.TMDbID, it.TMDbIDAlt),
			Rank:   rank,
			Source: "mdblist",
		})
	}

	return entries
}

// canonicalIMDbID ensures the tt prefix MDBList sometimes omits.
func canonicalIMDbID(id string) string {
	if id == "" {
		return ""
	}
	if !strings.HasPrefix(id, "tt") {
		return "tt" + id
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// numericID renders MDBList's number-or-string ID fields as a string.
func numericID(values ...any) string {
	for _, v := range values {
		switch id := v.(type) {
		case string:
			if id != "" {
				return id
			}
		case float64:
			if id != 0 {
				return fmt.Sprintf("%.0f", id)
			}
		}
	}
	return ""
}
