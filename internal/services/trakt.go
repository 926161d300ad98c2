// Trakt.tv implementation of [ListProvider]
//
// Trakt API response types based on https://trakt.docs.apiary.io/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultTraktURL = "https://api.trakt.tv"
	traktAPIVersion = "2"
	traktPageSize   = 100 // Trakt caps list endpoints at 100 per page
)

// categories Trakt exposes for movies
var traktCategories = map[string]bool{
	"trending":    true,
	"popular":     true,
	"watched":     true,
	"played":      true,
	"anticipated": true,
	"boxoffice":   true,
}

// categories whose endpoint takes a time period segment
var traktPeriodCategories = map[string]bool{
	"watched": true,
	"played":  true,
}

// TraktService implements [ListProvider] for Trakt.tv. Requests carry the
// client ID header; when an access token is configured the client is wrapped
// with [oauth2] so private user lists resolve too.
type TraktService struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewTraktService creates a Trakt fetcher. The base URL defaults to the
// public API when empty.
func NewTraktService(clientID, accessToken, baseURL string, client *http.Client) *TraktService {
	if baseURL == "" {
		baseURL = defaultTraktURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	if accessToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = oauth2.NewClient(ctx, src)
	}

	return &TraktService{
		clientID:   clientID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
	}
}

func (t *TraktService) Name() string {
	return "trakt"
}

type traktIDs struct {
	Trakt int    `json:"trakt"`
	Slug  string `json:"slug"`
	IMDb  string `json:"imdb"`
	TMDb  int    `json:"tmdb"`
}

// TraktMovie represents a Trakt movie object.
type TraktMovie struct {
	Title  string   `json:"title"`
	Year   int      `json:"year"`
	IDs    traktIDs `json:"ids"`
	Rating float64  `json:"rating"`
	Votes  int      `json:"votes"`
}

// traktListItem tolerates the two shapes Trakt returns: a bare movie object
// (popular) or a wrapper carrying the movie plus context (trending, lists).
type traktListItem struct {
	Rank  int         `json:"rank"`
	Movie *TraktMovie `json:"movie"`

	// bare-movie shape
	Title  string   `json:"title"`
	Year   int      `json:"year"`
	IDs    traktIDs `json:"ids"`
	Rating float64  `json:"rating"`
	Votes  int      `json:"votes"`
}

func (i traktListItem) movie() TraktMovie {
	if i.Movie != nil {
		return *i.Movie
	}
	return TraktMovie{Title: i.Title, Year: i.Year, IDs: i.IDs, Rating: i.Rating, Votes: i.Votes}
}

// FetchList retrieves entries for the spec: a user list when username and
// list_slug are set, otherwise a movie category with pagination.
func (t *TraktService) FetchList(ctx context.Context, spec models.CollectionSpec) ([]models.ExternalListEntry, error) {
	if spec.Username != "" && spec.ListSlug != "" {
		return t.fetchUserList(ctx, spec.Username, spec.ListSlug, spec.Limit)
	}

	category := spec.Category
	if category == "" {
		category = "trending"
	}
	limit := spec.Limit
	if limit <= 0 {
		limit = 50
	}
	period := spec.TimePeriod
	if period == "" {
		period = "weekly"
	}

	return t.fetchCategory(ctx, category, period, limit)
}

func (t *TraktService) fetchCategory(ctx context.Context, category, period string, limit int) ([]models.ExternalListEntry, error) {
	if !traktCategories[category] {
		return nil, fmt.Errorf("%w: unknown trakt category %q", shared.ErrInvalidArgument, category)
	}

	endpoint := fmt.Sprintf("/movies/%s", category)
	if traktPeriodCategories[category] {
		endpoint = fmt.Sprintf("/movies/%s/%s", category, period)
	}

	perPage := traktPageSize
	if limit < perPage {
		perPage = limit
	}

	var entries []models.ExternalListEntry
	for page := 1; len(entries) < limit; page++ {
		params := url.Values{}
		params.Set("extended", "full")
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(perPage))

		var items []traktListItem
		if err := t.get(ctx, endpoint, params, &items); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			break
		}

		for _, it := range items {
			entries = append(entries, t.normalize(it.movie(), it.Rank, len(entries)+1))
			if len(entries) >= limit {
				break
			}
		}

		// short page means the category is exhausted
		if len(items) < perPage {
			break
		}
	}

	return entries, nil
}

func (t *TraktService) fetchUserList(ctx context.Context, username, slug string, limit int) ([]models.ExternalListEntry, error) {
	endpoint := fmt.Sprintf("/users/%s/lists/%s/items/movies", username, slug)
	params := url.Values{}
	params.Set("extended", "full")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var items []traktListItem
	if err := t.get(ctx, endpoint, params, &items); err != nil {
		return nil, err
	}

	entries := make([]models.ExternalListEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, t.normalize(it.movie(), it.Rank, len(entries)+1))
		if limit > 0 && len(entries) >= limit {
			break
		}
	}

	return entries, nil
}

func (t *TraktService) get(ctx context.Context, endpoint string, params url.Values, result any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	apiURL := t.baseURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", traktAPIVersion)
	req.Header.Set("trakt-api-key", t.clientID)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: trakt returned status %d", shared.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrListNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: trakt returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (t *TraktService) normalize(movie TraktMovie, rank, position int) models.ExternalListEntry {
	if rank == 0 {
		rank = position
	}

	entry := models.ExternalListEntry{
		Title:  movie.Title,
		Year:   movie.Year,
		IMDbID: movie.IDs.IMDb,
		Rating: movie.Rating,
		Votes:  movie.Votes,
		Rank:   rank,
		Source: "trakt",
	}
	if movie.IDs.TMDb != 0 {
		entry.TMDbID = strconv.Itoa(movie.IDs.TMDb)
	}
	if movie.IDs.Trakt != 0 {
		entry.TraktID = strconv.Itoa(movie.IDs.Trakt)
	}

	return entry
}
