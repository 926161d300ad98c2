// Emby API implementation of [MediaServer]
//
// Endpoints follow the Emby REST API: /Items for queries, /Collections for
// membership, /Items/{id} for metadata and deletion.
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/shared"
)

// membership calls are batched to stay under URL length limits
const embyBatchSize = 50

// EmbyService implements [MediaServer] against an Emby server using API key
// authentication (X-Emby-Token header).
type EmbyService struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client
}

// NewEmbyService creates a new Emby client for the given server URL and API key.
func NewEmbyService(baseURL, apiKey, userID string, client *http.Client) *EmbyService {
	if client == nil {
		client = http.DefaultClient
	}

	return &EmbyService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		userID:     userID,
		httpClient: client,
	}
}

func (e *EmbyService) Name() string {
	return "Emby"
}

// embyItem is the subset of Emby's item model the sync cares about.
type embyItem struct {
	ID             string            `json:"Id"`
	Name           string            `json:"Name"`
	Type           string            `json:"Type"`
	ProductionYear int               `json:"ProductionYear"`
	ChildCount     int               `json:"ChildCount"`
	IsHidden       bool              `json:"IsHidden"`
	ProviderIDs    map[string]string `json:"ProviderIds"`
	ImageTags      map[string]string `json:"ImageTags"`
}

type embyItemsResponse struct {
	Items            []embyItem `json:"Items"`
	TotalRecordCount int        `json:"TotalRecordCount"`
}

type embySystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
}

// doRequest performs an authenticated request against the Emby API and
// decodes a JSON response into result when result is non-nil. Authentication
// failures map to shared.ErrAuthFailed so callers can tell them apart from
// "not found" and transport errors.
func (e *EmbyService) doRequest(ctx context.Context, method, endpoint string, params url.Values, body []byte, result any) error {
	apiURL := e.baseURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Emby-Token", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: emby returned status %d", shared.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrItemNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: emby returned status %d for %s %s", shared.ErrAPIRequest, resp.StatusCode, method, endpoint)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Ping verifies connectivity by fetching server info.
func (e *EmbyService) Ping(ctx context.Context) error {
	var info embySystemInfo
	if err := e.doRequest(ctx, http.MethodGet, "/System/Info", nil, nil, &info); err != nil {
		return err
	}
	return nil
}

// FetchLibraryIndex retrieves all movies with their provider IDs and builds
// the lookup maps used by the matcher. Title keys are normalized; duplicate
// titles accumulate so the matcher can refuse ambiguous matches.
func (e *EmbyService) FetchLibraryIndex(ctx context.Context) (*models.LibraryIndex, error) {
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("IncludeItemTypes", "Movie")
	params.Set("Fields", "ProviderIds,ProductionYear")

	var resp embyItemsResponse
	if err := e.doRequest(ctx, http.MethodGet, "/Items", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch library: %w", err)
	}

	items := make([]models.LibraryItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, models.LibraryItem{
			ID:     it.ID,
			Name:   it.Name,
			Year:   it.ProductionYear,
			IMDbID: it.ProviderIDs["Imdb"],
			TMDbID: it.ProviderIDs["Tmdb"],
		})
	}
	index := shared.BuildLibraryIndex(items)

	return index, nil
}

// collectionByName finds a BoxSet by exact name, case-insensitive. The
// search term query is a prefix filter on the server side, so results are
// re-filtered for an exact match; the first exact match wins.
func (e *EmbyService) collectionByName(ctx context.Context, name string) (*embyItem, error) {
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("IncludeItemTypes", "BoxSet")
	params.Set("SearchTerm", name)

	var resp embyItemsResponse
	if err := e.doRequest(ctx, http.MethodGet, "/Items", params, nil, &resp); err != nil {
		return nil, err
	}

	for _, it := range resp.Items {
		if strings.EqualFold(it.Name, name) {
			found := it
			return &found, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", shared.ErrCollectionNotFound, name)
}

// FetchCollectionState returns the current membership, visibility and image
// state for the named collection.
func (e *EmbyService) FetchCollectionState(ctx context.Context, name string) (*models.CollectionState, error) {
	collection, err := e.collectionByName(ctx, name)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ParentId", collection.ID)
	params.Set("Recursive", "true")

	var members embyItemsResponse
	if err := e.doRequest(ctx, http.MethodGet, "/Items", params, nil, &members); err != nil {
		return nil, fmt.Errorf("failed to fetch collection items: %w", err)
	}

	state := &models.CollectionState{
		ID:       collection.ID,
		Name:     collection.Name,
		Visible:  !collection.IsHidden,
		ImageTag: collection.ImageTags["Primary"],
	}
	for _, it := range members.Items {
		state.MemberIDs = append(state.MemberIDs, it.ID)
	}

	return state, nil
}

// ListCollections returns every BoxSet on the server.
func (e *EmbyService) ListCollections(ctx context.Context) ([]models.ServerCollection, error) {
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("IncludeItemTypes", "BoxSet")

	var resp embyItemsResponse
	if err := e.doRequest(ctx, http.MethodGet, "/Items", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	collections := make([]models.ServerCollection, 0, len(resp.Items))
	for _, it := range resp.Items {
		collections = append(collections, models.ServerCollection{
			ID:        it.ID,
			Name:      it.Name,
			ItemCount: it.ChildCount,
			Visible:   !it.IsHidden,
		})
	}

	return collections, nil
}

// CreateCollection creates a new BoxSet with the given members.
func (e *EmbyService) CreateCollection(ctx context.Context, name string, itemIDs []string) (string, error) {
	params := url.Values{}
	params.Set("Name", name)
	params.Set("Ids", strings.Join(itemIDs, ","))
	params.Set("IsLocked", "false")

	var created struct {
		ID string `json:"Id"`
	}
	if err := e.doRequest(ctx, http.MethodPost, "/Collections", params, nil, &created); err != nil {
		return "", fmt.Errorf("failed to create collection %q: %w", name, err)
	}

	return created.ID, nil
}

// AddToCollection adds items to a collection in batches.
func (e *EmbyService) AddToCollection(ctx context.Context, collectionID string, itemIDs []string) error {
	return e.modifyMembership(ctx, http.MethodPost, collectionID, itemIDs)
}

// RemoveFromCollection removes items from a collection in batches.
func (e *EmbyService) RemoveFromCollection(ctx context.Context, collectionID string, itemIDs []string) error {
	return e.modifyMembership(ctx, http.MethodDelete, collectionID, itemIDs)
}

func (e *EmbyService) modifyMembership(ctx context.Context, method, collectionID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	endpoint := fmt.Sprintf("/Collections/%s/Items", collectionID)
	for start := 0; start < len(itemIDs); start += embyBatchSize {
		end := start + embyBatchSize
		if end > len(itemIDs) {
			end = len(itemIDs)
		}

		params := url.Values{}
		params.Set("Ids", strings.Join(itemIDs[start:end], ","))
		if err := e.doRequest(ctx, method, endpoint, params, nil, nil); err != nil {
			return fmt.Errorf("failed to update collection membership: %w", err)
		}
	}

	return nil
}

// UpdateMetadata writes overview, sort title and display order onto the
// collection item. Empty fields are preserved from the server's copy.
func (e *EmbyService) UpdateMetadata(ctx context.Context, collectionID string, meta CollectionMetadata) error {
	// Emby's item update endpoint replaces the full metadata object, so the
	// current copy is fetched and patched.
	var current map[string]any
	if err := e.doRequest(ctx, http.MethodGet, "/Items/"+collectionID, nil, nil, &current); err != nil {
		return fmt.Errorf("failed to fetch collection metadata: %w", err)
	}

	if meta.Overview != "" {
		current["Overview"] = meta.Overview
	}
	if meta.SortTitle != "" {
		current["ForcedSortName"] = meta.SortTitle
		current["SortName"] = meta.SortTitle
	}
	if meta.DisplayOrder != "" {
		current["DisplayOrder"] = meta.DisplayOrder
	}

	body, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := e.doRequest(ctx, http.MethodPost, "/Items/"+collectionID, nil, body, nil); err != nil {
		return fmt.Errorf("failed to update collection metadata: %w", err)
	}

	return nil
}

// SetImage uploads the file at imagePath as the collection's primary image.
// The Emby image endpoint expects a base64-encoded body.
func (e *EmbyService) SetImage(ctx context.Context, collectionID, imagePath string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image file: %w", err)
	}

	encoded := []byte(base64.StdEncoding.EncodeToString(data))
	endpoint := fmt.Sprintf("/Items/%s/Images/Primary", collectionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Emby-Token", e.apiKey)
	req.Header.Set("Content-Type", imageContentType(imagePath))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: image upload returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return nil
}

func imageContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// SetVisibility toggles the collection's hidden flag. Membership is never
// touched here.
func (e *EmbyService) SetVisibility(ctx context.Context, collectionID string, visible bool) error {
	var current map[string]any
	if err := e.doRequest(ctx, http.MethodGet, "/Items/"+collectionID, nil, nil, &current); err != nil {
		return fmt.Errorf("failed to fetch collection metadata: %w", err)
	}

	current["IsHidden"] = !visible

	body, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := e.doRequest(ctx, http.MethodPost, "/Items/"+collectionID, nil, body, nil); err != nil {
		return fmt.Errorf("failed to update collection visibility: %w", err)
	}

	return nil
}

// DeleteCollection removes the BoxSet itself. Library items are untouched.
func (e *EmbyService) DeleteCollection(ctx context.Context, collectionID string) error {
	if err := e.doRequest(ctx, http.MethodDelete, "/Items/"+collectionID, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}
