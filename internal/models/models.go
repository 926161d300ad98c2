// package models defines the data model for collection reconciliation
package models

import (
	"fmt"
	"time"
)

// CollectionSpec is the declarative configuration for one managed collection.
// It is immutable for the duration of a run.
type CollectionSpec struct {
	Name   string `toml:"name"`
	Source string `toml:"source"` // "mdblist" or "trakt"

	// MDBList locator
	ListID string `toml:"list_id"`

	// Trakt locators: either a user list (username + list_slug) or a
	// category (trending, popular, watched, played, anticipated, boxoffice)
	Username   string `toml:"username"`
	ListSlug   string `toml:"list_slug"`
	Category   string `toml:"category"`
	TimePeriod string `toml:"time_period"` // weekly, monthly, yearly, all

	Limit     int    `toml:"limit"`
	Overview  string `toml:"overview"`
	Image     string `toml:"image"`
	SortBy    string `toml:"sort_by"` // rating, votes, title
	SortTitle string `toml:"sort_title"`

	// DisplayOrder controls how the server orders items inside the
	// collection (e.g. SortName, PremiereDate). Empty keeps the server default.
	DisplayOrder string `toml:"display_order"`

	Seasonal *SeasonalWindow `toml:"seasonal"`

	// Per-collection overrides of the global settings. Nil means inherit.
	MatchPriority []string `toml:"match_priority"`
	RemoveMissing *bool    `toml:"remove_missing"`
}

// SeasonalWindow is a recurring date range controlling collection visibility.
// Windows may wrap the year boundary (e.g. Dec 15 through Jan 5).
type SeasonalWindow struct {
	StartMonth int `toml:"start_month"`
	StartDay   int `toml:"start_day"`
	EndMonth   int `toml:"end_month"`
	EndDay     int `toml:"end_day"`
}

// Validate checks that the window bounds describe real calendar days.
func (w *SeasonalWindow) Validate() error {
	for _, b := range []struct {
		name  string
		month int
		day   int
	}{
		{"start", w.StartMonth, w.StartDay},
		{"end", w.EndMonth, w.EndDay},
	} {
		if b.month < 1 || b.month > 12 {
			return fmt.Errorf("seasonal %s_month must be 1-12, got %d", b.name, b.month)
		}
		if b.day < 1 || b.day > 31 {
			return fmt.Errorf("seasonal %s_day must be 1-31, got %d", b.name, b.day)
		}
	}
	return nil
}

// ExternalListEntry is one item from a fetched provider list.
type ExternalListEntry struct {
	Title   string
	Year    int
	IMDbID  string
	TMDbID  string
	TraktID string
	Rating  float64
	Votes   int
	Rank    int // position in the source list, 0 when the provider reports none
	Source  string
}

// LibraryItem is a movie as known to the media server.
type LibraryItem struct {
	ID     string
	Name   string
	Year   int
	IMDbID string
	TMDbID string
}

// LibraryIndex is the pre-fetched, read-only index of the server library
// used for matching. Titles are not guaranteed unique, so the title map
// holds slices.
type LibraryIndex struct {
	ByIMDb  map[string]LibraryItem
	ByTMDb  map[string]LibraryItem
	ByTitle map[string][]LibraryItem // keyed by normalized title
}

// NewLibraryIndex returns an empty index with all maps allocated.
func NewLibraryIndex() *LibraryIndex {
	return &LibraryIndex{
		ByIMDb:  make(map[string]LibraryItem),
		ByTMDb:  make(map[string]LibraryItem),
		ByTitle: make(map[string][]LibraryItem),
	}
}

// CollectionState is the server's current view of a named collection,
// fetched fresh each run.
type CollectionState struct {
	ID        string
	Name      string
	MemberIDs []string
	Visible   bool
	ImageTag  string // opaque server tag, empty when the collection has no image
}

// ServerCollection is a summary row for listing collections on the server.
type ServerCollection struct {
	ID        string
	Name      string
	ItemCount int
	Visible   bool
}

// ManagedCollection records a collection this tool created or updated,
// plus the metadata values it last wrote. The record is the marker that
// distinguishes managed collections from manually curated ones, and the
// stored values let the sync detect manual edits it must not overwrite.
type ManagedCollection struct {
	ID           string
	Name         string
	CollectionID string
	Overview     string
	SortTitle    string
	DisplayOrder string
	ImageSet     bool
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks required fields before persistence.
func (m *ManagedCollection) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("managed collection name is required")
	}
	if m.CollectionID == "" {
		return fmt.Errorf("managed collection server ID is required")
	}
	return nil
}
