package reconcile

import (
	"fmt"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/shared"
)

// UnresolvedEntry records a list entry that could not be mapped to exactly
// one library item, with the reason for reporting.
type UnresolvedEntry struct {
	Entry  models.ExternalListEntry
	Reason string
}

// ResolvedMembership is the matcher's output: resolved item IDs in list
// order, plus every entry that did not resolve.
type ResolvedMembership struct {
	ItemIDs    []string
	Unresolved []UnresolvedEntry
}

// matchStrategy attempts one identifier scheme against the index. It returns
// every candidate; the caller decides what multiple candidates mean.
type matchStrategy struct {
	kind    string
	attempt func(entry models.ExternalListEntry, index *models.LibraryIndex) []models.LibraryItem
}

var strategies = map[string]matchStrategy{
	"imdb_id": {
		kind: "imdb_id",
		attempt: func(entry models.ExternalListEntry, index *models.LibraryIndex) []models.LibraryItem {
			if entry.IMDbID == "" {
				return nil
			}
			if item, ok := index.ByIMDb[entry.IMDbID]; ok {
				return []models.LibraryItem{item}
			}
			return nil
		},
	},
	"tmdb_id": {
		kind: "tmdb_id",
		attempt: func(entry models.ExternalListEntry, index *models.LibraryIndex) []models.LibraryItem {
			if entry.TMDbID == "" {
				return nil
			}
			if item, ok := index.ByTMDb[entry.TMDbID]; ok {
				return []models.LibraryItem{item}
			}
			return nil
		},
	},
	"title": {
		kind: "title",
		attempt: func(entry models.ExternalListEntry, index *models.LibraryIndex) []models.LibraryItem {
			if entry.Title == "" {
				return nil
			}
			return index.ByTitle[shared.NormalizeTitle(entry.Title)]
		},
	},
}

// Resolve maps every list entry to at most one library item using the given
// strategy priority. The first strategy yielding exactly one candidate wins;
// a strategy yielding several candidates makes the entry unresolved rather
// than picking one arbitrarily, which keeps duplicate titles from
// contaminating collections. Duplicate resolutions of the same item are
// dropped so membership never contains the same ID twice.
//
// Resolve is a pure function of its inputs: the index is pre-fetched and no
// network calls happen here.
func Resolve(entries []models.ExternalListEntry, index *models.LibraryIndex, priority []string) ResolvedMembership {
	result := ResolvedMembership{}
	seen := make(map[string]bool)

	for _, entry := range entries {
		item, reason := resolveOne(entry, index, priority)
		if reason != "" {
			result.Unresolved = append(result.Unresolved, UnresolvedEntry{Entry: entry, Reason: reason})
			continue
		}
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		result.ItemIDs = append(result.ItemIDs, item.ID)
	}

	return result
}

func resolveOne(entry models.ExternalListEntry, index *models.LibraryIndex, priority []string) (models.LibraryItem, string) {
	for _, kind := range priority {
		strategy, ok := strategies[kind]
		if !ok {
			continue
		}

		candidates := strategy.attempt(entry, index)
		switch len(candidates) {
		case 0:
			continue
		case 1:
			return candidates[0], ""
		default:
			// Ambiguity is never arbitrarily broken.
			return models.LibraryItem{}, fmt.Sprintf("ambiguous title match, %d candidates", len(candidates))
		}
	}

	return models.LibraryItem{}, "no match under any strategy"
}
