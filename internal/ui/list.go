package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/collectarr/internal/models"
)

var (
	_ list.Item = collectionItem{}
	_ list.Item = movieItem{}
)

// collectionItem wraps [models.ServerCollection] to implement [list.Item].
type collectionItem struct {
	collection models.ServerCollection
}

func (i collectionItem) FilterValue() string { return i.collection.Name }
func (i collectionItem) Title() string       { return i.collection.Name }
func (i collectionItem) Description() string {
	desc := fmt.Sprintf("%d movies", i.collection.ItemCount)
	if !i.collection.Visible {
		desc = fmt.Sprintf("%s • hidden", desc)
	}
	return desc
}

// movieItem wraps [models.LibraryItem] to implement [list.Item].
type movieItem struct {
	item models.LibraryItem
}

func (i movieItem) FilterValue() string { return i.item.Name }
func (i movieItem) Title() string {
	if i.item.Year > 0 {
		return fmt.Sprintf("%s (%d)", i.item.Name, i.item.Year)
	}
	return i.item.Name
}
func (i movieItem) Description() string {
	if i.item.IMDbID != "" {
		return i.item.IMDbID
	}
	if i.item.TMDbID != "" {
		return "tmdb:" + i.item.TMDbID
	}
	return "no external IDs"
}
