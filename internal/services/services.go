// package services defines interfaces for the external collaborators
//
// Emby (media server), MDBList and Trakt (list providers)
package services

import (
	"context"

	"github.com/desertthunder/collectarr/internal/models"
)

// MediaServer defines the interface for the media server that owns the
// library and its collections. The reconciliation engine only talks to this
// interface; [EmbyService] is the production implementation.
type MediaServer interface {
	// Ping verifies connectivity and authentication with the server.
	Ping(ctx context.Context) error

	// FetchLibraryIndex retrieves every movie in the library and returns it
	// indexed by IMDb ID, TMDb ID and normalized title. Built once per run.
	FetchLibraryIndex(ctx context.Context) (*models.LibraryIndex, error)

	// FetchCollectionState returns the server's current view of the named
	// collection. Returns an error wrapping shared.ErrCollectionNotFound
	// when the collection does not exist; authentication and connectivity
	// failures are surfaced distinctly.
	FetchCollectionState(ctx context.Context, name string) (*models.CollectionState, error)

	// ListCollections returns a summary of every collection on the server.
	ListCollections(ctx context.Context) ([]models.ServerCollection, error)

	// CreateCollection creates a new collection containing the given items
	// and returns its server ID.
	CreateCollection(ctx context.Context, name string, itemIDs []string) (string, error)

	// AddToCollection adds items to an existing collection.
	AddToCollection(ctx context.Context, collectionID string, itemIDs []string) error

	// RemoveFromCollection removes items from a collection. The items
	// themselves are never deleted.
	RemoveFromCollection(ctx context.Context, collectionID string, itemIDs []string) error

	// UpdateMetadata writes collection-level metadata fields.
	UpdateMetadata(ctx context.Context, collectionID string, meta CollectionMetadata) error

	// SetImage uploads a primary image for the collection from a local file.
	SetImage(ctx context.Context, collectionID string, imagePath string) error

	// SetVisibility hides or shows a collection without touching membership.
	SetVisibility(ctx context.Context, collectionID string, visible bool) error

	// DeleteCollection deletes the collection container (not its movies).
	DeleteCollection(ctx context.Context, collectionID string) error

	// Name returns the server implementation name (e.g. "Emby").
	Name() string
}

// CollectionMetadata carries the optional metadata fields a spec can manage.
// Empty fields are left untouched on the server.
type CollectionMetadata struct {
	Overview     string
	SortTitle    string
	DisplayOrder string
}

// ListProvider defines the interface for external list sources.
type ListProvider interface {
	// FetchList retrieves the ordered entries for the spec's locator.
	// "list not found/private" is surfaced as shared.ErrListNotFound,
	// distinct from transport failures.
	FetchList(ctx context.Context, spec models.CollectionSpec) ([]models.ExternalListEntry, error)

	// Name returns the provider tag used in spec sources (e.g. "mdblist").
	Name() string
}
