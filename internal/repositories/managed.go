package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/shared"
)

// ManagedCollectionRepository persists which server collections this tool
// manages. It satisfies the sync engine's tracker interface: lookups are by
// collection name (case-insensitive, matching server behavior) and deletes
// are soft so a forgotten record keeps its history.
type ManagedCollectionRepository struct {
	db *sql.DB
}

// NewManagedCollectionRepository creates a repository with the given database connection
func NewManagedCollectionRepository(db *sql.DB) *ManagedCollectionRepository {
	return &ManagedCollectionRepository{db: db}
}

// Record upserts the managed record for a collection. An existing live
// record with the same name is updated in place; otherwise a new row is
// inserted with a generated ID and sequence.
func (r *ManagedCollectionRepository) Record(mc *models.ManagedCollection) error {
	if err := mc.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	existing, err := r.Get(mc.Name)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing != nil {
		mc.ID = existing.ID
		mc.CreatedAt = existing.CreatedAt
		mc.UpdatedAt = now

		query := `
			UPDATE managed_collections
			SET collection_id = ?, overview = ?, sort_title = ?, display_order = ?, image_set = ?, last_synced_at = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL
		`
		_, err = r.db.Exec(query,
			mc.CollectionID, mc.Overview, mc.SortTitle, mc.DisplayOrder, mc.ImageSet, mc.LastSyncedAt, mc.UpdatedAt, mc.ID)
		if err != nil {
			return fmt.Errorf("failed to update managed collection: %w", err)
		}
		return nil
	}

	sequence, err := NextSequence(r.db, "managed_collections")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	mc.ID = shared.GenerateID()
	mc.CreatedAt = now
	mc.UpdatedAt = now

	query := `
		INSERT INTO managed_collections (id, sequence, name, collection_id, overview, sort_title, display_order, image_set, last_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		mc.ID, sequence, mc.Name, mc.CollectionID, mc.Overview, mc.SortTitle, mc.DisplayOrder, mc.ImageSet,
		mc.LastSyncedAt, mc.CreatedAt, mc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert managed collection: %w", err)
	}

	return nil
}

// Get retrieves a managed record by collection name, excluding soft-deleted
// records. Returns nil without error when the collection is not managed.
func (r *ManagedCollectionRepository) Get(name string) (*models.ManagedCollection, error) {
	query := `
		SELECT id, name, collection_id, overview, sort_title, display_order, image_set, last_synced_at, created_at, updated_at
		FROM managed_collections
		WHERE name = ? AND deleted_at IS NULL
	`

	mc, err := r.scanOne(r.db.QueryRow(query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get managed collection: %w", err)
	}
	return mc, nil
}

// Names returns every live managed collection name in sequence order.
func (r *ManagedCollectionRepository) Names() ([]string, error) {
	query := `
		SELECT name FROM managed_collections
		WHERE deleted_at IS NULL
		ORDER BY sequence
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list managed collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan managed collection name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// List returns every live managed record in sequence order.
func (r *ManagedCollectionRepository) List() ([]*models.ManagedCollection, error) {
	query := `
		SELECT id, name, collection_id, overview, sort_title, display_order, image_set, last_synced_at, created_at, updated_at
		FROM managed_collections
		WHERE deleted_at IS NULL
		ORDER BY sequence
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list managed collections: %w", err)
	}
	defer rows.Close()

	var out []*models.ManagedCollection
	for rows.Next() {
		mc, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// Forget soft-deletes the managed record for a collection name. Forgetting
// an unmanaged name is a no-op.
func (r *ManagedCollectionRepository) Forget(name string) error {
	query := `
		UPDATE managed_collections
		SET deleted_at = ?
		WHERE name = ? AND deleted_at IS NULL
	`

	_, err := r.db.Exec(query, time.Now(), name)
	if err != nil {
		return fmt.Errorf("failed to forget managed collection: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func (r *ManagedCollectionRepository) scanOne(row *sql.Row) (*models.ManagedCollection, error) {
	return scanManaged(row)
}

func (r *ManagedCollectionRepository) scanRow(rows *sql.Rows) (*models.ManagedCollection, error) {
	mc, err := scanManaged(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan managed collection: %w", err)
	}
	return mc, nil
}

func scanManaged(row scannable) (*models.ManagedCollection, error) {
	mc := &models.ManagedCollection{}
	var lastSynced sql.NullTime

	err := row.Scan(&mc.ID, &mc.Name, &mc.CollectionID, &mc.Overview, &mc.SortTitle,
		&mc.DisplayOrder, &mc.ImageSet, &lastSynced, &mc.CreatedAt, &mc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastSynced.Valid {
		mc.LastSyncedAt = lastSynced.Time
	}
	return mc, nil
}
