package store

import (
	"database/sql"
	"fmt"

	"github.com/headend/streamtv/internal/catalog"
)

// LoadCollection returns a named collection with its MediaItems in stored
// position order, ok=false if the name doesn't exist. Deletion of a
// Collection must not delete the underlying MediaItems (§3's weak
// back-reference note); this method only ever reads.
func (s *Store) LoadCollection(name string) (catalog.Collection, bool, error) {
	row := s.db.QueryRow(`SELECT id, name, type, query FROM collections WHERE name = ?`, name)
	var col catalog.Collection
	var typeRaw string
	var query sql.NullString
	if err := row.Scan(&col.ID, &col.Name, &typeRaw, &query); err == sql.ErrNoRows {
		return catalog.Collection{}, false, nil
	} else if err != nil {
		return catalog.Collection{}, false, fmt.Errorf("store: load collection %s: %w", name, err)
	}
	col.Type = catalog.NormalizeCollectionType(typeRaw)
	col.Query = query.String

	rows, err := s.db.Query(`
		SELECT m.id, m.source, m.source_id, m.url, m.title, m.description, m.duration, m.thumbnail, m.uploader, m.upload_date, m.metadata_json
		FROM collection_items ci
		JOIN media_items m ON m.id = ci.media_item_id
		WHERE ci.collection_id = ?
		ORDER BY ci.position
	`, col.ID)
	if err != nil {
		return catalog.Collection{}, false, fmt.Errorf("store: load collection items %s: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMediaItem(rows)
		if err != nil {
			return catalog.Collection{}, false, fmt.Errorf("store: scan collection item %s: %w", name, err)
		}
		col.Items = append(col.Items, m)
	}
	return col, true, rows.Err()
}

// CollectionLookup adapts LoadCollection to schedule.CollectionLookup's
// (items, ok) shape, the seam the schedule engine (C3) uses to resolve a
// ContentEntry's collection name without knowing about SQLite at all.
func (s *Store) CollectionLookup(collectionName string) ([]catalog.MediaItem, bool) {
	col, ok, err := s.LoadCollection(collectionName)
	if err != nil || !ok {
		return nil, false
	}
	return col.Items, true
}

// ReplaceCollection overwrites a collection's membership (used by
// seeding/import tooling, not the out-of-scope CRUD API).
func (s *Store) ReplaceCollection(col catalog.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin replace collection %s: %w", col.Name, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO collections (id, name, type, query) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, type=excluded.type, query=excluded.query
	`, col.ID, col.Name, col.Type.String(), col.Query)
	if err != nil {
		return fmt.Errorf("store: upsert collection %s: %w", col.Name, err)
	}
	if _, err := tx.Exec(`DELETE FROM collection_items WHERE collection_id = ?`, col.ID); err != nil {
		return fmt.Errorf("store: clear collection items %s: %w", col.Name, err)
	}
	for i, item := range col.Items {
		if _, err := tx.Exec(`INSERT INTO collection_items (collection_id, position, media_item_id) VALUES (?, ?, ?)`, col.ID, i, item.ID); err != nil {
			return fmt.Errorf("store: insert collection item %s[%d]: %w", col.Name, i, err)
		}
	}
	return tx.Commit()
}
