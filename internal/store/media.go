package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/headend/streamtv/internal/catalog"
)

func scanMediaItem(row rowScanner) (catalog.MediaItem, error) {
	var (
		m                                              catalog.MediaItem
		sourceRaw                                      string
		sourceID, title, description, thumbnail, uploader sql.NullString
		uploadDate                                     sql.NullString
		duration                                       sql.NullInt64
		metadataJSON                                   sql.NullString
	)
	if err := row.Scan(&m.ID, &sourceRaw, &sourceID, &m.URL, &title, &description, &duration, &thumbnail, &uploader, &uploadDate, &metadataJSON); err != nil {
		return catalog.MediaItem{}, err
	}
	m.Source = catalog.NormalizeSource(sourceRaw)
	m.SourceID = sourceID.String
	m.Title = title.String
	m.Description = description.String
	m.Thumbnail = thumbnail.String
	m.Uploader = uploader.String
	m.UploadDate = parseTimeOrZero(uploadDate.String)
	if duration.Valid {
		d := int(duration.Int64)
		m.Duration = &d
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		meta := map[string]any{}
		if err := json.Unmarshal([]byte(metadataJSON.String), &meta); err == nil {
			m.Metadata = meta
		}
	}
	return m, nil
}

// LoadMediaItem returns a single media item by ID, ok=false if absent.
func (s *Store) LoadMediaItem(id string) (catalog.MediaItem, bool, error) {
	row := s.db.QueryRow(`SELECT id, source, source_id, url, title, description, duration, thumbnail, uploader, upload_date, metadata_json FROM media_items WHERE id = ?`, id)
	m, err := scanMediaItem(row)
	if err == sql.ErrNoRows {
		return catalog.MediaItem{}, false, nil
	}
	if err != nil {
		return catalog.MediaItem{}, false, fmt.Errorf("store: load media item %s: %w", id, err)
	}
	return m, true, nil
}

// UpsertMediaItem inserts or replaces a media item row keyed by ID. The url
// column is UNIQUE (§3's invariant), so inserting a new ID with a URL that
// another row already holds fails.
func (s *Store) UpsertMediaItem(m catalog.MediaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	var err error
	if m.Metadata != nil {
		metadataJSON, err = json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal metadata for media item %s: %w", m.ID, err)
		}
	}
	var duration any
	if m.Duration != nil {
		duration = *m.Duration
	}
	_, err = s.db.Exec(`
		INSERT INTO media_items (id, source, source_id, url, title, description, duration, thumbnail, uploader, upload_date, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source, source_id=excluded.source_id, url=excluded.url, title=excluded.title,
			description=excluded.description, duration=excluded.duration, thumbnail=excluded.thumbnail,
			uploader=excluded.uploader, upload_date=excluded.upload_date, metadata_json=excluded.metadata_json
	`, m.ID, m.Source.String(), m.SourceID, m.URL, m.Title, m.Description, duration, m.Thumbnail, m.Uploader,
		m.UploadDate.UTC().Format(time.RFC3339), string(metadataJSON))
	if err != nil {
		return fmt.Errorf("store: upsert media item %s: %w", m.ID, err)
	}
	return nil
}
