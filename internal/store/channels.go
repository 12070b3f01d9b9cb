package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/headend/streamtv/internal/catalog"
)

// LoadChannels returns every channel row, normalizing playout_mode (legacy
// rows may hold a raw string) per §6's "tolerate the DB returning raw
// strings for enum columns" requirement.
func (s *Store) LoadChannels() ([]catalog.Channel, error) {
	rows, err := s.db.Query(`SELECT number, name, group_name, enabled, logo, playout_mode, profile, hwaccel, filters_json, created_at, updated_at FROM channels ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("store: load channels: %w", err)
	}
	defer rows.Close()

	var out []catalog.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadChannel returns a single channel by number, ok=false if absent.
func (s *Store) LoadChannel(number string) (catalog.Channel, bool, error) {
	row := s.db.QueryRow(`SELECT number, name, group_name, enabled, logo, playout_mode, profile, hwaccel, filters_json, created_at, updated_at FROM channels WHERE number = ?`, number)
	c, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return catalog.Channel{}, false, nil
	}
	if err != nil {
		return catalog.Channel{}, false, fmt.Errorf("store: load channel %s: %w", number, err)
	}
	return c, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (catalog.Channel, error) {
	var (
		c                                catalog.Channel
		groupName, logo, profile, hwacc  sql.NullString
		filtersJSON                      sql.NullString
		enabled                          int
		playoutModeRaw                   string
		createdAt, updatedAt             string
	)
	if err := row.Scan(&c.Number, &c.Name, &groupName, &enabled, &logo, &playoutModeRaw, &profile, &hwacc, &filtersJSON, &createdAt, &updatedAt); err != nil {
		return catalog.Channel{}, err
	}
	c.Group = groupName.String
	c.Enabled = enabled != 0
	c.Logo = logo.String
	c.PlayoutMode = catalog.NormalizePlayoutMode(playoutModeRaw)
	c.Profile = profile.String
	c.Hwaccel = hwacc.String
	c.Filters = decodeFilters(filtersJSON.String)
	c.CreatedAt = parseTimeOrZero(createdAt)
	c.UpdatedAt = parseTimeOrZero(updatedAt)
	return c, nil
}

func decodeFilters(raw string) []catalog.ContentFilter {
	if raw == "" {
		return nil
	}
	var filters []catalog.ContentFilter
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil
	}
	return filters
}

func parseTimeOrZero(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// UpsertChannel inserts or replaces a channel row. Used by seeding/import
// tooling; the HTTP CRUD API itself is an out-of-scope external
// collaborator (spec.md §6).
func (s *Store) UpsertChannel(c catalog.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtersJSON, err := json.Marshal(c.Filters)
	if err != nil {
		return fmt.Errorf("store: marshal filters for channel %s: %w", c.Number, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := now
	if !c.CreatedAt.IsZero() {
		createdAt = c.CreatedAt.UTC().Format(time.RFC3339)
	}
	enabled := 0
	if c.Enabled {
		enabled = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO channels (number, name, group_name, enabled, logo, playout_mode, profile, hwaccel, filters_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			name=excluded.name, group_name=excluded.group_name, enabled=excluded.enabled,
			logo=excluded.logo, playout_mode=excluded.playout_mode, profile=excluded.profile,
			hwaccel=excluded.hwaccel, filters_json=excluded.filters_json, updated_at=excluded.updated_at
	`, c.Number, c.Name, c.Group, enabled, c.Logo, c.PlayoutMode.String(), c.Profile, c.Hwaccel, string(filtersJSON), createdAt, now)
	if err != nil {
		return fmt.Errorf("store: upsert channel %s: %w", c.Number, err)
	}
	return nil
}
