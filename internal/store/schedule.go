package store

import (
	"fmt"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/schedule"
)

// dbPlaylistCollection is the synthetic collection name a DB-defined
// schedule's lookup resolves to; it never appears in the collections
// table, only in the ParsedSchedule this file builds in memory.
func dbPlaylistCollection(channelNumber string) string {
	return "__channel_" + channelNumber + "_schedule"
}

// LoadDBSchedule builds the DB-defined fallback ParsedSchedule for a
// channel (spec.md §3: Schedule is "either loaded from a YAML file ...
// or DB-defined"). It wraps the channel's channel_schedule_items rows in
// the same ParsedSchedule/ContentEntry/Op shape C3 already knows how to
// walk, so the engine has exactly one code path regardless of which
// source produced the schedule. ok=false means the channel has no
// DB-defined rows either (caller falls back to an empty schedule).
func (s *Store) LoadDBSchedule(channelNumber string) (*schedule.ParsedSchedule, bool, error) {
	items, err := s.loadChannelScheduleItems(channelNumber)
	if err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	const key = "main"
	ps := &schedule.ParsedSchedule{
		Name:            "db:" + channelNumber,
		ContentMap:      map[string]schedule.ContentEntry{key: {Key: key, Collection: dbPlaylistCollection(channelNumber), Order: catalog.OrderChronological}},
		Sequences:       map[string][]schedule.Op{key: {{Kind: schedule.OpAll, ContentKey: key}}},
		MainSequenceKey: key,
		Repeat:          true,
	}
	return ps, true, nil
}

// DBScheduleLookup wraps CollectionLookup so it also answers the synthetic
// per-channel playlist collection name LoadDBSchedule refers to.
func (s *Store) DBScheduleLookup(channelNumber string) schedule.CollectionLookup {
	synthetic := dbPlaylistCollection(channelNumber)
	return func(collectionName string) ([]catalog.MediaItem, bool) {
		if collectionName != synthetic {
			return s.CollectionLookup(collectionName)
		}
		items, err := s.loadChannelScheduleItems(channelNumber)
		if err != nil || len(items) == 0 {
			return nil, false
		}
		return items, true
	}
}

func (s *Store) loadChannelScheduleItems(channelNumber string) ([]catalog.MediaItem, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.source, m.source_id, m.url, m.title, m.description, m.duration, m.thumbnail, m.uploader, m.upload_date, m.metadata_json
		FROM channel_schedule_items csi
		JOIN media_items m ON m.id = csi.media_item_id
		WHERE csi.channel_number = ?
		ORDER BY csi.position
	`, channelNumber)
	if err != nil {
		return nil, fmt.Errorf("store: load channel schedule items %s: %w", channelNumber, err)
	}
	defer rows.Close()
	var out []catalog.MediaItem
	for rows.Next() {
		m, err := scanMediaItem(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan channel schedule item %s: %w", channelNumber, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ReplaceChannelSchedule overwrites a channel's DB-defined playlist.
func (s *Store) ReplaceChannelSchedule(channelNumber string, mediaItemIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin replace channel schedule %s: %w", channelNumber, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM channel_schedule_items WHERE channel_number = ?`, channelNumber); err != nil {
		return fmt.Errorf("store: clear channel schedule %s: %w", channelNumber, err)
	}
	for i, id := range mediaItemIDs {
		if _, err := tx.Exec(`INSERT INTO channel_schedule_items (channel_number, position, media_item_id) VALUES (?, ?, ?)`, channelNumber, i, id); err != nil {
			return fmt.Errorf("store: insert channel schedule item %s[%d]: %w", channelNumber, i, err)
		}
	}
	return tx.Commit()
}
