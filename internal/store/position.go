package store

import (
	"database/sql"
	"fmt"
	"time"
)

// PlaybackPosition mirrors §3's ChannelPlaybackPosition: a per-channel
// singleton row recording the continuous timeline anchor and the
// last-served item, updated every ~5 items or 30 minutes by the
// broadcaster (C5) and read back on restart so playback resumes
// mid-stream instead of restarting the channel's timeline.
type PlaybackPosition struct {
	ChannelNumber      string
	PlayoutStartTime   time.Time
	LastItemIndex      int
	LastItemMediaID    string
	LastPositionUpdate time.Time
	TotalItemsWatched  int64
}

// LoadPlaybackPosition returns ok=false if the channel has never started
// (no row yet); the broadcaster treats that as "first start: anchor now".
func (s *Store) LoadPlaybackPosition(channelNumber string) (PlaybackPosition, bool, error) {
	row := s.db.QueryRow(`
		SELECT channel_number, playout_start_time, last_item_index, last_item_media_id, last_position_update, total_items_watched
		FROM channel_playback_position WHERE channel_number = ?
	`, channelNumber)
	var (
		p                               PlaybackPosition
		playoutStart, lastUpdate        string
		lastMediaID                     sql.NullString
	)
	err := row.Scan(&p.ChannelNumber, &playoutStart, &p.LastItemIndex, &lastMediaID, &lastUpdate, &p.TotalItemsWatched)
	if err == sql.ErrNoRows {
		return PlaybackPosition{}, false, nil
	}
	if err != nil {
		return PlaybackPosition{}, false, fmt.Errorf("store: load playback position %s: %w", channelNumber, err)
	}
	p.PlayoutStartTime = parseTimeOrZero(playoutStart)
	p.LastPositionUpdate = parseTimeOrZero(lastUpdate)
	p.LastItemMediaID = lastMediaID.String
	return p, true, nil
}

// SavePlaybackPosition upserts the singleton row. Per §7's PersistenceFailed
// policy, callers should warn-and-continue-in-memory on error rather than
// treat it as broadcaster-fatal.
func (s *Store) SavePlaybackPosition(p PlaybackPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO channel_playback_position (channel_number, playout_start_time, last_item_index, last_item_media_id, last_position_update, total_items_watched)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_number) DO UPDATE SET
			playout_start_time=excluded.playout_start_time, last_item_index=excluded.last_item_index,
			last_item_media_id=excluded.last_item_media_id, last_position_update=excluded.last_position_update,
			total_items_watched=excluded.total_items_watched
	`, p.ChannelNumber, p.PlayoutStartTime.UTC().Format(time.RFC3339), p.LastItemIndex, p.LastItemMediaID,
		p.LastPositionUpdate.UTC().Format(time.RFC3339), p.TotalItemsWatched)
	if err != nil {
		return fmt.Errorf("store: save playback position %s: %w", p.ChannelNumber, err)
	}
	return nil
}
