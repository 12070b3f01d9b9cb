package channelmgr

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/headend/streamtv/internal/broadcaster"
	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/config"
	"github.com/headend/streamtv/internal/resolver"
	"github.com/headend/streamtv/internal/schedule"
	"github.com/headend/streamtv/internal/store"
	"github.com/headend/streamtv/internal/transcoder"
)

// Manager owns channel_number -> *broadcaster.Broadcaster for every
// channel the store knows about. It is the single place that constructs a
// Broadcaster, so every caller (the IPTV/HDHomeRun handlers, the EPG
// generator) shares the exact same running instance per channel.
type Manager struct {
	cfg        *config.Config
	store      *store.Store
	resolver   *resolver.Resolver
	transcoder *transcoder.Transcoder

	mu         sync.RWMutex
	channels   map[string]catalog.Channel
	broadcasts map[string]*broadcaster.Broadcaster
}

// New builds a Manager; call Refresh to (re)load the channel list from
// the store before calling StartAllChannels.
func New(cfg *config.Config, st *store.Store, res *resolver.Resolver, tc *transcoder.Transcoder) *Manager {
	return &Manager{
		cfg:        cfg,
		store:      st,
		resolver:   res,
		transcoder: tc,
		channels:   make(map[string]catalog.Channel),
		broadcasts: make(map[string]*broadcaster.Broadcaster),
	}
}

// Refresh reloads the channel list from the store. Existing broadcasters
// for channels that still exist are left running untouched (their
// catalog.Channel snapshot updates, but in-flight advancers keep their own
// copy); broadcasters for channels that disappeared are stopped and
// dropped. Mirrors internal/tuner/server.go's UpdateChannels: swap the
// shared list in place, no restart.
func (m *Manager) Refresh() error {
	channels, err := m.store.LoadChannels()
	if err != nil {
		return fmt.Errorf("channelmgr: load channels: %w", err)
	}

	next := make(map[string]catalog.Channel, len(channels))
	for _, c := range channels {
		next[c.Number] = normalizeChannel(c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = next
	for number, b := range m.broadcasts {
		if _, ok := next[number]; !ok {
			b.Stop()
			delete(m.broadcasts, number)
		}
	}
	return nil
}

// normalizeChannel re-applies the enum normalization boundary defensively:
// §4.6 requires the channel manager itself to tolerate raw-string enum
// columns, independent of whether the store layer already normalized them.
func normalizeChannel(c catalog.Channel) catalog.Channel {
	c.PlayoutMode = catalog.NormalizePlayoutMode(c.PlayoutMode)
	return c
}

func (m *Manager) broadcasterFor(number string) (*broadcaster.Broadcaster, catalog.Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[number]
	if !ok {
		return nil, catalog.Channel{}, false
	}
	b, ok := m.broadcasts[number]
	if !ok {
		sp, err := newScheduleProvider(m.cfg.ScheduleRoot, ch, m.store)
		if err != nil {
			log.Printf("channelmgr: channel %s: schedule provider: %v", number, err)
			return nil, catalog.Channel{}, false
		}
		b = broadcaster.New(ch, m.resolver, m.transcoder, m.store, sp)
		m.broadcasts[number] = b
	}
	return b, ch, true
}

// StartAllChannels fires off a Start for every enabled CONTINUOUS channel.
// Per §5's "start-all is fire-and-forget per channel; failures of one
// channel do not block others", each channel starts in its own goroutine
// and a failure is only logged.
func (m *Manager) StartAllChannels(ctx context.Context) {
	m.mu.RLock()
	numbers := make([]string, 0, len(m.channels))
	for number, ch := range m.channels {
		if ch.Enabled && ch.PlayoutMode == catalog.PlayoutModeContinuous {
			numbers = append(numbers, number)
		}
	}
	m.mu.RUnlock()

	for _, number := range numbers {
		number := number
		b, _, ok := m.broadcasterFor(number)
		if !ok {
			continue
		}
		go func() {
			if err := b.Start(ctx); err != nil {
				log.Printf("channelmgr: channel %s: start failed: %v", number, err)
			}
		}()
	}
}

// GetChannelStream ensures a broadcaster exists for number (starting it if
// CONTINUOUS and not yet running, or lazily creating it if ON_DEMAND), then
// serves w as one attached client. Per §4.6, ON_DEMAND broadcasters are
// created lazily on first client.
func (m *Manager) GetChannelStream(ctx context.Context, number string, w http.ResponseWriter, reqID string) error {
	b, ch, ok := m.broadcasterFor(number)
	if !ok {
		return fmt.Errorf("channelmgr: unknown or disabled channel %q", number)
	}
	if !ch.Enabled {
		return fmt.Errorf("channelmgr: channel %q is disabled", number)
	}
	if ch.PlayoutMode == catalog.PlayoutModeContinuous && b.State() == broadcaster.StateIdle {
		if err := b.Start(ctx); err != nil {
			return err
		}
	}
	return b.Stream(ctx, w, reqID)
}

// Timeline returns the schedule and playoutStart C8 (EPG) should use for
// number, sharing exactly the broadcaster's own inputs when one is already
// running (§4.8 "same timeline math as C5"). If no broadcaster has
// started yet (e.g. an ON_DEMAND channel nobody has tuned to), it expands
// the schedule fresh and anchors playoutStart at the persisted playback
// position, or now if none exists.
func (m *Manager) Timeline(number string) (items []schedule.PlayoutItem, playoutStart time.Time, err error) {
	b, _, ok := m.broadcasterFor(number)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("channelmgr: unknown channel %q", number)
	}
	if items, playoutStart, ok := b.Timeline(); ok {
		return items, playoutStart, nil
	}

	now := time.Now()
	items, err = b.Schedule.Expand(now)
	if err != nil {
		return nil, time.Time{}, err
	}
	playoutStart = now
	if pos, ok, err := m.store.LoadPlaybackPosition(number); err == nil && ok && !pos.PlayoutStartTime.IsZero() {
		playoutStart = pos.PlayoutStartTime
	}
	return items, playoutStart, nil
}

// Channels returns a snapshot of every known channel, sorted by number by
// the caller if needed (this just returns the map's values).
func (m *Manager) Channels() []catalog.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]catalog.Channel, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, c)
	}
	return out
}

// Channel returns one channel by number.
func (m *Manager) Channel(number string) (catalog.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.channels[number]
	return c, ok
}

// TotalWatched reports a channel's persisted total-items-watched counter
// for operator troubleshooting (§4 supplemented features), or 0 if no
// broadcaster has been created for it yet.
func (m *Manager) TotalWatched(number string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.broadcasts[number]
	if !ok {
		return 0
	}
	return b.TotalWatched()
}

// BroadcasterState reports the running state of a channel's broadcaster,
// or broadcaster.StateIdle if none has been created yet.
func (m *Manager) BroadcasterState(number string) broadcaster.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.broadcasts[number]
	if !ok {
		return broadcaster.StateIdle
	}
	return b.State()
}

// StopAll stops every running broadcaster concurrently.
func (m *Manager) StopAll() {
	m.mu.RLock()
	broadcasts := make([]*broadcaster.Broadcaster, 0, len(m.broadcasts))
	for _, b := range m.broadcasts {
		broadcasts = append(broadcasts, b)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, b := range broadcasts {
		wg.Add(1)
		go func(b *broadcaster.Broadcaster) {
			defer wg.Done()
			b.Stop()
		}(b)
	}
	wg.Wait()
}
