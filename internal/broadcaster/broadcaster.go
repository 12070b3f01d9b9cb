package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/obs"
	"github.com/headend/streamtv/internal/resolver"
	"github.com/headend/streamtv/internal/schedule"
	"github.com/headend/streamtv/internal/store"
	"github.com/headend/streamtv/internal/transcoder"
)

// persistEveryItems and persistEvery are §4.5's continuous-mode
// persistence cadence: whichever comes first.
const (
	persistEveryItems = 5
	persistEvery      = 30 * time.Minute
	advancerJoinWait  = 10 * time.Second
	attachWaitForLive = 200 * time.Millisecond
	liveReadTimeout   = 2 * time.Second
	onDemandFirstByte = 30 * time.Second
	onDemandMaxFails  = 10
)

var errPrewarmFull = errors.New("broadcaster: prewarm buffer full")

// ScheduleProvider expands a channel's schedule into playout items as of
// now. It is the seam between C5 and whatever produced the schedule (a
// YAML ParsedSchedule run through C3, or a DB-defined one) -- the
// broadcaster only ever sees the resulting slice.
type ScheduleProvider interface {
	Expand(now time.Time) ([]schedule.PlayoutItem, error)
}

// Broadcaster is one channel's C5 instance: at most one continuous
// advancer, fanned out to any number of attached clients, or (in
// ON_DEMAND mode) one independent advancer per client.
type Broadcaster struct {
	Channel    catalog.Channel
	Resolver   *resolver.Resolver
	Transcoder *transcoder.Transcoder
	Store      *store.Store
	Schedule   ScheduleProvider

	mu            sync.Mutex
	state         State
	clients       map[*clientQueue]struct{}
	prewarm       *prewarmBuffer
	playoutStart  time.Time
	items         []schedule.PlayoutItem
	currentIndex  int
	totalWatched  int64
	cancel        context.CancelFunc
	done          chan struct{}
}

// New builds a Broadcaster in state IDLE. Call Start to begin a
// CONTINUOUS channel's advancer; ON_DEMAND channels need no Start work
// beyond marking themselves RUNNING so clients may attach.
func New(ch catalog.Channel, res *resolver.Resolver, tc *transcoder.Transcoder, st *store.Store, sp ScheduleProvider) *Broadcaster {
	return &Broadcaster{
		Channel:    ch,
		Resolver:   res,
		Transcoder: tc,
		Store:      st,
		Schedule:   sp,
		clients:    make(map[*clientQueue]struct{}),
		prewarm:    newPrewarmBuffer(),
	}
}

// State reports the current lifecycle state.
func (b *Broadcaster) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ClientCount reports the number of currently attached continuous-mode
// clients (always 0 for ON_DEMAND, which has no shared fan-out).
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Timeline returns the running advancer's current schedule and
// playoutStart, so C8 (EPG) can compute absolute item boundaries with the
// exact same inputs C5 is using (§4.8). ok is false when the broadcaster
// has never successfully started (no timeline to share yet); callers
// should fall back to a fresh Schedule.Expand in that case.
func (b *Broadcaster) Timeline() (items []schedule.PlayoutItem, playoutStart time.Time, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil, time.Time{}, false
	}
	return b.items, b.playoutStart, true
}

// TotalWatched reports the broadcaster's persisted total-items-watched
// counter for operator troubleshooting (§4 supplemented features).
func (b *Broadcaster) TotalWatched() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalWatched
}

// Start begins the continuous-mode advancer. A no-op if already started,
// or if the channel is ON_DEMAND (those spin up lazily per client).
func (b *Broadcaster) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateIdle {
		b.mu.Unlock()
		return nil
	}
	b.state = StateStarting
	b.mu.Unlock()

	if b.Channel.PlayoutMode != catalog.PlayoutModeContinuous {
		b.mu.Lock()
		b.state = StateRunning
		b.mu.Unlock()
		obs.ActiveBroadcasters.Inc()
		return nil
	}

	now := time.Now()
	playoutStart := now
	var totalWatched int64
	if b.Store != nil {
		if pos, ok, err := b.Store.LoadPlaybackPosition(b.Channel.Number); err == nil && ok && !pos.PlayoutStartTime.IsZero() {
			playoutStart = pos.PlayoutStartTime
			totalWatched = pos.TotalItemsWatched
		}
	}

	items, err := b.Schedule.Expand(now)
	if err != nil || len(items) == 0 {
		log.Printf("broadcaster: channel %s: empty schedule, aborting start (err=%v)", b.Channel.Number, err)
		b.mu.Lock()
		b.state = StateIdle
		b.mu.Unlock()
		return fmt.Errorf("broadcaster: channel %s has no schedule items", b.Channel.Number)
	}
	idx, _ := currentPosition(items, playoutStart, now)

	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.playoutStart = playoutStart
	b.items = items
	b.currentIndex = idx
	b.totalWatched = totalWatched
	b.cancel = cancel
	b.done = make(chan struct{})
	b.state = StateRunning
	b.mu.Unlock()
	obs.ActiveBroadcasters.Inc()

	go b.runContinuous(runCtx)
	return nil
}

// Stop cancels the advancer (10s join timeout), persists current
// position, and clears every attached client queue. playoutStart is
// preserved so a later Start resumes the timeline instead of restarting
// it.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	if b.state == StateIdle {
		b.mu.Unlock()
		return
	}
	b.state = StateStopping
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(advancerJoinWait):
			log.Printf("broadcaster: channel %s: advancer join timed out after %s", b.Channel.Number, advancerJoinWait)
		}
	}

	b.mu.Lock()
	for q := range b.clients {
		q.close()
		delete(b.clients, q)
	}
	b.cancel = nil
	b.done = nil
	b.state = StateIdle
	b.mu.Unlock()
	obs.ActiveBroadcasters.Dec()
}

func (b *Broadcaster) setCurrentIndex(idx int) {
	b.mu.Lock()
	b.currentIndex = idx
	b.mu.Unlock()
}

// fanOut pushes chunk to every attached client queue (non-blocking);
// clients whose queue is full or closed are dropped, assumed
// disconnected, per §4.5/§5.
func (b *Broadcaster) fanOut(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for q := range b.clients {
		if !q.tryPut(chunk) {
			q.close()
			delete(b.clients, q)
			obs.ClientDetachTotal.Inc()
		}
	}
}

func (b *Broadcaster) persist(idx int) error {
	if b.Store == nil {
		return nil
	}
	b.mu.Lock()
	p := store.PlaybackPosition{
		ChannelNumber:      b.Channel.Number,
		PlayoutStartTime:   b.playoutStart,
		LastItemIndex:      idx,
		LastPositionUpdate: time.Now(),
		TotalItemsWatched:  b.totalWatched,
	}
	if idx >= 0 && idx < len(b.items) {
		p.LastItemMediaID = b.items[idx].Media.ID
	}
	b.mu.Unlock()
	if err := b.Store.SavePlaybackPosition(p); err != nil {
		// §7's PersistenceFailed policy: warn and keep running in memory.
		log.Printf("broadcaster: channel %s: persist position: %v", b.Channel.Number, err)
		return err
	}
	return nil
}

// runContinuous is the single advancer task for a CONTINUOUS channel. See
// §4.5 for the full per-item contract: skip rules, pre-warming the next
// item, fan-out, error tolerance, persistence cadence, and cycle wrap.
func (b *Broadcaster) runContinuous(ctx context.Context) {
	defer close(b.done)

	itemsSincePersist := 0
	lastPersist := time.Now()

	b.mu.Lock()
	idx := b.currentIndex
	items := b.items
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			b.persist(idx)
			return
		default:
		}

		item := items[idx]
		nextIdx := (idx + 1) % len(items)

		if skipItem(b.Channel, item) {
			idx = nextIdx
			b.setCurrentIndex(idx)
			continue
		}

		b.prewarm.reset(nextIdx)
		prewarmCtx, prewarmCancel := context.WithCancel(ctx)
		go b.runPrewarm(prewarmCtx, items[nextIdx])

		result, err := b.Resolver.Resolve(ctx, item.Media, b.Channel.Name)
		if err != nil {
			log.Printf("broadcaster: channel %s: resolve failed for %q: %v", b.Channel.Number, item.Media.URL, err)
			prewarmCancel()
			idx = nextIdx
			b.setCurrentIndex(idx)
			continue
		}

		probe := b.Transcoder.Probe(ctx, result.StreamURL)
		streamErr := b.Transcoder.Stream(ctx, result.StreamURL, result.Source, b.Channel.Hwaccel, probe, func(chunk []byte) error {
			b.fanOut(chunk)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
		prewarmCancel()

		if ctx.Err() != nil {
			b.persist(idx)
			return
		}
		if streamErr != nil {
			log.Printf("broadcaster: channel %s: stream error on item %q: %v", b.Channel.Number, item.Media.URL, streamErr)
		}

		b.mu.Lock()
		b.totalWatched++
		b.mu.Unlock()
		itemsSincePersist++
		idx = nextIdx
		b.setCurrentIndex(idx)

		if itemsSincePersist >= persistEveryItems || time.Since(lastPersist) >= persistEvery {
			b.persist(idx)
			itemsSincePersist = 0
			lastPersist = time.Now()
		}
	}
}

// runPrewarm fills the pre-warm buffer for item by running it through C4
// until the buffer's bound is hit, then lets the transcode process exit
// early via errPrewarmFull. Errors are swallowed: a failed pre-warm just
// means the next client attach falls back to waiting on the live queue.
func (b *Broadcaster) runPrewarm(ctx context.Context, item schedule.PlayoutItem) {
	if skipItem(b.Channel, item) {
		return
	}
	result, err := b.Resolver.Resolve(ctx, item.Media, b.Channel.Name)
	if err != nil {
		return
	}
	probe := b.Transcoder.Probe(ctx, result.StreamURL)
	_ = b.Transcoder.Stream(ctx, result.StreamURL, result.Source, b.Channel.Hwaccel, probe, func(chunk []byte) error {
		if !b.prewarm.push(chunk) {
			return errPrewarmFull
		}
		return nil
	})
}

// Stream serves one HTTP client for this channel: CONTINUOUS channels
// attach to the shared fan-out (§4.5's client-attach protocol); ON_DEMAND
// channels get their own independent advancer. reqID is only used for the
// optional debug log lines.
func (b *Broadcaster) Stream(ctx context.Context, w http.ResponseWriter, reqID string) error {
	if b.Channel.PlayoutMode != catalog.PlayoutModeContinuous {
		return b.streamOnDemand(ctx, w, reqID)
	}

	b.mu.Lock()
	if b.state == StateIdle {
		b.mu.Unlock()
		return fmt.Errorf("broadcaster: channel %s is not running", b.Channel.Number)
	}
	idx := b.currentIndex
	q := newClientQueue()
	b.clients[q] = struct{}{}
	b.mu.Unlock()
	obs.ClientAttachTotal.Inc()

	defer func() {
		b.mu.Lock()
		delete(b.clients, q)
		b.mu.Unlock()
		q.close()
	}()

	dw := newStreamDebugResponseWriter(w, reqID, b.Channel.Number, time.Now(), streamDebugOptionsFromEnv())
	aw := NewAdaptiveWriter(dw)
	defer aw.Flush()

	if chunks, ok := b.prewarm.drainFor(idx); ok {
		for _, c := range chunks {
			if _, err := aw.Write(c); err != nil {
				if isClientDisconnectWriteError(err) {
					return nil
				}
				return err
			}
		}
	} else {
		select {
		case chunk := <-q.ch:
			if _, err := aw.Write(chunk); err != nil {
				if isClientDisconnectWriteError(err) {
					return nil
				}
				return err
			}
		case <-time.After(attachWaitForLive):
		case <-ctx.Done():
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.closed:
			return nil
		case chunk, ok := <-q.ch:
			if !ok {
				return nil
			}
			if _, err := aw.Write(chunk); err != nil {
				if isClientDisconnectWriteError(err) {
					return nil
				}
				return err
			}
		case <-time.After(liveReadTimeout):
			continue
		}
	}
}

// streamOnDemand runs an independent advancer for one client, per §4.5's
// ON_DEMAND contract: start from the persisted last item (clamped), a
// 30s first-chunk timeout that skips the item, and an unbounded retry
// policy beyond 10 consecutive failures (log, never give up).
func (b *Broadcaster) streamOnDemand(ctx context.Context, w http.ResponseWriter, reqID string) error {
	items, err := b.Schedule.Expand(time.Now())
	if err != nil || len(items) == 0 {
		return fmt.Errorf("broadcaster: channel %s has no schedule items", b.Channel.Number)
	}

	startIdx := 0
	if b.Store != nil {
		if pos, ok, err := b.Store.LoadPlaybackPosition(b.Channel.Number); err == nil && ok {
			startIdx = pos.LastItemIndex
		}
	}
	if startIdx < 0 || startIdx >= len(items) {
		startIdx = 0
	}

	dw := newStreamDebugResponseWriter(w, reqID, b.Channel.Number, time.Now(), streamDebugOptionsFromEnv())
	aw := NewAdaptiveWriter(dw)
	defer aw.Flush()

	idx := startIdx
	consecutiveFailures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		item := items[idx]
		nextIdx := (idx + 1) % len(items)

		if skipItem(b.Channel, item) {
			idx = nextIdx
			continue
		}

		itemCtx, itemCancel := context.WithCancel(ctx)
		firstChunk := make(chan struct{}, 1)
		timer := time.AfterFunc(onDemandFirstByte, func() {
			select {
			case <-firstChunk:
			default:
				itemCancel()
			}
		})

		result, rerr := b.Resolver.Resolve(ctx, item.Media, b.Channel.Name)
		if rerr != nil {
			timer.Stop()
			itemCancel()
			consecutiveFailures++
			idx = nextIdx
			continue
		}

		probe := b.Transcoder.Probe(itemCtx, result.StreamURL)
		gotFirst := false
		var writeErr error
		streamErr := b.Transcoder.Stream(itemCtx, result.StreamURL, result.Source, b.Channel.Hwaccel, probe, func(chunk []byte) error {
			if !gotFirst {
				gotFirst = true
				select {
				case firstChunk <- struct{}{}:
				default:
				}
			}
			if _, err := aw.Write(chunk); err != nil {
				writeErr = err
				return err
			}
			return nil
		})
		timer.Stop()
		itemCancel()

		if writeErr != nil {
			if isClientDisconnectWriteError(writeErr) {
				return nil
			}
			return writeErr
		}
		if ctx.Err() != nil {
			return nil
		}

		if streamErr != nil {
			consecutiveFailures++
			if consecutiveFailures > onDemandMaxFails {
				log.Printf("broadcaster: channel %s on-demand: %d consecutive item failures, continuing", b.Channel.Number, consecutiveFailures)
			}
		} else {
			consecutiveFailures = 0
		}

		if b.Store != nil {
			_ = b.Store.SavePlaybackPosition(store.PlaybackPosition{
				ChannelNumber:      b.Channel.Number,
				LastItemIndex:      nextIdx,
				LastItemMediaID:    item.Media.ID,
				LastPositionUpdate: time.Now(),
			})
		}
		idx = nextIdx
	}
}
