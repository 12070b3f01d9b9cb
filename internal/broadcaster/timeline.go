// Package broadcaster implements the Channel Broadcaster (C5): one
// continuous conceptual MPEG-TS stream per enabled channel, fanned out to
// N clients, advancing through a schedule and persisting position. See
// §4.5/§9's playout-timeline design note: position is always a pure
// function of (playout_start_time, schedule_items, now), never an
// incrementing counter a restart has to rediscover by replaying history.
package broadcaster

import (
	"strings"
	"time"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/schedule"
)

// fallbackItemDuration mirrors schedule.DefaultItemDuration; used when an
// item's media has no known duration.
const fallbackItemDuration = schedule.DefaultItemDuration

func itemSeconds(it schedule.PlayoutItem) int {
	return it.Media.DurationOrDefault(fallbackItemDuration)
}

// totalCycle sums every item's duration (falling back per item as above).
// An empty or all-zero schedule yields 0; callers must guard against that
// before computing a modulus.
func totalCycle(items []schedule.PlayoutItem) time.Duration {
	var total int
	for _, it := range items {
		total += itemSeconds(it)
	}
	return time.Duration(total) * time.Second
}

// currentPosition implements §4.5's continuous-mode position math:
// elapsed = now - playoutStart; cyclePos = elapsed mod totalCycle; walk
// items accumulating duration to find the current index and how far into
// that item the stream already is. Returns index 0 offset-0 for an empty
// schedule (caller has already aborted in that case).
func currentPosition(items []schedule.PlayoutItem, playoutStart, now time.Time) (index int, offsetWithinItem time.Duration) {
	cycle := totalCycle(items)
	if cycle <= 0 || len(items) == 0 {
		return 0, 0
	}
	elapsed := now.Sub(playoutStart)
	if elapsed < 0 {
		elapsed = 0
	}
	cyclePos := elapsed % cycle

	var acc time.Duration
	for i, it := range items {
		d := time.Duration(itemSeconds(it)) * time.Second
		if cyclePos < acc+d {
			return i, cyclePos - acc
		}
		acc += d
	}
	return len(items) - 1, 0
}

// absoluteStart returns the wall-clock instant item index idx begins,
// given the same (items, playoutStart) the advancer is using -- the
// timeline math C8 (EPG) reuses so both components agree on item
// boundaries within the same second (§5).
func absoluteStart(items []schedule.PlayoutItem, playoutStart, now time.Time, idx int) time.Time {
	cycle := totalCycle(items)
	if cycle <= 0 || len(items) == 0 {
		return now
	}
	elapsed := now.Sub(playoutStart)
	if elapsed < 0 {
		elapsed = 0
	}
	cycleCount := elapsed / cycle
	cycleStart := playoutStart.Add(cycleCount * cycle)

	var acc time.Duration
	for i, it := range items {
		if i == idx {
			return cycleStart.Add(acc)
		}
		acc += time.Duration(itemSeconds(it)) * time.Second
	}
	return cycleStart
}

// TotalCycle exports totalCycle for C8 (EPG), which must agree with C5 on
// where each cycle of the schedule starts and ends (§4.8 "same timeline
// math as C5").
func TotalCycle(items []schedule.PlayoutItem) time.Duration { return totalCycle(items) }

// CurrentPosition exports currentPosition for C8.
func CurrentPosition(items []schedule.PlayoutItem, playoutStart, now time.Time) (index int, offsetWithinItem time.Duration) {
	return currentPosition(items, playoutStart, now)
}

// AbsoluteStart exports absoluteStart for C8.
func AbsoluteStart(items []schedule.PlayoutItem, playoutStart, now time.Time, idx int) time.Time {
	return absoluteStart(items, playoutStart, now, idx)
}

// skipItem reports whether item should be skipped per §4.5: a placeholder
// sentinel URL, a too-short duration, or a channel content filter miss.
func skipItem(ch catalog.Channel, it schedule.PlayoutItem) bool {
	if strings.Contains(strings.ToUpper(it.Media.URL), "PLACEHOLDER") {
		return true
	}
	if it.Media.Duration != nil && *it.Media.Duration < 5 {
		return true
	}
	return !ch.Allows(it.Media.URL)
}
