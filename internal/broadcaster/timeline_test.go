package broadcaster

import (
	"testing"
	"time"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/schedule"
)

func durItem(seconds int) schedule.PlayoutItem {
	d := seconds
	return schedule.PlayoutItem{Media: catalog.MediaItem{URL: "https://cdn.example.com/a.mp4", Duration: &d}}
}

func TestTotalCycle(t *testing.T) {
	items := []schedule.PlayoutItem{durItem(60), durItem(120), durItem(30)}
	if got := totalCycle(items); got != 210*time.Second {
		t.Fatalf("totalCycle = %s, want 210s", got)
	}
}

func TestCurrentPosition_midSecondItem(t *testing.T) {
	items := []schedule.PlayoutItem{durItem(60), durItem(120), durItem(30)}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Second) // 60s into item 0, then 30s into item 1
	idx, offset := currentPosition(items, start, now)
	if idx != 1 || offset != 30*time.Second {
		t.Fatalf("currentPosition = (%d, %s), want (1, 30s)", idx, offset)
	}
}

func TestCurrentPosition_wrapsAcrossCycles(t *testing.T) {
	items := []schedule.PlayoutItem{durItem(60), durItem(60)}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * 120 * time.Second) // 5 full cycles later, exactly on a boundary
	idx, offset := currentPosition(items, start, now)
	if idx != 0 || offset != 0 {
		t.Fatalf("currentPosition = (%d, %s), want (0, 0)", idx, offset)
	}
}

func TestCurrentPosition_emptySchedule(t *testing.T) {
	idx, offset := currentPosition(nil, time.Now(), time.Now())
	if idx != 0 || offset != 0 {
		t.Fatalf("currentPosition on empty schedule = (%d, %s), want (0, 0)", idx, offset)
	}
}

func TestAbsoluteStart_agreesWithCurrentPosition(t *testing.T) {
	items := []schedule.PlayoutItem{durItem(60), durItem(120), durItem(30)}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Second)
	idx, offset := currentPosition(items, start, now)
	itemStart := absoluteStart(items, start, now, idx)
	if !itemStart.Add(offset).Equal(now) {
		t.Fatalf("itemStart+offset = %s, want now = %s", itemStart.Add(offset), now)
	}
}

func TestSkipItem_placeholder(t *testing.T) {
	d := 60
	it := schedule.PlayoutItem{Media: catalog.MediaItem{URL: "https://cdn.example.com/PLACEHOLDER.mp4", Duration: &d}}
	if !skipItem(catalog.Channel{}, it) {
		t.Fatal("expected placeholder URL to be skipped")
	}
}

func TestSkipItem_tooShort(t *testing.T) {
	d := 4
	it := schedule.PlayoutItem{Media: catalog.MediaItem{URL: "https://cdn.example.com/a.mp4", Duration: &d}}
	if !skipItem(catalog.Channel{}, it) {
		t.Fatal("expected sub-5s item to be skipped")
	}
}

func TestSkipItem_contentFilter(t *testing.T) {
	ch := catalog.Channel{Filters: []catalog.ContentFilter{{Suffix: ".mp4"}}}
	it := durItem(60)
	it.Media.URL = "https://cdn.example.com/a.m3u8"
	if !skipItem(ch, it) {
		t.Fatal("expected filter mismatch to be skipped")
	}
}

func TestSkipItem_allowed(t *testing.T) {
	it := durItem(60)
	if skipItem(catalog.Channel{}, it) {
		t.Fatal("expected ordinary item to not be skipped")
	}
}
