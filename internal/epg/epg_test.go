package epg

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/channelmgr"
	"github.com/headend/streamtv/internal/config"
	"github.com/headend/streamtv/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLogoURL_absolutePassthrough(t *testing.T) {
	got := LogoURL("http://host:5004", "https://cdn.example/logo.png", "7")
	if got != "https://cdn.example/logo.png" {
		t.Fatalf("LogoURL = %q", got)
	}
}

func TestLogoURL_matchingChannelNumber(t *testing.T) {
	got := LogoURL("http://host:5004", "/static/channel_icons/channel_7.png", "7")
	if got != "http://host:5004/static/channel_icons/channel_7.png" {
		t.Fatalf("LogoURL = %q", got)
	}
}

func TestLogoURL_mismatchedNumberFallsBack(t *testing.T) {
	// logo_path's embedded number (42, a DB primary key) doesn't match the
	// channel number (7): must not be trusted.
	got := LogoURL("http://host:5004", "/static/channel_icons/channel_42.png", "7")
	if got != "http://host:5004/static/channel_icons/channel_7.png" {
		t.Fatalf("LogoURL = %q, want fallback", got)
	}
}

func TestLogoURL_genericIconsPath(t *testing.T) {
	got := LogoURL("http://host:5004", "/channel_icons/custom.png", "7")
	if got != "http://host:5004/channel_icons/custom.png" {
		t.Fatalf("LogoURL = %q", got)
	}
}

func TestLogoURL_emptyFallsBack(t *testing.T) {
	got := LogoURL("http://host:5004", "", "7")
	if got != "http://host:5004/static/channel_icons/channel_7.png" {
		t.Fatalf("LogoURL = %q", got)
	}
}

func TestExtractEpisodeInfo_fromMetadata(t *testing.T) {
	m := catalog.MediaItem{Metadata: map[string]any{"season": 3, "episode": 5.0, "episode_title": "The Big One"}}
	season, episode, ok, title := extractEpisodeInfo(m, "Show Name")
	if !ok || season != 3 || episode != 5 || title != "The Big One" {
		t.Fatalf("extractEpisodeInfo = %d %d %v %q", season, episode, ok, title)
	}
}

func TestExtractEpisodeInfo_fromTitleSuffix(t *testing.T) {
	season, episode, ok, _ := extractEpisodeInfo(catalog.MediaItem{}, "Show Name S03E05")
	if !ok || season != 3 || episode != 5 {
		t.Fatalf("extractEpisodeInfo = %d %d %v", season, episode, ok)
	}
}

func TestExtractEpisodeInfo_none(t *testing.T) {
	_, _, ok, _ := extractEpisodeInfo(catalog.MediaItem{}, "Show Name")
	if ok {
		t.Fatal("extractEpisodeInfo: expected ok=false for a plain title")
	}
}

func TestSubTitleFor_episodeAndTitle(t *testing.T) {
	st := subTitleFor(3, 5, true, "The Big One", "Show Name")
	if st == nil || st.Value != "S03E05 - The Big One" {
		t.Fatalf("subTitleFor = %+v", st)
	}
}

func TestSubTitleFor_noEpisode(t *testing.T) {
	if st := subTitleFor(-1, -1, false, "", "Show Name"); st != nil {
		t.Fatalf("subTitleFor = %+v, want nil", st)
	}
}

func TestFormatXMLTVTime(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := formatXMLTVTime(ts); got != "20260102030405 +0000" {
		t.Fatalf("formatXMLTVTime = %q", got)
	}
}

func TestGenerateXMLTV_placeholderWhenNoSchedule(t *testing.T) {
	st := openTestStore(t)
	if err := st.UpsertChannel(catalog.Channel{Number: "7", Name: "Public Access", Enabled: true, PlayoutMode: catalog.PlayoutModeContinuous}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	cfg := &config.Config{ScheduleRoot: t.TempDir()}
	mgr := channelmgr.New(cfg, st, nil, nil)
	if err := mgr.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	g := New(mgr, 1)
	data, err := g.GenerateXMLTV("http://host:5004")
	if err != nil {
		t.Fatalf("GenerateXMLTV: %v", err)
	}
	doc := string(data)
	if !strings.Contains(doc, `<channel id="7">`) {
		t.Fatalf("missing channel element: %s", doc)
	}
	if !strings.Contains(doc, "Public Access - Live Stream") {
		t.Fatalf("missing placeholder programme: %s", doc)
	}
	if !strings.Contains(doc, "<category lang=\"en\">Live</category>") {
		t.Fatalf("missing Live category: %s", doc)
	}
}

func TestGenerateXMLTV_skipsDisabledChannels(t *testing.T) {
	st := openTestStore(t)
	if err := st.UpsertChannel(catalog.Channel{Number: "9", Name: "Archived", Enabled: false}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	cfg := &config.Config{ScheduleRoot: t.TempDir()}
	mgr := channelmgr.New(cfg, st, nil, nil)
	if err := mgr.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	g := New(mgr, 1)
	data, err := g.GenerateXMLTV("http://host:5004")
	if err != nil {
		t.Fatalf("GenerateXMLTV: %v", err)
	}
	if strings.Contains(string(data), "Archived") {
		t.Fatalf("disabled channel leaked into guide: %s", data)
	}
}

func TestGenerateXMLTV_cachesWithinTTL(t *testing.T) {
	st := openTestStore(t)
	if err := st.UpsertChannel(catalog.Channel{Number: "7", Name: "X", Enabled: true}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	cfg := &config.Config{ScheduleRoot: t.TempDir()}
	mgr := channelmgr.New(cfg, st, nil, nil)
	if err := mgr.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	g := New(mgr, 1)
	first, err := g.GenerateXMLTV("http://host:5004")
	if err != nil {
		t.Fatalf("GenerateXMLTV: %v", err)
	}
	second, err := g.GenerateXMLTV("http://host:5004")
	if err != nil {
		t.Fatalf("GenerateXMLTV: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("expected cached response to match")
	}
	if len(g.cachedXML) == 0 {
		t.Fatal("expected a cached copy to be retained")
	}
}
