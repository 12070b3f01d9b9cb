// Package epg implements the EPG Generator (C8): an XMLTV document built
// from each channel's expanded schedule, reusing the exact timeline math
// internal/broadcaster uses so the guide and the live stream always agree
// on item boundaries within the same second.
package epg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/headend/streamtv/internal/broadcaster"
	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/channelmgr"
	"github.com/headend/streamtv/internal/schedule"
)

// maxProgrammesPerChannel caps XMLTV output per §4.8's performance note.
const maxProgrammesPerChannel = 200

// cacheTTL is deliberately short -- it only exists to collapse a burst of
// near-simultaneous guide fetches (Plex re-scanning, multiple clients),
// not to go stale between them. Adapted from internal/tuner/xmltv.go's
// RWMutex-guarded cache shape; unlike that cache this one builds the guide
// itself rather than remapping an upstream feed.
const cacheTTL = 5 * time.Second

// Generator builds /iptv/xmltv.xml from the channel manager's live state.
type Generator struct {
	Manager   *channelmgr.Manager
	BuildDays int

	mu         sync.RWMutex
	cachedXML  []byte
	cachedBase string
	cacheExp   time.Time
}

// New builds a Generator. buildDays <= 0 falls back to 1 day.
func New(mgr *channelmgr.Manager, buildDays int) *Generator {
	if buildDays <= 0 {
		buildDays = 1
	}
	return &Generator{Manager: mgr, BuildDays: buildDays}
}

// GenerateXMLTV returns the full XMLTV document for baseURL (used to
// resolve absolute icon URLs), serving a cached copy when one is fresh.
func (g *Generator) GenerateXMLTV(baseURL string) ([]byte, error) {
	g.mu.RLock()
	if g.cachedXML != nil && g.cachedBase == baseURL && time.Now().Before(g.cacheExp) {
		data := g.cachedXML
		g.mu.RUnlock()
		return data, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cachedXML != nil && g.cachedBase == baseURL && time.Now().Before(g.cacheExp) {
		return g.cachedXML, nil
	}

	data, err := g.build(baseURL, time.Now())
	if err != nil {
		return nil, err
	}
	g.cachedXML = data
	g.cachedBase = baseURL
	g.cacheExp = time.Now().Add(cacheTTL)
	return data, nil
}

func (g *Generator) build(baseURL string, now time.Time) ([]byte, error) {
	channels := g.Manager.Channels()
	sort.Slice(channels, func(i, j int) bool { return channels[i].Number < channels[j].Number })

	buildWindow := time.Duration(g.BuildDays) * 24 * time.Hour

	tv := &xmlTVRoot{Source: "streamtv"}
	for _, ch := range channels {
		if !ch.Enabled {
			continue
		}
		tv.Channels = append(tv.Channels, xmlChannel{
			ID:      ch.Number,
			Display: ch.Name,
			Icon:    &xmlIcon{Src: LogoURL(baseURL, ch.Logo, ch.Number)},
		})
		tv.Programmes = append(tv.Programmes, g.programmesFor(ch, now, buildWindow)...)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(tv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// programmesFor walks ch's expanded schedule starting at the item
// currently playing (§4.8's "same timeline math as C5"), emitting
// programmes until the build window is covered. A channel with no
// schedule gets exactly one placeholder programme per §4.8.
func (g *Generator) programmesFor(ch catalog.Channel, now time.Time, buildWindow time.Duration) []xmlProgramme {
	items, playoutStart, err := g.Manager.Timeline(ch.Number)
	if err != nil {
		log.Printf("epg: channel %s: timeline: %v", ch.Number, err)
	}
	if err != nil || len(items) == 0 {
		return []xmlProgramme{placeholderProgramme(ch, now, buildWindow)}
	}
	if broadcaster.TotalCycle(items) <= 0 {
		return []xmlProgramme{placeholderProgramme(ch, now, buildWindow)}
	}

	idx, _ := broadcaster.CurrentPosition(items, playoutStart, now)
	start := broadcaster.AbsoluteStart(items, playoutStart, now, idx)
	end := now.Add(buildWindow)

	var out []xmlProgramme
	cur := idx
	for start.Before(end) && len(out) < maxProgrammesPerChannel {
		it := items[cur]
		dur := time.Duration(it.Media.DurationOrDefault(schedule.DefaultItemDuration)) * time.Second
		stop := start.Add(dur)
		out = append(out, buildProgramme(ch, it, start, stop))
		start = stop
		cur = (cur + 1) % len(items)
	}
	if len(out) == 0 {
		return []xmlProgramme{placeholderProgramme(ch, now, buildWindow)}
	}
	return out
}

func buildProgramme(ch catalog.Channel, it schedule.PlayoutItem, start, stop time.Time) xmlProgramme {
	title := strings.TrimSpace(it.CustomTitle)
	if title == "" {
		title = strings.TrimSpace(it.Media.Title)
	}
	if title == "" {
		title = ch.Name
	}

	season, episode, hasEpisode, episodeTitle := extractEpisodeInfo(it.Media, title)

	desc := strings.TrimSpace(it.Media.Description)
	if desc == "" {
		desc = title
	}

	prog := xmlProgramme{
		Start:    formatXMLTVTime(start),
		Stop:     formatXMLTVTime(stop),
		Channel:  ch.Number,
		Title:    xmlText{Lang: "en", Value: title},
		SubTitle: subTitleFor(season, episode, hasEpisode, episodeTitle, title),
		Desc:     xmlText{Lang: "en", Value: desc},
		Category: []xmlText{{Lang: "en", Value: "General"}},
	}
	if it.Media.Thumbnail != "" {
		prog.Icon = &xmlIcon{Src: it.Media.Thumbnail}
	}
	return prog
}

func placeholderProgramme(ch catalog.Channel, now time.Time, buildWindow time.Duration) xmlProgramme {
	title := ch.Name + " - Live Stream"
	return xmlProgramme{
		Start:   formatXMLTVTime(now),
		Stop:    formatXMLTVTime(now.Add(buildWindow)),
		Channel: ch.Number,
		Title:   xmlText{Lang: "en", Value: title},
		Desc:    xmlText{Lang: "en", Value: title},
		Category: []xmlText{
			{Lang: "en", Value: "General"},
			{Lang: "en", Value: "Live"},
		},
	}
}

func formatXMLTVTime(t time.Time) string {
	return t.UTC().Format("20060102150405") + " +0000"
}

// episodePattern matches a trailing "S03E05" style marker in a title.
var episodePattern = regexp.MustCompile(`(?i)s(\d+)e(\d+)$`)

// extractEpisodeInfo pulls season/episode/episode-title hints out of a
// MediaItem's metadata map, falling back to an "SxxEyy" suffix in title.
// Ported from the original's XMLTV season/episode extraction, simplified
// to the metadata shapes this repo's catalog.MediaItem actually carries.
func extractEpisodeInfo(m catalog.MediaItem, title string) (season, episode int, ok bool, episodeTitle string) {
	season, episode = -1, -1
	if m.Metadata != nil {
		if v, present := m.Metadata["season"]; present {
			season = toInt(v)
		}
		if v, present := m.Metadata["episode"]; present {
			episode = toInt(v)
		}
		if v, present := m.Metadata["episode_title"]; present {
			if s, isStr := v.(string); isStr {
				episodeTitle = strings.TrimSpace(s)
			}
		}
	}
	if season < 0 || episode < 0 {
		if mm := episodePattern.FindStringSubmatch(strings.TrimSpace(title)); mm != nil {
			if season < 0 {
				season, _ = strconv.Atoi(mm[1])
			}
			if episode < 0 {
				episode, _ = strconv.Atoi(mm[2])
			}
		}
	}
	return season, episode, season >= 0 && episode >= 0, episodeTitle
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return -1
		}
		return n
	default:
		return -1
	}
}

func subTitleFor(season, episode int, hasEpisode bool, episodeTitle, title string) *xmlText {
	if !hasEpisode {
		if episodeTitle != "" && episodeTitle != title {
			return &xmlText{Lang: "en", Value: episodeTitle}
		}
		return nil
	}
	sub := fmt.Sprintf("S%02dE%02d", season, episode)
	if episodeTitle != "" && episodeTitle != title {
		sub = sub + " - " + episodeTitle
	}
	return &xmlText{Lang: "en", Value: sub}
}
