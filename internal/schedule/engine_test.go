package schedule

import (
	"testing"
	"time"

	"github.com/headend/streamtv/internal/catalog"
)

func dur(seconds int) *int { return &seconds }

func movieItems(durations ...int) []catalog.MediaItem {
	out := make([]catalog.MediaItem, len(durations))
	for i, d := range durations {
		out[i] = catalog.MediaItem{ID: "m" + string(rune('0'+i)), URL: "https://example/" + string(rune('0'+i)), Duration: dur(d)}
	}
	return out
}

func lookupFrom(collections map[string][]catalog.MediaItem) CollectionLookup {
	return func(name string) ([]catalog.MediaItem, bool) {
		v, ok := collections[name]
		return v, ok
	}
}

func TestExpand_scenario1_continuousResume(t *testing.T) {
	ps := &ParsedSchedule{
		ContentMap:      map[string]ContentEntry{"movies": {Key: "movies", Collection: "Movie Block"}},
		Sequences:       map[string][]Op{"main": {{Kind: OpAll, ContentKey: "movies"}}},
		MainSequenceKey: "main",
	}
	items := movieItems(1800, 1800, 1800, 1800)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := NewEngine().Expand(ps, "80", lookupFrom(map[string][]catalog.MediaItem{"Movie Block": items}), start)
	if len(out) != 4 {
		t.Fatalf("expected 4 items, got %d", len(out))
	}
	for i, it := range out {
		want := start.Add(time.Duration(i*1800) * time.Second)
		if !it.StartTime.Equal(want) {
			t.Errorf("item %d start = %v, want %v", i, it.StartTime, want)
		}
	}
}

func TestExpand_scenario3_padUntil(t *testing.T) {
	ps := &ParsedSchedule{
		ContentMap: map[string]ContentEntry{"breaks": {Key: "breaks", Collection: "Breaks"}},
		Sequences: map[string][]Op{
			"main": {{Kind: OpPadUntil, TimeOfDay: "03:00", ContentKey: "breaks"}},
		},
		MainSequenceKey: "main",
	}
	items := movieItems(60, 90, 120, 45)
	now := time.Date(2024, 1, 1, 2, 47, 30, 0, time.UTC)
	out := NewEngine().Expand(ps, "1", lookupFrom(map[string][]catalog.MediaItem{"Breaks": items}), now)
	total := 0
	for _, it := range out {
		total += it.Media.DurationOrDefault(1800)
	}
	targetSeconds := 750
	low, high := targetSeconds-targetSeconds/10, targetSeconds+targetSeconds/10
	if total < low || total > high {
		t.Fatalf("padUntil total = %ds, want within [%d,%d]", total, low, high)
	}
}

func TestExpand_repeatReachesMaxItems(t *testing.T) {
	ps := &ParsedSchedule{
		ContentMap:      map[string]ContentEntry{"movies": {Key: "movies", Collection: "Movie Block"}},
		Sequences:       map[string][]Op{"main": {{Kind: OpAll, ContentKey: "movies"}}},
		MainSequenceKey: "main",
		Repeat:          true,
	}
	items := movieItems(60, 60)
	e := &Engine{MaxItems: 7}
	out := e.Expand(ps, "1", lookupFrom(map[string][]catalog.MediaItem{"Movie Block": items}), time.Now())
	if len(out) != 7 {
		t.Fatalf("expected exactly 7 items when repeating a 2-item base, got %d", len(out))
	}
	for i, it := range out {
		wantURL := items[i%2].URL
		if it.Media.URL != wantURL {
			t.Errorf("item %d URL = %q, want %q (repeated base)", i, it.Media.URL, wantURL)
		}
	}
}

func TestExpand_deterministicAcrossRuns(t *testing.T) {
	ps := &ParsedSchedule{
		ContentMap:      map[string]ContentEntry{"movies": {Key: "movies", Collection: "Movie Block", Order: catalog.OrderShuffle}},
		Sequences:       map[string][]Op{"main": {{Kind: OpAll, ContentKey: "movies"}}},
		MainSequenceKey: "main",
	}
	items := movieItems(60, 90, 120, 45, 200)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	lookup := lookupFrom(map[string][]catalog.MediaItem{"Movie Block": items})
	a := NewEngine().Expand(ps, "5", lookup, now)
	b := NewEngine().Expand(ps, "5", lookup, now)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Media.URL != b[i].Media.URL {
			t.Fatalf("item %d differs between runs: %q vs %q", i, a[i].Media.URL, b[i].Media.URL)
		}
	}
}

func TestExpand_missingMainSequenceIsEmptyNotPanic(t *testing.T) {
	ps := &ParsedSchedule{ContentMap: map[string]ContentEntry{}, Sequences: map[string][]Op{}}
	out := NewEngine().Expand(ps, "1", lookupFrom(nil), time.Now())
	if out != nil {
		t.Fatalf("expected nil/empty, got %v", out)
	}
}

func TestExpand_preRollWrapsEachEmission(t *testing.T) {
	ps := &ParsedSchedule{
		ContentMap: map[string]ContentEntry{
			"movies": {Key: "movies", Collection: "Movie Block"},
			"bumper": {Key: "bumper", Collection: "Bumper"},
		},
		Sequences: map[string][]Op{
			"main": {
				{Kind: OpPreRoll, RollOn: true, SequenceKey: "bumperSeq"},
				{Kind: OpAll, ContentKey: "movies"},
			},
			"bumperSeq": {{Kind: OpAll, ContentKey: "bumper"}},
		},
		MainSequenceKey: "main",
	}
	lookup := lookupFrom(map[string][]catalog.MediaItem{
		"Movie Block": movieItems(60, 60),
		"Bumper":      movieItems(5),
	})
	out := NewEngine().Expand(ps, "1", lookup, time.Now())
	// Expect: bumper, movie0, movie1 (pre-roll before the whole emission group,
	// inserted once since it only prepends before the group's first item).
	if len(out) != 3 {
		t.Fatalf("expected 3 items (1 bumper + 2 movies), got %d: %+v", len(out), out)
	}
}
