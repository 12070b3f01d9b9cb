package catalog

import "testing"

func TestNormalizeSource(t *testing.T) {
	cases := []struct {
		raw  any
		want Source
	}{
		{"youtube", SourceYouTube},
		{"ARCHIVE_ORG", SourceArchiveOrg},
		{"archiveorg", SourceArchiveOrg},
		{" pbs ", SourcePBS},
		{"plex", SourcePlex},
		{"bogus", SourceUnknown},
		{SourcePlex, SourcePlex},
	}
	for _, tt := range cases {
		if got := NormalizeSource(tt.raw); got != tt.want {
			t.Errorf("NormalizeSource(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizePlayoutMode(t *testing.T) {
	if NormalizePlayoutMode("on_demand") != PlayoutModeOnDemand {
		t.Errorf("expected ON_DEMAND")
	}
	if NormalizePlayoutMode("continuous") != PlayoutModeContinuous {
		t.Errorf("expected CONTINUOUS")
	}
	if NormalizePlayoutMode("") != PlayoutModeContinuous {
		t.Errorf("unrecognized string should default to CONTINUOUS")
	}
	if NormalizePlayoutMode(PlayoutModeOnDemand) != PlayoutModeOnDemand {
		t.Errorf("typed value should pass through")
	}
}

func TestMediaItemDurationOrDefault(t *testing.T) {
	m := MediaItem{}
	if got := m.DurationOrDefault(1800); got != 1800 {
		t.Errorf("nil duration should use fallback, got %d", got)
	}
	d := 120
	m.Duration = &d
	if got := m.DurationOrDefault(1800); got != 120 {
		t.Errorf("known duration should win, got %d", got)
	}
}

func TestChannelAllows(t *testing.T) {
	c := Channel{Number: "80", Filters: []ContentFilter{{Suffix: ".mp4"}}}
	if !c.Allows("https://archive.org/download/x/movie.mp4") {
		t.Errorf("expected .mp4 URL to be allowed")
	}
	if c.Allows("https://archive.org/download/x/movie.mkv") {
		t.Errorf("expected .mkv URL to be rejected")
	}
	noFilter := Channel{Number: "1"}
	if !noFilter.Allows("https://example.com/anything") {
		t.Errorf("no filters means everything is allowed")
	}
}
