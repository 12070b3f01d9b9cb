package config

import (
	"os"
	"testing"
)

func TestLoad_defaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.Port != 8409 {
		t.Errorf("Port = %d, want 8409", c.Port)
	}
	if c.TunerCount != 4 {
		t.Errorf("TunerCount = %d, want 4", c.TunerCount)
	}
	if c.BuildDays != 1 {
		t.Errorf("BuildDays = %d, want 1", c.BuildDays)
	}
	if !c.HDHREnabled {
		t.Errorf("HDHREnabled default should be true")
	}
	if c.AccessToken != "" {
		t.Errorf("AccessToken default should be empty (public)")
	}
}

func TestLoad_overrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("STREAMTV_PORT", "9000")
	os.Setenv("STREAMTV_TUNER_COUNT", "0")
	os.Setenv("STREAMTV_BUILD_DAYS", "-3")
	os.Setenv("STREAMTV_ACCESS_TOKEN", "secret")
	os.Setenv("STREAMTV_FFMPEG_EXTRA_FLAGS", "-loglevel, debug , -y")
	c := Load()
	if c.Port != 9000 {
		t.Errorf("Port = %d, want 9000", c.Port)
	}
	if c.TunerCount != 4 {
		t.Errorf("TunerCount with non-positive override should clamp to default 4, got %d", c.TunerCount)
	}
	if c.BuildDays != 1 {
		t.Errorf("BuildDays with negative override should clamp to default 1, got %d", c.BuildDays)
	}
	if c.AccessToken != "secret" {
		t.Errorf("AccessToken = %q, want secret", c.AccessToken)
	}
	want := []string{"-loglevel", "debug", "-y"}
	if len(c.ExtraFlags) != len(want) {
		t.Fatalf("ExtraFlags = %v, want %v", c.ExtraFlags, want)
	}
	for i := range want {
		if c.ExtraFlags[i] != want[i] {
			t.Errorf("ExtraFlags[%d] = %q, want %q", i, c.ExtraFlags[i], want[i])
		}
	}
}

func TestLoad_hwaccelOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("STREAMTV_YOUTUBE_HWACCEL", "videotoolbox")
	os.Setenv("STREAMTV_ARCHIVE_ORG_HWACCEL", "vaapi")
	c := Load()
	if c.YouTubeHwaccel != "videotoolbox" {
		t.Errorf("YouTubeHwaccel = %q", c.YouTubeHwaccel)
	}
	if c.ArchiveOrgHwaccel != "vaapi" {
		t.Errorf("ArchiveOrgHwaccel = %q", c.ArchiveOrgHwaccel)
	}
}
