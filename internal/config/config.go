// Package config loads the head-end's configuration from environment
// variables into an immutable record at process start.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds server, security, HDHomeRun, playout, FFmpeg, and per-source
// auth settings. Load once at startup and pass down; nothing in this repo
// mutates a Config after Load returns.
type Config struct {
	// Server
	Host    string
	Port    int
	BaseURL string

	// Security
	APIKeyRequired bool
	AccessToken    string

	// HDHomeRun
	HDHREnabled      bool
	HDHRDeviceID     string
	HDHRFriendlyName string
	TunerCount       int
	EnableSSDP       bool // carried for config compatibility; consumed by nothing in this repo

	// Playout
	BuildDays int // EPG horizon, in days

	// FFmpeg
	FFmpegPath   string
	FFprobePath  string
	LogLevel     string
	Threads      int
	Hwaccel      string
	HwaccelDevice string
	YouTubeHwaccel      string
	YouTubeVideoEncoder string
	ArchiveOrgHwaccel      string
	ArchiveOrgVideoEncoder string
	PBSHwaccel             string
	PBSVideoEncoder        string
	PlexHwaccel            string
	PlexVideoEncoder       string
	ExtraFlags []string

	// Per-source auth
	ArchiveOrgUseAuth    bool
	ArchiveOrgCookiesFile string
	YouTubeCookiesFile    string

	// Plex
	PlexEnabled bool
	PlexBaseURL string
	PlexToken   string
	PlexUseForEPG bool

	// Resource caps
	MaxConcurrentFFmpeg int
	ScheduleRoot        string
	DatabasePath        string
}

// Load reads config from environment.
func Load() *Config {
	c := &Config{
		Host:    getEnv("STREAMTV_HOST", "0.0.0.0"),
		Port:    getEnvInt("STREAMTV_PORT", 8409),
		BaseURL: os.Getenv("STREAMTV_BASE_URL"),

		APIKeyRequired: getEnvBool("STREAMTV_API_KEY_REQUIRED", false),
		AccessToken:    os.Getenv("STREAMTV_ACCESS_TOKEN"),

		HDHREnabled:      getEnvBool("STREAMTV_HDHR_ENABLED", true),
		HDHRDeviceID:     getEnv("STREAMTV_HDHR_DEVICE_ID", "STREAMTV01"),
		HDHRFriendlyName: getEnv("STREAMTV_HDHR_FRIENDLY_NAME", "StreamTV HeadEnd"),
		TunerCount:       getEnvInt("STREAMTV_TUNER_COUNT", 4),
		EnableSSDP:       getEnvBool("STREAMTV_ENABLE_SSDP", false),

		BuildDays: getEnvInt("STREAMTV_BUILD_DAYS", 1),

		FFmpegPath:    getEnv("STREAMTV_FFMPEG_PATH", "ffmpeg"),
		FFprobePath:   getEnv("STREAMTV_FFPROBE_PATH", "ffprobe"),
		LogLevel:      getEnv("STREAMTV_FFMPEG_LOGLEVEL", "warning"),
		Threads:       getEnvInt("STREAMTV_FFMPEG_THREADS", 0),
		Hwaccel:       os.Getenv("STREAMTV_HWACCEL"),
		HwaccelDevice: os.Getenv("STREAMTV_HWACCEL_DEVICE"),

		YouTubeHwaccel:      os.Getenv("STREAMTV_YOUTUBE_HWACCEL"),
		YouTubeVideoEncoder: os.Getenv("STREAMTV_YOUTUBE_VIDEO_ENCODER"),
		ArchiveOrgHwaccel:      os.Getenv("STREAMTV_ARCHIVE_ORG_HWACCEL"),
		ArchiveOrgVideoEncoder: os.Getenv("STREAMTV_ARCHIVE_ORG_VIDEO_ENCODER"),
		PBSHwaccel:             os.Getenv("STREAMTV_PBS_HWACCEL"),
		PBSVideoEncoder:        os.Getenv("STREAMTV_PBS_VIDEO_ENCODER"),
		PlexHwaccel:            os.Getenv("STREAMTV_PLEX_HWACCEL"),
		PlexVideoEncoder:       os.Getenv("STREAMTV_PLEX_VIDEO_ENCODER"),
		ExtraFlags:             getEnvList("STREAMTV_FFMPEG_EXTRA_FLAGS"),

		ArchiveOrgUseAuth:     getEnvBool("STREAMTV_ARCHIVE_ORG_USE_AUTH", false),
		ArchiveOrgCookiesFile: os.Getenv("STREAMTV_ARCHIVE_ORG_COOKIES_FILE"),
		YouTubeCookiesFile:    os.Getenv("STREAMTV_YOUTUBE_COOKIES_FILE"),

		PlexEnabled:   getEnvBool("STREAMTV_PLEX_ENABLED", false),
		PlexBaseURL:   os.Getenv("STREAMTV_PLEX_BASE_URL"),
		PlexToken:     os.Getenv("STREAMTV_PLEX_TOKEN"),
		PlexUseForEPG: getEnvBool("STREAMTV_PLEX_USE_FOR_EPG", false),

		MaxConcurrentFFmpeg: getEnvInt("STREAMTV_MAX_CONCURRENT_FFMPEG", 8),
		ScheduleRoot:        getEnv("STREAMTV_SCHEDULE_ROOT", "./schedules"),
		DatabasePath:        getEnv("STREAMTV_DATABASE_PATH", "./streamtv.db"),
	}
	if c.TunerCount <= 0 {
		c.TunerCount = 4
	}
	if c.BuildDays <= 0 {
		c.BuildDays = 1
	}
	if c.MaxConcurrentFFmpeg <= 0 {
		c.MaxConcurrentFFmpeg = 8
	}
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
