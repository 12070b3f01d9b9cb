package transcoder

import (
	"strings"
	"testing"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		LogLevel:    "warning",
	}
}

func TestClassifyInput(t *testing.T) {
	cases := []struct {
		url    string
		source catalog.Source
		want   inputClass
	}{
		{"https://cdn.example.com/live.m3u8?drm=1", catalog.SourcePBS, inputDRMHLS},
		{"https://video-auth.pbs.org/live/channel.m3u8", catalog.SourcePBS, inputDRMHLS},
		{"https://cdn.example.com/video.mp4", catalog.SourceArchiveOrg, inputMPEG4Container},
		{"https://youtube.example/watch.mp4", catalog.SourceYouTube, inputMPEG4Container},
		{"https://archive.org/download/x/x.ogv", catalog.SourceArchiveOrg, inputHTTP},
		{"file:///tmp/x", catalog.SourceUnknown, inputDefault},
	}
	for _, tt := range cases {
		got := classifyInput(tt.url, tt.source)
		if got != tt.want {
			t.Errorf("classifyInput(%q, %v) = %v, want %v", tt.url, tt.source, got, tt.want)
		}
	}
}

func TestBuildCommand_copyPath(t *testing.T) {
	cfg := testConfig()
	probe := ProbeResult{VideoCodec: "h264", AudioCodec: "aac", CanCopyVideo: true, CanCopyAudio: true}
	args := BuildCommand(cfg, "https://archive.org/download/x/x.mp4", catalog.SourceArchiveOrg, probe, "")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c:v copy") {
		t.Errorf("expected video copy path, got args: %v", args)
	}
	if !strings.Contains(joined, "-c:a copy") {
		t.Errorf("expected audio copy path, got args: %v", args)
	}
	if !strings.Contains(joined, "-f mpegts") {
		t.Errorf("expected mpegts output mux, got args: %v", args)
	}
}

func TestBuildCommand_softwareTranscode(t *testing.T) {
	cfg := testConfig()
	probe := ProbeResult{VideoCodec: "vp9", AudioCodec: "opus"}
	args := BuildCommand(cfg, "https://cdn.example.com/video.webm", catalog.SourcePlex, probe, "")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c:v libx264") {
		t.Errorf("expected software x264 encode, got args: %v", args)
	}
	if !strings.Contains(joined, "-c:a aac") {
		t.Errorf("expected aac re-encode, got args: %v", args)
	}
}

func TestBuildCommand_mpeg4DisablesHwaccel(t *testing.T) {
	cfg := testConfig()
	cfg.Hwaccel = "vaapi"
	probe := ProbeResult{VideoCodec: "mpeg4", AudioCodec: "mp3"}
	args := BuildCommand(cfg, "https://cdn.example.com/old.mp4", catalog.SourceYouTube, probe, "")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-hwaccel none") {
		t.Errorf("expected -hwaccel none for mpeg4 source, got args: %v", args)
	}
}

func TestBuildCommand_hwaccelWhenReencodingNonMPEG4(t *testing.T) {
	cfg := testConfig()
	cfg.Hwaccel = "vaapi"
	probe := ProbeResult{VideoCodec: "vp9"}
	args := BuildCommand(cfg, "https://cdn.example.com/video.webm", catalog.SourcePlex, probe, "")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-hwaccel vaapi") {
		t.Errorf("expected configured hwaccel to be honored, got args: %v", args)
	}
	if !strings.Contains(joined, "-c:v h264_vaapi") {
		t.Errorf("expected hardware encoder selection, got args: %v", args)
	}
}

func TestBuildCommand_archiveOrgGetsLongerTimeout(t *testing.T) {
	cfg := testConfig()
	probe := ProbeResult{CanCopyVideo: true, CanCopyAudio: true, VideoCodec: "h264", AudioCodec: "aac"}
	args := BuildCommand(cfg, "https://archive.org/download/x/x.ogv", catalog.SourceArchiveOrg, probe, "")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-timeout 60000000") {
		t.Errorf("expected 60s timeout for archive.org, got args: %v", args)
	}
}
