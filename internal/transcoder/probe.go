package transcoder

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// ProbeResult is what the codec decision tree needs to know about an input.
// An "unknown" codec (empty string) means "transcode everything" per the
// probe contract's documented failure mode.
type ProbeResult struct {
	VideoCodec   string
	AudioCodec   string
	CanCopyVideo bool
	CanCopyAudio bool
}

var plexFriendlyVideoCodecs = map[string]bool{
	"h264": true, "avc": true, "mpeg2video": true, "mpeg4": true,
}

var plexFriendlyAudioCodecs = map[string]bool{
	"aac": true, "ac3": true, "eac3": true, "mp3": true, "mp2": true,
}

// isMPEG4Family reports whether codec belongs to the MPEG-4 family that
// disables hardware acceleration (the decision tree's explicit carve-out).
func isMPEG4Family(codec string) bool {
	c := strings.ToLower(codec)
	return c == "mpeg4" || strings.HasPrefix(c, "msmpeg4")
}

// Probe runs ffprobe against url with a 10s deadline. On timeout or any
// ffprobe error it returns a ProbeResult with both codecs unknown, which
// the command builder interprets as "transcode everything" rather than
// failing the stream outright.
func (t *Transcoder) Probe(ctx context.Context, url string) ProbeResult {
	ffprobePath := t.ffprobePath()
	if ffprobePath == "" {
		return ProbeResult{CanCopyVideo: false, CanCopyAudio: false}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := func(sel string) string {
		args := []string{
			"-v", "error", "-nostdin", "-rw_timeout", "5000000",
			"-select_streams", sel,
			"-show_entries", "stream=codec_name",
			"-of", "default=noprint_wrappers=1:nokey=1",
			url,
		}
		out, err := exec.CommandContext(ctx, ffprobePath, args...).Output()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(out))
	}

	video := query("v:0")
	audio := query("a:0")
	return ProbeResult{
		VideoCodec:   video,
		AudioCodec:   audio,
		CanCopyVideo: video != "" && plexFriendlyVideoCodecs[strings.ToLower(video)],
		CanCopyAudio: audio != "" && plexFriendlyAudioCodecs[strings.ToLower(audio)],
	}
}

func (t *Transcoder) ffprobePath() string {
	path := t.FFprobePath
	if path == "" {
		path = "ffprobe"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return ""
	}
	return resolved
}
