package transcoder

import (
	"strconv"
	"strings"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/config"
)

// inputClass is the URL classification the command builder branches on
// when choosing demux/reconnect flags.
type inputClass int

const (
	inputDefault inputClass = iota
	inputHTTP
	inputMPEG4Container
	inputDRMHLS
)

// classifyInput picks the most specific bucket that applies: a DRM-tagged
// HLS playlist first (it needs the most conservative probing), then a
// direct MPEG-4 file (disables hwaccel downstream), then any other
// http(s) URL, then everything else.
func classifyInput(url string, source catalog.Source) inputClass {
	lower := strings.ToLower(url)
	if strings.Contains(lower, ".m3u8") && (strings.Contains(lower, "drm") || isKnownLivePBSHost(lower)) {
		return inputDRMHLS
	}
	if strings.HasSuffix(lower, ".mp4") || source == catalog.SourceYouTube {
		return inputMPEG4Container
	}
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return inputHTTP
	}
	return inputDefault
}

func isKnownLivePBSHost(lowerURL string) bool {
	return strings.Contains(lowerURL, "pbs.org") || strings.Contains(lowerURL, "video-auth")
}

// BuildCommand assembles the full ffmpeg argv (minus the binary itself)
// for one playout item: global flags, input-class flags, hwaccel decision,
// codec selection, then the fixed MPEG-TS output tail.
func BuildCommand(cfg *config.Config, url string, source catalog.Source, probe ProbeResult, channelHwaccel string) []string {
	class := classifyInput(url, source)
	needReencode := !probe.CanCopyVideo || !probe.CanCopyAudio

	args := []string{"-nostdin", "-hide_banner", "-loglevel", loglevelOrDefault(cfg.LogLevel)}

	hwaccel := resolveHwaccel(cfg, channelHwaccel, needReencode, probe.VideoCodec)
	if hwaccel != "" && hwaccel != "none" {
		args = append(args, "-hwaccel", hwaccel)
		if cfg.HwaccelDevice != "" {
			args = append(args, "-hwaccel_device", cfg.HwaccelDevice)
		}
	} else if isMPEG4Family(probe.VideoCodec) {
		args = append(args, "-hwaccel", "none")
	}

	args = append(args, inputFlagsFor(class, source)...)
	args = append(args, "-i", url)

	if !needReencode || (probe.CanCopyVideo && probe.CanCopyAudio) {
		args = append(args, "-threads", "0")
	} else if cfg.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(cfg.Threads))
	}

	args = append(args, videoCodecArgs(probe, hwaccel, class)...)
	args = append(args, audioCodecArgs(probe)...)
	args = append(args, cfg.ExtraFlags...)
	args = append(args, outputArgs()...)
	return args
}

func loglevelOrDefault(lvl string) string {
	if lvl == "" {
		return "warning"
	}
	return lvl
}

// resolveHwaccel applies §4.4's hwaccel decision: only switched on when a
// re-encode is actually needed and the source codec is not MPEG-4 family
// (which silently breaks most hardware decoders). Otherwise the configured
// per-channel/per-source hwaccel is honored as-is. An unavailable/invalid
// accelerator makes ffmpeg fail and Stream returns that error; nothing
// retries the item with software decoding.
func resolveHwaccel(cfg *config.Config, channelHwaccel string, needReencode bool, videoCodec string) string {
	if !needReencode {
		return ""
	}
	if isMPEG4Family(videoCodec) {
		return "none"
	}
	if channelHwaccel != "" {
		return channelHwaccel
	}
	return cfg.Hwaccel
}

func inputFlagsFor(class inputClass, source catalog.Source) []string {
	switch class {
	case inputDRMHLS:
		return []string{
			"-err_detect", "ignore_err",
			"-probesize", "1M", "-analyzeduration", "2M",
		}
	case inputMPEG4Container:
		return []string{
			"-fflags", "+genpts+discardcorrupt+igndts",
			"-err_detect", "ignore_err",
			"-probesize", "5M", "-analyzeduration", "5M",
		}
	case inputHTTP:
		timeoutSec := 30
		reconnectDelayMax := 5
		if source == catalog.SourceArchiveOrg || source == catalog.SourcePlex {
			timeoutSec = 60
			reconnectDelayMax = 10
		}
		flags := []string{
			"-timeout", strconv.Itoa(timeoutSec * 1000000),
			"-user_agent", "StreamTV/1.0",
			"-reconnect", "1",
			"-reconnect_at_eof", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", strconv.Itoa(reconnectDelayMax),
			"-multiple_requests", "1",
		}
		return flags
	default:
		return []string{
			"-fflags", "+genpts+discardcorrupt+fastseek",
			"-flags", "+low_delay",
			"-probesize", "1M", "-analyzeduration", "2M",
		}
	}
}

func videoCodecArgs(probe ProbeResult, hwaccel string, class inputClass) []string {
	if probe.CanCopyVideo {
		return []string{"-c:v", "copy", "-bsf:v", "h264_mp4toannexb,dump_extra"}
	}
	if hwaccel != "" && hwaccel != "none" {
		return []string{
			"-c:v", hardwareEncoderFor(hwaccel),
			"-b:v", "6M", "-maxrate", "6M", "-bufsize", "12M",
			"-profile:v", "high",
			"-pix_fmt", "yuv420p",
			"-bsf:v", "dump_extra",
		}
	}
	preset := "veryfast"
	if class == inputMPEG4Container {
		preset = "ultrafast"
	}
	return []string{
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", "23",
		"-maxrate", "6M", "-bufsize", "12M",
		"-profile:v", "high", "-level", "4.1",
		"-g", "50",
		"-pix_fmt", "yuv420p",
	}
}

// hardwareEncoderFor maps a configured -hwaccel name to the matching
// ffmpeg H.264 hardware encoder. Unknown accelerators fall back to the
// software encoder name so ffmpeg surfaces a clear "unknown encoder"
// error rather than silently picking the wrong device.
func hardwareEncoderFor(hwaccel string) string {
	switch strings.ToLower(hwaccel) {
	case "videotoolbox":
		return "h264_videotoolbox"
	case "qsv":
		return "h264_qsv"
	case "vaapi":
		return "h264_vaapi"
	case "nvenc", "cuda":
		return "h264_nvenc"
	default:
		return "libx264"
	}
}

func audioCodecArgs(probe ProbeResult) []string {
	if probe.CanCopyAudio {
		return []string{"-c:a", "copy"}
	}
	return []string{"-c:a", "aac", "-ac", "2", "-b:a", "192k", "-ar", "48000"}
}

func outputArgs() []string {
	return []string{
		"-f", "mpegts",
		"-muxrate", "4M",
		"-pcr_period", "20",
		"-flush_packets", "1",
		"-fflags", "+flush_packets",
		"-max_interleave_delta", "0",
		"-",
	}
}
