package transcoder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/config"
)

// writeFakeFFmpeg writes a shell script standing in for ffmpeg: it ignores
// its args (so BuildCommand's exact flags don't matter here) and just
// emits scriptBody, letting tests exercise Stream's chunking/timeout/
// cancellation plumbing without a real ffmpeg binary.
func writeFakeFFmpeg(t *testing.T, scriptBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-ffmpeg.sh")
	content := "#!/bin/sh\n" + scriptBody + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func newTestTranscoder(t *testing.T, ffmpegPath string) *Transcoder {
	t.Helper()
	cfg := &config.Config{FFmpegPath: ffmpegPath, FFprobePath: "ffprobe", MaxConcurrentFFmpeg: 4}
	return New(cfg)
}

func TestStream_emitsChunksThenEOF(t *testing.T) {
	path := writeFakeFFmpeg(t, `printf 'hello-ts-bytes'; exit 0`)
	tr := newTestTranscoder(t, path)

	var got []byte
	err := tr.Stream(context.Background(), "https://example/video.ts", catalog.SourceArchiveOrg, "", ProbeResult{CanCopyVideo: true, CanCopyAudio: true, VideoCodec: "h264", AudioCodec: "aac"}, func(b []byte) error {
		got = append(got, b...)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if string(got) != "hello-ts-bytes" {
		t.Errorf("got %q, want %q", got, "hello-ts-bytes")
	}
}

func TestStream_immediateExitWithNoOutput(t *testing.T) {
	path := writeFakeFFmpeg(t, `exit 1`)
	tr := newTestTranscoder(t, path)

	err := tr.Stream(context.Background(), "https://example/video.ts", catalog.SourceArchiveOrg, "", ProbeResult{}, func(b []byte) error { return nil })
	if _, ok := err.(*ErrFFmpegImmediateExit); !ok {
		t.Fatalf("expected ErrFFmpegImmediateExit, got %T: %v", err, err)
	}
}

func TestStream_fatalStderrStopsEarly(t *testing.T) {
	path := writeFakeFFmpeg(t, `printf 'chunk1'; echo "Error during demuxing: -5" 1>&2; sleep 5; printf 'chunk2'`)
	tr := newTestTranscoder(t, path)

	var got []byte
	err := tr.Stream(context.Background(), "https://example/video.ts", catalog.SourceArchiveOrg, "", ProbeResult{}, func(b []byte) error {
		got = append(got, b...)
		return nil
	})
	if _, ok := err.(*ErrFatalDemuxError); !ok {
		t.Fatalf("expected ErrFatalDemuxError, got %T: %v", err, err)
	}
	if string(got) != "chunk1" {
		t.Errorf("got %q, want %q (chunk2 should never arrive)", got, "chunk1")
	}
}

func TestStream_ffmpegNotFound(t *testing.T) {
	cfg := &config.Config{FFmpegPath: "/nonexistent/path/to/ffmpeg-binary-xyz", MaxConcurrentFFmpeg: 1}
	tr := New(cfg)
	err := tr.Stream(context.Background(), "https://example/video.ts", catalog.SourceArchiveOrg, "", ProbeResult{}, func(b []byte) error { return nil })
	if _, ok := err.(*ErrFFmpegNotFound); !ok {
		t.Fatalf("expected ErrFFmpegNotFound, got %T: %v", err, err)
	}
}

func TestStream_onChunkErrorStopsStream(t *testing.T) {
	path := writeFakeFFmpeg(t, `i=0; while [ $i -lt 100 ]; do printf 'x'; i=$((i+1)); sleep 0.05; done`)
	tr := newTestTranscoder(t, path)

	stopAfter := 3
	seen := 0
	err := tr.Stream(context.Background(), "https://example/video.ts", catalog.SourceArchiveOrg, "", ProbeResult{}, func(b []byte) error {
		seen++
		if seen >= stopAfter {
			return errStopForTest
		}
		return nil
	})
	if err != errStopForTest {
		t.Fatalf("expected errStopForTest to propagate, got %v", err)
	}
}

func TestStream_concurrencyCapBlocksThenReleases(t *testing.T) {
	path := writeFakeFFmpeg(t, `printf 'x'; exit 0`)
	cfg := &config.Config{FFmpegPath: path, FFprobePath: "ffprobe", MaxConcurrentFFmpeg: 1}
	tr := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := tr.Stream(ctx, "https://example/video.ts", catalog.SourceArchiveOrg, "", ProbeResult{}, func(b []byte) error { return nil }); err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
	}
}

type stopErr struct{}

func (stopErr) Error() string { return "test: stop requested" }

var errStopForTest = stopErr{}
