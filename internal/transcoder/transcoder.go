// Package transcoder spawns FFmpeg per playout item, turning one resolved
// source URL into an MPEG-TS chunk stream for the broadcaster to fan out.
package transcoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/config"
	"github.com/headend/streamtv/internal/obs"
)

const (
	chunkSize             = 8 * 1024
	firstChunkDeadline    = 15 * time.Second
	firstChunkRetryWindow = 10 * time.Second
	subsequentDeadline    = 5 * time.Second
	processKillGrace      = 5 * time.Second
	stderrTailLines       = 10
)

// ChunkFunc receives one MPEG-TS chunk. Returning an error (e.g. the
// broadcaster detected a client write failure) stops the stream early,
// same as a fatal classifier hit.
type ChunkFunc func([]byte) error

// errNoChunksEOF is readChunks' internal signal that ffmpeg exited (clean
// EOF) without ever producing stdout data; Stream turns this into
// ErrFFmpegImmediateExit once the process's exit code is known.
var errNoChunksEOF = errors.New("transcoder: ffmpeg exited before any stdout data")

// Transcoder builds and runs FFmpeg commands per §4.4's command-synthesis
// and timeout rules. One Transcoder is shared process-wide; spawnLimiter
// and sem bound total concurrent FFmpeg processes per the configured cap.
type Transcoder struct {
	FFmpegPath  string
	FFprobePath string
	Cfg         *config.Config

	spawnLimiter *rate.Limiter
	sem          chan struct{}
}

// New builds a Transcoder honoring cfg.MaxConcurrentFFmpeg as a hard
// concurrency cap, with spawnLimiter throttling how fast new processes may
// be started (a burst of the same size, refilling at 2/s) so a thundering
// herd of channel starts doesn't fork dozens of ffmpeg processes in the
// same instant even when under the concurrency cap.
func New(cfg *config.Config) *Transcoder {
	limit := cfg.MaxConcurrentFFmpeg
	if limit <= 0 {
		limit = 8
	}
	return &Transcoder{
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		Cfg:          cfg,
		spawnLimiter: rate.NewLimiter(rate.Limit(2), limit),
		sem:          make(chan struct{}, limit),
	}
}

func (t *Transcoder) acquire(ctx context.Context) error {
	if err := t.spawnLimiter.Wait(ctx); err != nil {
		return err
	}
	select {
	case t.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transcoder) release() { <-t.sem }

func (t *Transcoder) resolveFFmpegPath() (string, error) {
	path := t.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	return exec.LookPath(path)
}

// Stream spawns ffmpeg for url and feeds onChunk with each 8 KiB stdout
// read until EOF, a fatal-class stderr line, onChunk returning an error, or
// ctx cancellation. See §4.4 for the exact timeout/cancellation contract.
func (t *Transcoder) Stream(ctx context.Context, url string, source catalog.Source, channelHwaccel string, probe ProbeResult, onChunk ChunkFunc) error {
	ffmpegPath, err := t.resolveFFmpegPath()
	if err != nil {
		return &ErrFFmpegNotFound{Path: t.FFmpegPath, Err: err}
	}
	if err := t.acquire(ctx); err != nil {
		return err
	}
	defer t.release()

	args := BuildCommand(t.Cfg, url, source, probe, channelHwaccel)
	procCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(procCtx, ffmpegPath, args...)
	// On context cancellation, ask ffmpeg to exit cleanly; WaitDelay gives
	// it processKillGrace before Wait escalates to SIGKILL, matching §4.4's
	// "terminate, wait 5s, kill" cancellation contract.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = processKillGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("transcoder: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("transcoder: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("transcoder: start: %w", err)
	}
	obs.FFmpegSpawnsTotal.Inc()

	drainer := newStderrDrainer(stderrTailLines)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 4096), 1<<20)
		for sc.Scan() {
			drainer.feed(sc.Text())
		}
	}()

	streamErr := t.readChunks(procCtx, stdout, drainer, onChunk)

	cancel() // ask ffmpeg to stop even on a clean EOF return; Wait reaps it
	_ = cmd.Wait()
	wg.Wait()

	if errors.Is(streamErr, errNoChunksEOF) {
		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		streamErr = &ErrFFmpegImmediateExit{Code: code, Tail: drainer.tailString()}
	}
	if streamErr != nil {
		obs.FFmpegExitTotal.WithLabelValues(exitReasonFor(streamErr)).Inc()
		return streamErr
	}
	obs.FFmpegExitTotal.WithLabelValues("eof").Inc()
	return nil
}

func exitReasonFor(err error) string {
	switch err.(type) {
	case *ErrFatalDemuxError:
		return "fatal_demux"
	case *ErrFirstChunkTimeout:
		return "first_chunk_timeout"
	case *ErrFFmpegImmediateExit:
		return "immediate_exit"
	default:
		return "error"
	}
}

// readChunks implements the first-chunk/subsequent-chunk deadlines: no
// first chunk within 15s triggers one extended 10s retry read; still
// nothing raises ErrFirstChunkTimeout. After the first chunk, a read
// timeout while the process is alive and no fatal line has been seen is
// not an error (a linear stream may legitimately stall briefly); the loop
// just keeps waiting on the next read.
func (t *Transcoder) readChunks(ctx context.Context, stdout io.Reader, drainer *stderrDrainer, onChunk ChunkFunc) error {
	type readResult struct {
		n   int
		err error
	}
	buf := make([]byte, chunkSize)
	reads := make(chan readResult, 1)
	requestRead := func() {
		go func() {
			n, err := stdout.Read(buf)
			reads <- readResult{n: n, err: err}
		}()
	}

	gotFirstChunk := false
	requestRead()
	for {
		deadline := time.After(subsequentDeadline)
		if !gotFirstChunk {
			deadline = time.After(firstChunkDeadline)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-drainer.fatal():
			return &ErrFatalDemuxError{Tail: drainer.tailString()}
		case res := <-reads:
			if res.n > 0 {
				gotFirstChunk = true
				if err := onChunk(append([]byte(nil), buf[:res.n]...)); err != nil {
					return err
				}
			}
			if res.err != nil {
				if res.err == io.EOF {
					if !gotFirstChunk {
						return errNoChunksEOF
					}
					return nil
				}
				return fmt.Errorf("transcoder: stdout read: %w", res.err)
			}
			requestRead()
		case <-deadline:
			if gotFirstChunk {
				// A stall here is allowed unless fatal was flagged: linear
				// streams can legitimately pause briefly. Keep waiting on
				// the same in-flight read.
				continue
			}
			log.Printf("transcoder: no first chunk in %s, retrying for %s", firstChunkDeadline, firstChunkRetryWindow)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-drainer.fatal():
				return &ErrFatalDemuxError{Tail: drainer.tailString()}
			case res := <-reads:
				if res.n > 0 {
					if err := onChunk(append([]byte(nil), buf[:res.n]...)); err != nil {
						return err
					}
					gotFirstChunk = true
					requestRead()
					continue
				}
				if res.err != nil {
					return &ErrFirstChunkTimeout{Tail: drainer.tailString()}
				}
				requestRead()
			case <-time.After(firstChunkRetryWindow):
				return &ErrFirstChunkTimeout{Tail: drainer.tailString()}
			}
		}
	}
}

