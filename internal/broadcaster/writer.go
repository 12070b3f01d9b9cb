package broadcaster

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Adaptive buffer tuning: grow when the client is slow (backpressure),
// shrink when it keeps up. Adapted verbatim from internal/tuner/gateway.go's
// adaptiveWriter.
const (
	adaptiveBufferMin       = 64 << 10 // 64 KiB
	adaptiveBufferMax       = 2 << 20  // 2 MiB
	adaptiveBufferInitial   = 1 << 20  // 1 MiB
	adaptiveSlowFlushMs     = 100
	adaptiveFastFlushMs     = 20
	adaptiveFastCountShrink = 3
)

// AdaptiveWriter buffers chunks and grows/shrinks its flush-trigger size
// based on how long the underlying Write to the client took, so a slow
// client gets fewer, larger syscalls and a fast client gets low latency.
type AdaptiveWriter struct {
	w            io.Writer
	buf          bytes.Buffer
	targetSize   int
	minSize      int
	maxSize      int
	slowThresh   time.Duration
	fastThresh   time.Duration
	fastCount    int
	fastCountMax int
}

// NewAdaptiveWriter wraps w (typically an http.ResponseWriter) with the
// client-speed-adaptive buffering strategy.
func NewAdaptiveWriter(w io.Writer) *AdaptiveWriter {
	return &AdaptiveWriter{
		w:            w,
		targetSize:   adaptiveBufferInitial,
		minSize:      adaptiveBufferMin,
		maxSize:      adaptiveBufferMax,
		slowThresh:   adaptiveSlowFlushMs * time.Millisecond,
		fastThresh:   adaptiveFastFlushMs * time.Millisecond,
		fastCountMax: adaptiveFastCountShrink,
	}
}

func (a *AdaptiveWriter) Write(p []byte) (int, error) {
	n, err := a.buf.Write(p)
	if err != nil {
		return n, err
	}
	for a.buf.Len() >= a.targetSize {
		if err := a.flushToClient(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (a *AdaptiveWriter) flushToClient() error {
	if a.buf.Len() == 0 {
		return nil
	}
	start := time.Now()
	for a.buf.Len() > 0 {
		n, err := a.w.Write(a.buf.Bytes())
		if err != nil {
			return err
		}
		if n <= 0 {
			break
		}
		remaining := a.buf.Bytes()[n:]
		a.buf.Reset()
		a.buf.Write(remaining)
	}
	d := time.Since(start)
	switch {
	case d >= a.slowThresh:
		if a.targetSize < a.maxSize {
			a.targetSize *= 2
			if a.targetSize > a.maxSize {
				a.targetSize = a.maxSize
			}
		}
		a.fastCount = 0
	case d <= a.fastThresh:
		a.fastCount++
		if a.fastCount >= a.fastCountMax {
			a.fastCount = 0
			if a.targetSize > a.minSize {
				a.targetSize /= 2
				if a.targetSize < a.minSize {
					a.targetSize = a.minSize
				}
			}
		}
	default:
		a.fastCount = 0
	}
	return nil
}

// Flush forces any buffered bytes out now.
func (a *AdaptiveWriter) Flush() error { return a.flushToClient() }

// isClientDisconnectWriteError classifies a write failure as "the client
// went away" (not to be logged as a server error) versus a real fault.
// Adapted from internal/tuner/gateway.go's isClientDisconnectWriteError.
func isClientDisconnectWriteError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "use of closed network connection")
}

// streamDebugOptions is read once per request from env, matching the
// teacher's PLEX_TUNER_DEBUG_* gating (renamed to the STREAMTV_ prefix).
type streamDebugOptions struct {
	httpHeaders bool
}

func streamDebugOptionsFromEnv() streamDebugOptions {
	return streamDebugOptions{
		httpHeaders: envBool("STREAMTV_DEBUG_HTTP_HEADERS"),
	}
}

func (o streamDebugOptions) enabled() bool { return o.httpHeaders }

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// streamDebugResponseWriter optionally logs response headers and a
// first-byte timestamp for a streaming response; it is a thin
// http.ResponseWriter wrapper enabled only behind streamDebugOptions, the
// same opt-in shape as the teacher's debug tee (minus the file tee, which
// nothing in this repo's ambient stack needs).
type streamDebugResponseWriter struct {
	http.ResponseWriter
	reqID        string
	channelNum   string
	start        time.Time
	logHeaders   bool
	headerLogged bool
	firstByte    bool
	status       int
}

func newStreamDebugResponseWriter(w http.ResponseWriter, reqID, channelNum string, start time.Time, opts streamDebugOptions) *streamDebugResponseWriter {
	return &streamDebugResponseWriter{
		ResponseWriter: w,
		reqID:          reqID,
		channelNum:     channelNum,
		start:          start,
		logHeaders:     opts.httpHeaders,
	}
}

func (w *streamDebugResponseWriter) logResponseHeaders(implicit bool) {
	if w.headerLogged {
		return
	}
	w.headerLogged = true
	if !w.logHeaders {
		return
	}
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	log.Printf("broadcaster: req=%s channel=%s debug response-headers status=%d implicit=%t startup=%s",
		w.reqID, w.channelNum, status, implicit, time.Since(w.start).Round(time.Millisecond))
}

func (w *streamDebugResponseWriter) WriteHeader(code int) {
	w.status = code
	w.logResponseHeaders(false)
	w.ResponseWriter.WriteHeader(code)
}

func (w *streamDebugResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if !w.headerLogged {
		w.logResponseHeaders(true)
	}
	n, err := w.ResponseWriter.Write(p)
	if n > 0 && !w.firstByte {
		w.firstByte = true
		if w.logHeaders {
			log.Printf("broadcaster: req=%s channel=%s debug first-byte-sent startup=%s bytes=%d",
				w.reqID, w.channelNum, time.Since(w.start).Round(time.Millisecond), n)
		}
	}
	return n, err
}

func (w *streamDebugResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
