package transcoder

import (
	"log"
	"strings"

	"github.com/headend/streamtv/internal/obs"
)

// stderrClass is the classifier's outcome for one stderr line.
type stderrClass int

const (
	classDebug stderrClass = iota
	classWarning
	classErrorLine
	classFatal
)

func (c stderrClass) String() string {
	switch c {
	case classDebug:
		return "debug"
	case classWarning:
		return "warning"
	case classErrorLine:
		return "error"
	case classFatal:
		return "fatal"
	default:
		return "debug"
	}
}

// downgradeToDebug lines are noisy-but-harmless: FFmpeg logs them routinely
// on live HLS/HTTP sources without anything actually being wrong.
var downgradeToDebug = []string{
	"hwaccel initialisation returned error",
	"error while decoding mb",
	"will reconnect at",
	"will reconnect: 0 error",
}

// fatalMarkers cause the stream to raise ErrFatalDemuxError and stop.
var fatalMarkers = []string{
	"error during demuxing",
	"demuxing ... input/output error",
	"demuxing: input/output error",
}

// classifyStderrLine applies the case-insensitive matchers and bumps the
// obs counter for the outcome.
func classifyStderrLine(line string) stderrClass {
	lower := strings.ToLower(line)
	class := classifyLower(lower)
	obs.StderrClassifiedTotal.WithLabelValues(class.String()).Inc()
	return class
}

func classifyLower(lower string) stderrClass {
	for _, m := range fatalMarkers {
		if strings.Contains(lower, m) {
			return classFatal
		}
	}
	for _, m := range downgradeToDebug {
		if strings.Contains(lower, m) {
			return classDebug
		}
	}
	if strings.Contains(lower, "will reconnect") && strings.Contains(lower, "end of file") {
		return classDebug
	}
	if strings.Contains(lower, "will reconnect") && strings.Contains(lower, "input/output error") {
		return classDebug
	}
	if strings.Contains(lower, "warning") {
		return classWarning
	}
	if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
		return classErrorLine
	}
	return classDebug
}

// stderrDrainer reads lines from an ffmpeg stderr pipe, classifies each,
// logs error/warning-class lines, keeps the last N lines as a tail for
// error reporting, and signals fatal via the returned channel (closed once
// on the first fatal line).
type stderrDrainer struct {
	tail    []string
	maxTail int
	fatalCh chan struct{}
	fatalOnce bool
}

func newStderrDrainer(maxTail int) *stderrDrainer {
	return &stderrDrainer{maxTail: maxTail, fatalCh: make(chan struct{})}
}

func (d *stderrDrainer) feed(line string) {
	d.tail = append(d.tail, line)
	if len(d.tail) > d.maxTail {
		d.tail = d.tail[len(d.tail)-d.maxTail:]
	}
	class := classifyStderrLine(line)
	switch class {
	case classFatal:
		log.Printf("transcoder: fatal demux line: %s", line)
		if !d.fatalOnce {
			d.fatalOnce = true
			close(d.fatalCh)
		}
	case classErrorLine:
		log.Printf("transcoder: ffmpeg error: %s", line)
	case classWarning:
		log.Printf("transcoder: ffmpeg warning: %s", line)
	}
}

func (d *stderrDrainer) tailString() string {
	return strings.Join(d.tail, "\n")
}

func (d *stderrDrainer) fatal() <-chan struct{} {
	return d.fatalCh
}
