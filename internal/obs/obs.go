// Package obs holds the head-end's process-wide Prometheus metrics. Every
// other package imports obs and increments its counters/gauges directly
// rather than threading a registry handle through constructors.
package obs

import "github.com/prometheus/client_golang/prometheus"

var (
	// FFmpegSpawnsTotal counts every FFmpeg process started by the
	// transcoder's Stream calls; ffprobe runs from Probe are not counted.
	FFmpegSpawnsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ffmpeg_spawns_total",
		Help: "Total number of FFmpeg processes spawned by the transcoder.",
	})

	// FFmpegExitTotal counts FFmpeg process exits, labeled by reason
	// (eof, fatal_demux, first_chunk_timeout, immediate_exit, error).
	FFmpegExitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ffmpeg_exit_total",
		Help: "FFmpeg process exits by reason.",
	}, []string{"reason"})

	// StderrClassifiedTotal counts stderr lines by classifier outcome
	// (debug, warning, error, fatal).
	StderrClassifiedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stderr_classified_total",
		Help: "FFmpeg stderr lines by classification.",
	}, []string{"class"})

	// ActiveBroadcasters is a gauge of channels currently RUNNING.
	ActiveBroadcasters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "active_broadcasters",
		Help: "Number of channel broadcasters currently running.",
	})

	// ClientAttachTotal counts clients attaching to a broadcaster fan-out;
	// ClientDetachTotal counts clients the fan-out drops because their
	// queue is full or closed. Neither is labeled by channel.
	ClientAttachTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "client_attach_total",
		Help: "Total client stream attachments across all channels.",
	})
	ClientDetachTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "client_detach_total",
		Help: "Total client stream detachments across all channels.",
	})

	// HTTPRequestsTotal counts IPTV/HDHomeRun HTTP requests by route
	// pattern.
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "IPTV/HDHomeRun HTTP requests by route.",
	}, []string{"route"})
)

// Registry is the process-wide Prometheus registry. cmd/streamtv-head
// exposes it on /metrics via promhttp.HandlerFor.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		FFmpegSpawnsTotal,
		FFmpegExitTotal,
		StderrClassifiedTotal,
		ActiveBroadcasters,
		ClientAttachTotal,
		ClientDetachTotal,
		HTTPRequestsTotal,
	)
}
