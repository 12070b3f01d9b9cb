package transcoder

import "fmt"

// ErrFFmpegNotFound means the configured ffmpeg binary could not be
// resolved on PATH at stream start. Fatal per channel: the broadcaster
// enters IDLE and the manager does not retry.
type ErrFFmpegNotFound struct {
	Path string
	Err  error
}

func (e *ErrFFmpegNotFound) Error() string {
	return fmt.Sprintf("ffmpeg not found at %q: %v", e.Path, e.Err)
}

func (e *ErrFFmpegNotFound) Unwrap() error { return e.Err }

// ErrFFmpegImmediateExit means the process exited before producing a
// single stdout chunk.
type ErrFFmpegImmediateExit struct {
	Code int
	Tail string
}

func (e *ErrFFmpegImmediateExit) Error() string {
	return fmt.Sprintf("ffmpeg exited immediately with code %d (stderr tail: %q)", e.Code, e.Tail)
}

// ErrFirstChunkTimeout means no stdout bytes arrived within the first-chunk
// deadline, including the extended retry window.
type ErrFirstChunkTimeout struct {
	Tail string
}

func (e *ErrFirstChunkTimeout) Error() string {
	return fmt.Sprintf("timed out waiting for first ffmpeg chunk (stderr tail: %q)", e.Tail)
}

// ErrFatalDemuxError means the stderr classifier saw a fatal-class line
// ("error during demuxing", "demuxing ... input/output error").
type ErrFatalDemuxError struct {
	Tail string
}

func (e *ErrFatalDemuxError) Error() string {
	return fmt.Sprintf("fatal demux error (stderr tail: %q)", e.Tail)
}
