// Package schedule implements the YAML schedule parser (C2) and the
// schedule engine that expands a parsed schedule into an ordered list of
// playout items for a channel (C3).
package schedule

import (
	"time"

	"github.com/headend/streamtv/internal/catalog"
)

// ContentEntry binds a content key to a named collection plus the order it
// should be walked in.
type ContentEntry struct {
	Key        string
	Collection string
	Order      catalog.CollectionOrder
}

// OpKind discriminates the sequence op variants from §3/§4.3.
type OpKind int

const (
	OpReference OpKind = iota
	OpAll
	OpDurationFill
	OpSequence
	OpPadToNext
	OpPadUntil
	OpWaitUntil
	OpSkipItems
	OpShuffleSequence
	OpPreRoll
	OpMidRoll
	OpPostRoll
)

// Op is a single sequence operation. Only the fields relevant to Kind are
// populated; this mirrors the YAML source's "one of several shapes" maps
// without resorting to an interface{} per-op type.
type Op struct {
	Kind OpKind

	ContentKey  string // reference, all, duration_fill, skipItems
	SequenceKey string // sequence, shuffleSequence, pre/mid/post_roll target

	Duration        time.Duration // duration_fill
	DiscardAttempts int           // duration_fill

	PadMinutes int    // padToNext, default 60
	TimeOfDay  string // padUntil, waitUntil: "HH:MM[:SS]"

	Tomorrow      bool // waitUntil
	RewindOnReset bool // waitUntil

	SkipExpr string // skipItems: integer | "count" | "count/N" | "random"

	RollOn       bool   // pre_roll/mid_roll/post_roll toggle state
	FallbackKey  string // padToNext/padUntil fallback content key

	CustomTitle string
	FillerKind  string
}

// ParsedSchedule is the in-memory result of parsing a YAML schedule file.
// Pure data; no I/O, no side effects.
type ParsedSchedule struct {
	Name            string
	Description     string
	ContentMap      map[string]ContentEntry
	Sequences       map[string][]Op
	MainSequenceKey string
	Repeat          bool
}

// PlayoutItem is one emitted slot in an expanded schedule.
type PlayoutItem struct {
	Media       catalog.MediaItem
	CustomTitle string
	FillerKind  string
	StartTime   time.Time
}
