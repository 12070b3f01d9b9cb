package schedule

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/headend/streamtv/internal/catalog"
)

// DefaultMaxItems is the §4.3 default cap on one Expand call.
const DefaultMaxItems = 1000

// DefaultItemDuration is the fallback duration (seconds) used for an item
// whose media has no known duration, and for the "empty cycle" guard.
const DefaultItemDuration = 1800

const maxSequenceDepth = 8

// CollectionLookup resolves a collection name (as named by a ContentEntry)
// to its ordered MediaItems. Returning ok=false means "not found"; the
// engine degrades to an empty emission and logs once, per §4.3.
type CollectionLookup func(collectionName string) ([]catalog.MediaItem, bool)

// Engine expands a ParsedSchedule into playout items for one channel.
type Engine struct {
	MaxItems int
}

func NewEngine() *Engine { return &Engine{MaxItems: DefaultMaxItems} }

// Expand runs the §4.3 algorithm starting from ps.MainSequenceKey. now
// anchors both the wall-clock ops (padToNext/padUntil/waitUntil) and the
// day-of-year used to seed any shuffle. Expand is deterministic given the
// same (ps, channelNumber, now) and lookup contents.
func (e *Engine) Expand(ps *ParsedSchedule, channelNumber string, lookup CollectionLookup, now time.Time) []PlayoutItem {
	max := e.MaxItems
	if max <= 0 {
		max = DefaultMaxItems
	}
	if ps == nil || ps.MainSequenceKey == "" {
		log.Printf("schedule: channel %s has no main sequence; emitting nothing", channelNumber)
		return nil
	}
	mainOps, ok := ps.Sequences[ps.MainSequenceKey]
	if !ok || len(mainOps) == 0 {
		log.Printf("schedule: channel %s main sequence %q is empty", channelNumber, ps.MainSequenceKey)
		return nil
	}

	// shuffleSequence ops replace entries in a per-call copy of the
	// sequence map, so ps itself is never modified between calls.
	seqs := make(map[string][]Op, len(ps.Sequences))
	for k, v := range ps.Sequences {
		seqs[k] = v
	}
	psCopy := *ps
	psCopy.Sequences = seqs

	w := &walker{
		ps:            &psCopy,
		channelNumber: channelNumber,
		lookup:        lookup,
		dayOfYear:     now.YearDay(),
		views:         map[string][]catalog.MediaItem{},
		currentTime:   now,
		warned:        map[string]bool{},
		maxItems:      max,
	}

	base := w.walkOps(mainOps, 0)
	if len(base) == 0 {
		return nil
	}
	if !ps.Repeat {
		if len(base) > max {
			return base[:max]
		}
		return base
	}
	out := make([]PlayoutItem, 0, max)
	for len(out) < max {
		remaining := max - len(out)
		if remaining >= len(base) {
			out = append(out, base...)
		} else {
			out = append(out, base[:remaining]...)
		}
	}
	return out
}

type walker struct {
	ps            *ParsedSchedule
	channelNumber string
	lookup        CollectionLookup
	dayOfYear     int
	views         map[string][]catalog.MediaItem
	warned        map[string]bool

	preRoll, midRoll, postRoll string
	currentTime                time.Time
	maxItems                   int
}

func (w *walker) warnOnce(key, msg string) {
	if w.warned[key] {
		return
	}
	w.warned[key] = true
	log.Printf("schedule: %s", msg)
}

// walkOps processes one sequence's ops in order, applying toggle ops to the
// shared roll state and emitting playout items (wrapped with pre/mid/post
// roll expansions) for content ops.
func (w *walker) walkOps(ops []Op, depth int) []PlayoutItem {
	var out []PlayoutItem
	for _, op := range ops {
		if len(out) >= w.maxItems {
			break
		}
		switch op.Kind {
		case OpPreRoll:
			if op.RollOn && op.SequenceKey != "" {
				w.preRoll = op.SequenceKey
			} else if !op.RollOn {
				w.preRoll = ""
			}
		case OpMidRoll:
			if op.RollOn && op.SequenceKey != "" {
				w.midRoll = op.SequenceKey
			} else if !op.RollOn {
				w.midRoll = ""
			}
		case OpPostRoll:
			if op.RollOn && op.SequenceKey != "" {
				w.postRoll = op.SequenceKey
			} else if !op.RollOn {
				w.postRoll = ""
			}
		case OpWaitUntil:
			w.applyWaitUntil(op)
		case OpSkipItems:
			w.applySkipItems(op)
		case OpShuffleSequence:
			w.applyShuffleSequence(op)
		case OpReference, OpAll:
			group := w.emitContent(op)
			out = append(out, w.wrapWithRolls(group, depth)...)
		case OpDurationFill:
			group := w.emitDurationFill(op)
			out = append(out, w.wrapWithRolls(group, depth)...)
		case OpPadToNext:
			group := w.emitPadToNext(op)
			out = append(out, w.wrapWithRolls(group, depth)...)
		case OpPadUntil:
			group := w.emitPadUntil(op)
			out = append(out, w.wrapWithRolls(group, depth)...)
		case OpSequence:
			if depth >= maxSequenceDepth {
				w.warnOnce("depth:"+op.SequenceKey, "sequence nesting too deep, truncating at "+op.SequenceKey)
				continue
			}
			sub, ok := w.ps.Sequences[op.SequenceKey]
			if !ok {
				w.warnOnce("sequence:"+op.SequenceKey, "sequence key \""+op.SequenceKey+"\" not found")
				continue
			}
			group := w.walkOps(sub, depth+1)
			out = append(out, w.wrapWithRolls(group, depth)...)
		}
	}
	return out
}

func (w *walker) wrapWithRolls(group []PlayoutItem, depth int) []PlayoutItem {
	if len(group) == 0 {
		return nil
	}
	var final []PlayoutItem
	if w.preRoll != "" && depth == 0 {
		final = append(final, w.expandContentOnly(w.preRoll, depth+1)...)
	}
	final = append(final, group[0])
	if len(group) > 1 {
		if w.midRoll != "" && depth == 0 {
			final = append(final, w.expandContentOnly(w.midRoll, depth+1)...)
		}
		final = append(final, group[1:]...)
	}
	if w.postRoll != "" && depth == 0 {
		final = append(final, w.expandContentOnly(w.postRoll, depth+1)...)
	}
	return final
}

// expandContentOnly expands a roll sequence's content ops without applying
// further pre/mid/post-roll wrapping (rolls do not themselves carry rolls).
func (w *walker) expandContentOnly(seqKey string, depth int) []PlayoutItem {
	if depth >= maxSequenceDepth {
		return nil
	}
	ops, ok := w.ps.Sequences[seqKey]
	if !ok {
		w.warnOnce("sequence:"+seqKey, "sequence key \""+seqKey+"\" not found")
		return nil
	}
	var out []PlayoutItem
	for _, op := range ops {
		switch op.Kind {
		case OpReference, OpAll:
			out = append(out, w.emitContent(op)...)
		case OpDurationFill:
			out = append(out, w.emitDurationFill(op)...)
		case OpSequence:
			out = append(out, w.expandContentOnly(op.SequenceKey, depth+1)...)
		}
	}
	return out
}

// collectionView resolves and caches the ordered MediaItem view for a
// content key. Per §4.3 the shuffle permutation is cached per content key
// (scoped by channel+day, not by which sequence referenced it — a schedule
// that references the same shuffled content key from two different
// sequences sees one shared shuffle order, which keeps the cache a plain
// map instead of a (sequence, key) composite without changing day-to-day
// reproducibility).
func (w *walker) collectionView(contentKey string) []catalog.MediaItem {
	if v, ok := w.views[contentKey]; ok {
		return v
	}
	entry, ok := w.ps.ContentMap[contentKey]
	if !ok {
		w.warnOnce("content:"+contentKey, "content key \""+contentKey+"\" not found in content_map")
		w.views[contentKey] = nil
		return nil
	}
	items, ok := w.lookup(entry.Collection)
	if !ok || len(items) == 0 {
		w.warnOnce("collection:"+entry.Collection, "collection \""+entry.Collection+"\" not found or empty")
		w.views[contentKey] = nil
		return nil
	}
	view := append([]catalog.MediaItem(nil), items...)
	if entry.Order == catalog.OrderShuffle {
		seed := seedFor(w.channelNumber, w.dayOfYear, contentKey)
		idx := shuffledIndices(len(view), seed)
		shuffled := make([]catalog.MediaItem, len(view))
		for i, j := range idx {
			shuffled[i] = view[j]
		}
		view = shuffled
	}
	w.views[contentKey] = view
	return view
}

func (w *walker) emitContent(op Op) []PlayoutItem {
	view := w.collectionView(op.ContentKey)
	out := make([]PlayoutItem, 0, len(view))
	for _, m := range view {
		out = append(out, w.appendItem(m, op))
	}
	return out
}

func (w *walker) appendItem(m catalog.MediaItem, op Op) PlayoutItem {
	item := PlayoutItem{
		Media:       m,
		CustomTitle: op.CustomTitle,
		FillerKind:  op.FillerKind,
		StartTime:   w.currentTime,
	}
	w.currentTime = w.currentTime.Add(time.Duration(m.DurationOrDefault(DefaultItemDuration)) * time.Second)
	return item
}

// emitDurationFill implements §4.3's greedy duration_fill: pick items (in
// the collection's configured order, starting over from the first item when
// the collection runs out) whose durations sum to ≥ target with ≤10%
// overshoot, discarding up to DiscardAttempts items that would blow the
// budget before giving up.
func (w *walker) emitDurationFill(op Op) []PlayoutItem {
	view := w.collectionView(op.ContentKey)
	target := int(op.Duration / time.Second)
	return w.durationFillFrom(view, target, op.DiscardAttempts, op)
}

func (w *walker) durationFillFrom(view []catalog.MediaItem, targetSeconds, discardAttempts int, op Op) []PlayoutItem {
	if targetSeconds <= 0 || len(view) == 0 {
		return nil
	}
	maxAllowed := targetSeconds + targetSeconds/10
	var out []PlayoutItem
	total := 0
	discardsUsed := 0
	for i := 0; total < targetSeconds && len(out) < w.maxItems; i++ {
		m := view[i%len(view)]
		d := m.DurationOrDefault(DefaultItemDuration)
		if total+d <= maxAllowed {
			out = append(out, w.appendItem(m, op))
			total += d
			continue
		}
		if discardsUsed < discardAttempts {
			discardsUsed++
			continue
		}
		break
	}
	return out
}

// nextBoundary returns the next wall-clock instant whose minute is a
// multiple of minutes, strictly after from.
func nextBoundary(from time.Time, minutes int) time.Time {
	if minutes <= 0 {
		minutes = 60
	}
	hourStart := from.Truncate(time.Hour)
	for t := hourStart; ; t = t.Add(time.Duration(minutes) * time.Minute) {
		if t.After(from) {
			return t
		}
	}
}

func (w *walker) emitPadToNext(op Op) []PlayoutItem {
	boundary := nextBoundary(w.currentTime, op.PadMinutes)
	target := int(boundary.Sub(w.currentTime) / time.Second)
	return w.padWith(op.ContentKey, op.FallbackKey, target, op)
}

func (w *walker) emitPadUntil(op Op) []PlayoutItem {
	t, err := parseTimeOfDay(w.currentTime, op.TimeOfDay)
	if err != nil {
		w.warnOnce("padUntil:"+op.TimeOfDay, err.Error())
		return nil
	}
	if !t.After(w.currentTime) {
		t = t.Add(24 * time.Hour)
	}
	target := int(t.Sub(w.currentTime) / time.Second)
	return w.padWith(op.ContentKey, op.FallbackKey, target, op)
}

func (w *walker) padWith(contentKey, fallbackKey string, targetSeconds int, op Op) []PlayoutItem {
	view := w.collectionView(contentKey)
	if len(view) == 0 && fallbackKey != "" {
		view = w.collectionView(fallbackKey)
	}
	return w.durationFillFrom(view, targetSeconds, 2, op)
}

func (w *walker) applyWaitUntil(op Op) {
	t, err := parseTimeOfDay(w.currentTime, op.TimeOfDay)
	if err != nil {
		w.warnOnce("waitUntil:"+op.TimeOfDay, err.Error())
		return
	}
	if !t.After(w.currentTime) {
		if op.Tomorrow {
			t = t.Add(24 * time.Hour)
		} else if op.RewindOnReset {
			// keep today's time even though it is in the past relative to currentTime
		} else {
			t = t.Add(24 * time.Hour)
		}
	}
	w.currentTime = t
}

func parseTimeOfDay(ref time.Time, hhmmss string) (time.Time, error) {
	parts := strings.Split(hhmmss, ":")
	if len(parts) < 2 {
		return time.Time{}, &MalformedDirective{Path: "time-of-day", Reason: "expected HH:MM[:SS], got \"" + hhmmss + "\""}
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec := 0
	var err3 error
	if len(parts) > 2 {
		sec, err3 = strconv.Atoi(parts[2])
	}
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, &MalformedDirective{Path: "time-of-day", Reason: "expected HH:MM[:SS], got \"" + hhmmss + "\""}
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), h, m, sec, 0, ref.Location()), nil
}

func (w *walker) applySkipItems(op Op) {
	view := w.collectionView(op.ContentKey)
	n := skipCount(op.SkipExpr, len(view), w.channelNumber, op.ContentKey, w.dayOfYear)
	w.views[op.ContentKey] = dropFront(view, n)
}

func dropFront(view []catalog.MediaItem, n int) []catalog.MediaItem {
	if n <= 0 {
		return view
	}
	if n >= len(view) {
		return nil
	}
	return view[n:]
}

func skipCount(expr string, viewLen int, channelNumber, contentKey string, dayOfYear int) int {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "":
		return 0
	case expr == "count":
		return viewLen
	case strings.HasPrefix(expr, "count/"):
		divisor, err := strconv.Atoi(strings.TrimPrefix(expr, "count/"))
		if err != nil || divisor <= 0 {
			return 0
		}
		return viewLen / divisor
	case expr == "random":
		if viewLen == 0 {
			return 0
		}
		seed := seedFor(channelNumber, dayOfYear, "skip:"+contentKey)
		r := shuffledIndices(viewLen, seed)
		return r[0]
	default:
		if n, err := strconv.Atoi(expr); err == nil {
			return n
		}
		return 0
	}
}

func (w *walker) applyShuffleSequence(op Op) {
	ops, ok := w.ps.Sequences[op.SequenceKey]
	if !ok {
		return
	}
	seed := seedFor(w.channelNumber, w.dayOfYear, "shuffle:"+op.SequenceKey)
	idx := shuffledIndices(len(ops), seed)
	shuffled := make([]Op, len(ops))
	for i, j := range idx {
		shuffled[i] = ops[j]
	}
	w.ps.Sequences[op.SequenceKey] = shuffled
}
