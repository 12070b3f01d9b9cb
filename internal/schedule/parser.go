package schedule

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/headend/streamtv/internal/catalog"
)

// safeTags is the yaml.v3 default tag set. Any other tag (a custom
// "!!python/object" style tag, or any "!foo" application tag) is rejected
// before decoding touches it.
var safeTags = map[string]bool{
	"!!map": true, "!!seq": true, "!!str": true, "!!int": true,
	"!!float": true, "!!bool": true, "!!null": true, "!!timestamp": true,
	"!!binary": true, "!!merge": true, "": true,
}

// LoadFile discovers schedules/{number}.yml|.yaml under root and parses it.
// A missing file is a recoverable condition: callers fall back to a
// DB-defined playlist, so LoadFile returns (nil, nil) rather than an error
// when no schedule file exists for number.
func LoadFile(root, number string) (*ParsedSchedule, error) {
	for _, ext := range []string{".yml", ".yaml"} {
		path := filepath.Join(root, number+ext)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() > MaxScheduleFileBytes {
			return nil, &ErrFileTooLarge{Size: int(info.Size())}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return Parse(data)
	}
	return nil, nil
}

// Parse decodes a YAML schedule document into a ParsedSchedule. Pure,
// side-effect free beyond logging malformed directives (which do not abort
// parsing).
func Parse(data []byte) (*ParsedSchedule, error) {
	if len(data) > MaxScheduleFileBytes {
		return nil, &ErrFileTooLarge{Size: len(data)}
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ErrInvalidYAML{Err: err}
	}
	if len(root.Content) == 0 {
		return &ParsedSchedule{ContentMap: map[string]ContentEntry{}, Sequences: map[string][]Op{}}, nil
	}
	doc := root.Content[0]
	if err := checkSafeTags(doc); err != nil {
		return nil, err
	}

	ps := &ParsedSchedule{
		ContentMap: map[string]ContentEntry{},
		Sequences:  map[string][]Op{},
	}

	var sequenceKeysInOrder []string

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		val := doc.Content[i+1]
		switch key {
		case "name":
			ps.Name = val.Value
		case "description":
			ps.Description = val.Value
		case "content":
			entries, err := parseContentMap(val)
			if err != nil {
				log.Printf("schedule: %v", err)
				continue
			}
			for _, e := range entries {
				ps.ContentMap[e.Key] = e
			}
		case "sequences":
			for j := 0; j+1 < len(val.Content); j += 2 {
				seqKey := val.Content[j].Value
				seqVal := val.Content[j+1]
				ops, err := parseOps(seqKey, seqVal)
				if err != nil {
					log.Printf("schedule: %v", err)
				}
				ps.Sequences[seqKey] = ops
				sequenceKeysInOrder = append(sequenceKeysInOrder, seqKey)
			}
		case "playout":
			for _, item := range val.Content {
				var m map[string]any
				if err := item.Decode(&m); err != nil {
					continue
				}
				if v, ok := m["repeat"].(bool); ok && v {
					ps.Repeat = true
				}
			}
		}
	}

	ps.MainSequenceKey = pickMainSequenceKey(sequenceKeysInOrder)
	return ps, nil
}

// pickMainSequenceKey follows the convention of a sequence literally named
// "main"; absent that, the first sequence declared in the document (YAML
// preserves declaration order, unlike a Go map) is treated as the entry
// point, matching how the original single-sequence schedules were written.
func pickMainSequenceKey(keysInOrder []string) string {
	for _, k := range keysInOrder {
		if k == "main" {
			return k
		}
	}
	if len(keysInOrder) > 0 {
		return keysInOrder[0]
	}
	return ""
}

func checkSafeTags(n *yaml.Node) error {
	if n.Tag != "" && !safeTags[n.Tag] {
		return &ErrUnsafeTag{Tag: n.Tag}
	}
	for _, c := range n.Content {
		if err := checkSafeTags(c); err != nil {
			return err
		}
	}
	return nil
}

func parseContentMap(n *yaml.Node) ([]ContentEntry, error) {
	var raw []struct {
		Key        string `yaml:"key"`
		Collection string `yaml:"collection"`
		Order      string `yaml:"order"`
	}
	if err := n.Decode(&raw); err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	out := make([]ContentEntry, 0, len(raw))
	for _, r := range raw {
		out = append(out, ContentEntry{
			Key:        r.Key,
			Collection: r.Collection,
			Order:      catalog.NormalizeOrder(r.Order),
		})
	}
	return out, nil
}

func parseOps(sequenceKey string, n *yaml.Node) ([]Op, error) {
	var ops []Op
	for idx, item := range n.Content {
		var m map[string]any
		if err := item.Decode(&m); err != nil {
			log.Printf("schedule: sequences.%s[%d]: %v", sequenceKey, idx, err)
			continue
		}
		op, err := parseOp(m)
		if err != nil {
			log.Printf("schedule: sequences.%s[%d]: %v", sequenceKey, idx, err)
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func parseOp(m map[string]any) (Op, error) {
	op := Op{}
	if v, ok := m["custom_title"].(string); ok {
		op.CustomTitle = v
	}
	if v, ok := m["filler_kind"].(string); ok {
		op.FillerKind = v
	}

	switch {
	case has(m, "pre_roll"):
		op.Kind = OpPreRoll
		op.RollOn, _ = m["pre_roll"].(bool)
		op.SequenceKey, _ = m["sequence"].(string)
		return op, nil
	case has(m, "mid_roll"):
		op.Kind = OpMidRoll
		op.RollOn, _ = m["mid_roll"].(bool)
		op.SequenceKey, _ = m["sequence"].(string)
		return op, nil
	case has(m, "post_roll"):
		op.Kind = OpPostRoll
		op.RollOn, _ = m["post_roll"].(bool)
		op.SequenceKey, _ = m["sequence"].(string)
		return op, nil
	case has(m, "waitUntil"):
		op.Kind = OpWaitUntil
		op.TimeOfDay, _ = m["waitUntil"].(string)
		op.Tomorrow, _ = m["tomorrow"].(bool)
		op.RewindOnReset, _ = m["rewindOnReset"].(bool)
		return op, nil
	case has(m, "padUntil"):
		op.Kind = OpPadUntil
		op.TimeOfDay, _ = m["padUntil"].(string)
		op.ContentKey, _ = m["content"].(string)
		op.FallbackKey, _ = m["fallback"].(string)
		return op, nil
	case has(m, "padToNext"):
		op.Kind = OpPadToNext
		op.PadMinutes = toInt(m["padToNext"], 60)
		op.ContentKey, _ = m["content"].(string)
		op.FallbackKey, _ = m["fallback"].(string)
		return op, nil
	case has(m, "skipItems"):
		op.Kind = OpSkipItems
		op.ContentKey, _ = m["skipItems"].(string)
		if op.ContentKey == "" {
			op.ContentKey, _ = m["content"].(string)
		}
		op.SkipExpr = toExprString(m["expr"])
		return op, nil
	case has(m, "shuffleSequence"):
		op.Kind = OpShuffleSequence
		op.SequenceKey, _ = m["shuffleSequence"].(string)
		return op, nil
	case has(m, "sequence"):
		op.Kind = OpSequence
		op.SequenceKey, _ = m["sequence"].(string)
		return op, nil
	case has(m, "all"):
		op.Kind = OpAll
		op.ContentKey, _ = m["all"].(string)
		return op, nil
	case has(m, "duration") && has(m, "content"):
		op.Kind = OpDurationFill
		op.ContentKey, _ = m["content"].(string)
		if durStr, ok := m["duration"].(string); ok {
			d, err := ParseDuration(durStr)
			if err != nil {
				return op, &MalformedDirective{Path: "duration_fill.duration", Reason: err.Error()}
			}
			op.Duration = d
		}
		op.DiscardAttempts = toInt(m["discard_attempts"], 0)
		return op, nil
	case has(m, "content"):
		op.Kind = OpReference
		op.ContentKey, _ = m["content"].(string)
		return op, nil
	}
	return op, &MalformedDirective{Path: "op", Reason: fmt.Sprintf("unrecognized op keys: %v", keysOf(m))}
}

func has(m map[string]any, k string) bool {
	_, ok := m[k]
	return ok
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func toInt(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return def
}

func toExprString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case int:
		return strconv.Itoa(n)
	case float64:
		return strconv.Itoa(int(n))
	default:
		return ""
	}
}
