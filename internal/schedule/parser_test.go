package schedule

import "testing"

const sampleYAML = `
name: Afternoon Movies
description: test schedule
content:
  - key: movies
    collection: Movie Block
    order: chronological
  - key: breaks
    collection: Commercial Breaks
    order: chronological
sequences:
  main:
    - all: movies
playout:
  - repeat: true
`

func TestParse_basic(t *testing.T) {
	ps, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ps.Name != "Afternoon Movies" {
		t.Errorf("Name = %q", ps.Name)
	}
	if ps.MainSequenceKey != "main" {
		t.Errorf("MainSequenceKey = %q, want main", ps.MainSequenceKey)
	}
	if !ps.Repeat {
		t.Errorf("Repeat = false, want true")
	}
	entry, ok := ps.ContentMap["movies"]
	if !ok || entry.Collection != "Movie Block" {
		t.Fatalf("ContentMap[movies] = %+v, ok=%v", entry, ok)
	}
	ops := ps.Sequences["main"]
	if len(ops) != 1 || ops[0].Kind != OpAll || ops[0].ContentKey != "movies" {
		t.Fatalf("main sequence ops = %+v", ops)
	}
}

func TestParse_rejectsUnsafeTag(t *testing.T) {
	_, err := Parse([]byte("name: !!python/object:os.system 'rm -rf /'\n"))
	if err == nil {
		t.Fatal("expected unsafe tag to be rejected")
	}
	if _, ok := err.(*ErrUnsafeTag); !ok {
		t.Fatalf("expected ErrUnsafeTag, got %T: %v", err, err)
	}
}

func TestParse_fileTooLarge(t *testing.T) {
	big := make([]byte, MaxScheduleFileBytes+1)
	_, err := Parse(big)
	if _, ok := err.(*ErrFileTooLarge); !ok {
		t.Fatalf("expected ErrFileTooLarge, got %T: %v", err, err)
	}
}

func TestParse_invalidYAML(t *testing.T) {
	_, err := Parse([]byte("name: [unterminated"))
	if _, ok := err.(*ErrInvalidYAML); !ok {
		t.Fatalf("expected ErrInvalidYAML, got %T: %v", err, err)
	}
}

func TestParse_unknownOpIsMalformedNotFatal(t *testing.T) {
	ps, err := Parse([]byte(`
sequences:
  main:
    - totallyUnknownOp: true
    - all: movies
`))
	if err != nil {
		t.Fatalf("unknown op should not fail the whole parse: %v", err)
	}
	ops := ps.Sequences["main"]
	if len(ops) != 1 || ops[0].Kind != OpAll {
		t.Fatalf("expected the malformed op to be dropped, kept valid ones: %+v", ops)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want int // seconds
	}{
		{"01:30:00", 5400},
		{"02:00", 120},
		{"90s", 90},
		{"PT1H30M", 5400},
		{"PT90S", 90},
		{"45", 45},
	}
	for _, tt := range cases {
		d, err := ParseDuration(tt.in)
		if err != nil {
			t.Errorf("ParseDuration(%q) error: %v", tt.in, err)
			continue
		}
		if int(d.Seconds()) != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %ds", tt.in, d, tt.want)
		}
	}
}

func TestParseDuration_malformed(t *testing.T) {
	if _, err := ParseDuration("not-a-duration"); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
