package iptv

import "strings"

// deprefixGuideName implements §4.7's GuideName rule: the display name
// stored for a channel often repeats the channel number as a prefix (an
// import-time convention); lineup.json must strip it, plus any of the
// separators "-", ".", "_", whitespace, or the possessive "'s ".
func deprefixGuideName(number, name string) string {
	trimmed := strings.TrimSpace(name)
	if number == "" || !strings.HasPrefix(trimmed, number) {
		return trimmed
	}
	rest := trimmed[len(number):]
	if strings.HasPrefix(rest, "'s ") {
		return strings.TrimSpace(rest[len("'s "):])
	}
	rest = strings.TrimLeft(rest, "-._ \t")
	return strings.TrimSpace(rest)
}
