package iptv

import "strings"

// xmlEscape escapes the handful of characters that matter inside an XML
// attribute or text node, mirroring internal/tuner/xmltv.go's
// xmlEscapeStr.
func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
