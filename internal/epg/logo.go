package epg

import "strings"

// LogoURL implements §4.8's logo resolution rule, shared with the M3U
// writer in internal/iptv. Ported from the original's resolve_logo_url:
// some stored logo_path values use the DB primary key rather than the
// channel number and are therefore wrong, so a bare "use logo_path" is not
// trustworthy -- the embedded number must be validated against number.
func LogoURL(baseURL, logoPath, number string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	logoPath = strings.TrimSpace(logoPath)

	if logoPath != "" {
		if strings.HasPrefix(logoPath, "http://") || strings.HasPrefix(logoPath, "https://") {
			return logoPath
		}
		if embedded, ok := channelLogoNumber(logoPath); ok {
			if embedded == number {
				return joinPath(baseURL, logoPath)
			}
			return baseURL + "/static/channel_icons/channel_" + number + ".png"
		}
		if strings.Contains(logoPath, "/channel_icons/") || strings.Contains(logoPath, "/static/") {
			return joinPath(baseURL, logoPath)
		}
	}
	return baseURL + "/static/channel_icons/channel_" + number + ".png"
}

// channelLogoNumber reports whether logoPath's filename looks like
// "channel_<N>.png" and, if so, returns the embedded N.
func channelLogoNumber(logoPath string) (string, bool) {
	name := logoPath
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if dot := strings.LastIndex(name, "."); dot >= 0 {
		name = name[:dot]
	}
	const prefix = "channel_"
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	return name[len(prefix):], true
}

func joinPath(baseURL, p string) string {
	if strings.HasPrefix(p, "/") {
		return baseURL + p
	}
	return baseURL + "/" + p
}
