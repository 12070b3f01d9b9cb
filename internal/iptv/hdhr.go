package iptv

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// discoverResponse is §4.7's exact discover.json shape, adapted from
// internal/tuner/hdhr.go's serveDiscover (there a map[string]interface{};
// here a struct, since this repo's field set is fixed rather than
// env-var-sparse).
type discoverResponse struct {
	FriendlyName    string
	ModelNumber     string
	FirmwareName    string
	FirmwareVersion string
	DeviceID        string
	DeviceAuth      string
	BaseURL         string
	LineupURL       string
	TunerCount      int
	EPGURL          string
}

func (s *Server) serveDiscover(w http.ResponseWriter, r *http.Request) {
	base := s.baseURL()
	out := discoverResponse{
		FriendlyName:    s.Config.HDHRFriendlyName,
		ModelNumber:     "HDHR3-US",
		FirmwareName:    "streamtv-" + Version,
		FirmwareVersion: Version,
		DeviceID:        s.Config.HDHRDeviceID,
		DeviceAuth:      "streamtv",
		BaseURL:         base,
		LineupURL:       base + "/hdhomerun/lineup.json",
		TunerCount:      s.Config.TunerCount,
		EPGURL:          base + "/iptv/xmltv.xml",
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// lineupEntry is one /hdhomerun/lineup.json element.
type lineupEntry struct {
	GuideNumber string
	GuideName   string
	URL         string
	HD          int
}

func (s *Server) serveLineup(w http.ResponseWriter, r *http.Request) {
	base := s.baseURL()
	channels := s.Manager.Channels()
	out := make([]lineupEntry, 0, len(channels))
	for _, ch := range channels {
		if !ch.Enabled {
			continue
		}
		out = append(out, lineupEntry{
			GuideNumber: ch.Number,
			GuideName:   deprefixGuideName(ch.Number, ch.Name),
			URL:         base + "/iptv/channel/" + ch.Number + ".ts",
			HD:          1,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) serveLineupStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ScanInProgress": 0,
		"ScanPossible":   1,
		"Source":         "Antenna",
		"SourceList":     []string{"Antenna", "Cable"},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// serveDeviceXML and serveServiceXML are static UPnP stubs, adapted from
// internal/tuner/server.go's serveDeviceXML.
func (s *Server) serveDeviceXML(w http.ResponseWriter, r *http.Request) {
	deviceID := s.Config.HDHRDeviceID
	if deviceID == "" {
		deviceID = "streamtv01"
	}
	friendly := s.Config.HDHRFriendlyName
	if friendly == "" {
		friendly = "StreamTV HeadEnd"
	}
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>%s</friendlyName>
    <manufacturer>StreamTV</manufacturer>
    <modelName>HDHR3-US</modelName>
    <UDN>uuid:%s</UDN>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:ConnectionManager:1</serviceType>
        <serviceId>urn:schemas-upnp-org:serviceId:ConnectionManager</serviceId>
        <SCPDURL>/service.xml</SCPDURL>
      </service>
    </serviceList>
  </device>
</root>`, xmlEscape(friendly), xmlEscape(deviceID))
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(body))
}

func (s *Server) serveServiceXML(w http.ResponseWriter, r *http.Request) {
	const body = `<?xml version="1.0" encoding="UTF-8"?>
<scpd xmlns="urn:schemas-upnp-org:service-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <actionList/>
  <serviceStateTable/>
</scpd>`
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(body))
}

func (s *Server) serveDebugChannel(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	ch, ok := s.Manager.Channel(number)
	if !ok {
		http.NotFound(w, r)
		return
	}
	out := map[string]any{
		"number":              ch.Number,
		"name":                ch.Name,
		"enabled":             ch.Enabled,
		"playout_mode":        ch.PlayoutMode.String(),
		"broadcaster_state":   s.Manager.BroadcasterState(number).String(),
		"total_items_watched": s.Manager.TotalWatched(number),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
