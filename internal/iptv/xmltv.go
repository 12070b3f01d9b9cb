package iptv

import "net/http"

// serveXMLTV delegates guide generation to C8 (internal/epg); this
// endpoint is just the HTTP binding.
func (s *Server) serveXMLTV(w http.ResponseWriter, r *http.Request) {
	data, err := s.EPG.GenerateXMLTV(s.baseURL())
	if err != nil {
		http.Error(w, "xmltv: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(data)
}
