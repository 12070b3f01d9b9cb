package epg

import "encoding/xml"

// xmlTVRoot/xmlChannel/xmlProgramme mirror internal/tuner/xmltv.go's
// struct-tag approach to building an XMLTV document with encoding/xml
// rather than string concatenation.
type xmlTVRoot struct {
	XMLName    xml.Name       `xml:"tv"`
	Source     string         `xml:"source-info-name,attr,omitempty"`
	Channels   []xmlChannel   `xml:"channel"`
	Programmes []xmlProgramme `xml:"programme"`
}

type xmlChannel struct {
	ID      string     `xml:"id,attr"`
	Display string     `xml:"display-name"`
	Icon    *xmlIcon   `xml:"icon,omitempty"`
}

type xmlIcon struct {
	Src string `xml:"src,attr"`
}

type xmlProgramme struct {
	Start    string        `xml:"start,attr"`
	Stop     string        `xml:"stop,attr"`
	Channel  string        `xml:"channel,attr"`
	Title    xmlText       `xml:"title"`
	SubTitle *xmlText      `xml:"sub-title,omitempty"`
	Desc     xmlText       `xml:"desc"`
	Icon     *xmlIcon      `xml:"icon,omitempty"`
	Category []xmlText     `xml:"category"`
}

type xmlText struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}
