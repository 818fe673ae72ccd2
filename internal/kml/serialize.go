package kml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SerializationError means a document could not be rendered. With a Document
// produced by Build this indicates a bug, not bad input.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("kml serialization failed: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

type kmlRoot struct {
	XMLName     xml.Name        `xml:"http://www.opengis.net/kml/2.2 kml"`
	Document    *kmlDocument    `xml:"Document,omitempty"`
	NetworkLink *kmlNetworkLink `xml:"NetworkLink,omitempty"`
}

type kmlDocument struct {
	Name   string    `xml:"name"`
	Style  *kmlStyle `xml:"Style,omitempty"`
	Folder kmlFolder `xml:"Folder"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string    `xml:"name"`
	Description kmlText   `xml:"description"`
	Style       *kmlStyle `xml:"Style,omitempty"`
	StyleURL    string    `xml:"styleUrl,omitempty"`
	Point       kmlPoint  `xml:"Point"`
}

// kmlText holds escaped character data whose line breaks stay literal.
// encoding/xml would otherwise write each newline as &#xA;.
type kmlText struct {
	Inner string `xml:",innerxml"`
}

func multilineText(s string) kmlText {
	var buf bytes.Buffer
	for i, ln := range strings.Split(s, "\n") {
		if i > 0 {
			buf.WriteByte('\n')
		}
		// Writes to a bytes.Buffer do not fail.
		_ = xml.EscapeText(&buf, []byte(ln))
	}
	return kmlText{Inner: buf.String()}
}

type kmlStyle struct {
	ID        string       `xml:"id,attr,omitempty"`
	IconStyle kmlIconStyle `xml:"IconStyle"`
}

type kmlIconStyle struct {
	Heading *int    `xml:"heading,omitempty"`
	Scale   string  `xml:"scale,omitempty"`
	Icon    kmlIcon `xml:"Icon"`
}

type kmlIcon struct {
	Href string `xml:"href"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

// Serialize renders doc as a KML byte stream. pretty only changes the
// whitespace between elements.
func Serialize(doc *Document, pretty bool) ([]byte, error) {
	if doc == nil {
		return nil, &SerializationError{Err: errors.New("nil document")}
	}
	return marshal(kmlRoot{Document: toWire(doc)}, pretty)
}

func marshal(root kmlRoot, pretty bool) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if pretty {
		body, err = xml.MarshalIndent(root, "", "  ")
	} else {
		body, err = xml.Marshal(root)
	}
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	var buf bytes.Buffer
	buf.Grow(len(xml.Header) + len(body) + 1)
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func toWire(doc *Document) *kmlDocument {
	wd := &kmlDocument{
		Name:  doc.Title,
		Style: wireStyle(doc.SharedStyle),
		Folder: kmlFolder{
			Name:       doc.FolderTitle,
			Placemarks: make([]kmlPlacemark, 0, len(doc.Placemarks)),
		},
	}

	for _, pm := range doc.Placemarks {
		wp := kmlPlacemark{
			Name:        pm.Name,
			Description: multilineText(pm.Description),
			Point:       kmlPoint{Coordinates: pm.Point.Coordinates()},
		}
		if pm.Style != nil {
			wp.Style = wireStyle(pm.Style)
		} else {
			wp.StyleURL = pm.StyleURL
		}
		wd.Folder.Placemarks = append(wd.Folder.Placemarks, wp)
	}

	return wd
}

func wireStyle(s *Style) *kmlStyle {
	if s == nil {
		return nil
	}
	ws := &kmlStyle{
		ID: s.ID,
		IconStyle: kmlIconStyle{
			Heading: s.Heading,
			Icon:    kmlIcon{Href: s.IconHref},
		},
	}
	if s.Scale != 0 {
		ws.IconStyle.Scale = strconv.FormatFloat(s.Scale, 'f', -1, 64)
	}
	return ws
}
