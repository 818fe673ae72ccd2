package kml

import (
	"errors"
	"strconv"
	"time"
)

// NetworkLink points a globe viewer at a feed URL and tells it how often to reload.
type NetworkLink struct {
	Name            string
	Href            string
	RefreshInterval time.Duration
}

type kmlNetworkLink struct {
	Name string  `xml:"name"`
	Link kmlLink `xml:"Link"`
}

type kmlLink struct {
	Href            string `xml:"href"`
	RefreshMode     string `xml:"refreshMode,omitempty"`
	RefreshInterval string `xml:"refreshInterval,omitempty"`
}

// SerializeNetworkLink renders a KML document holding a single NetworkLink.
// A zero refresh interval produces a link that loads once.
func SerializeNetworkLink(nl NetworkLink, pretty bool) ([]byte, error) {
	if nl.Href == "" {
		return nil, &SerializationError{Err: errors.New("network link without href")}
	}

	link := kmlLink{Href: nl.Href}
	if secs := int64(nl.RefreshInterval / time.Second); secs > 0 {
		link.RefreshMode = "onInterval"
		link.RefreshInterval = strconv.FormatInt(secs, 10)
	}

	return marshal(kmlRoot{NetworkLink: &kmlNetworkLink{Name: nl.Name, Link: link}}, pretty)
}
