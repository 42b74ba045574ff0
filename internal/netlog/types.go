// Package netlog turns a browser performance log into classified request URLs.
package netlog

import (
	"github.com/PentesterFlow/LoadScope/internal/classify"
)

// RequestWillBeSent is the DevTools event emitted when the browser starts a request.
const RequestWillBeSent = "Network.requestWillBeSent"

// RawLogEntry is one record of a ChromeDriver style performance log.
// Message holds a JSON document of the form
// {"message":{"method":...,"params":{...}},"webview":...}.
type RawLogEntry struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// DiscoveredURL is a classified URL requested during a page load.
type DiscoveredURL struct {
	URL     string           `json:"url"`
	Referer string           `json:"referer"`
	Type    classify.URLType `json:"url_type"`
}

// Outcome describes what happened to a single log entry.
type Outcome int

const (
	// Accepted entries produced a DiscoveredURL.
	Accepted Outcome = iota
	// Malformed entries could not be decoded.
	Malformed
	// OtherEvent entries are valid but not request-initiation events.
	OtherEvent
	// NonHTTP entries are request events whose URL is not http(s).
	NonHTTP
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Malformed:
		return "malformed"
	case OtherEvent:
		return "other_event"
	case NonHTTP:
		return "non_http"
	default:
		return "unknown"
	}
}

// Summary counts entry outcomes for one extraction.
type Summary struct {
	Entries    int `json:"entries"`
	Requests   int `json:"requests"`
	Accepted   int `json:"accepted"`
	Malformed  int `json:"malformed"`
	OtherEvent int `json:"other_event"`
	NonHTTP    int `json:"non_http"`
	// ByType counts accepted URLs per type.
	ByType map[classify.URLType]int `json:"by_type"`
}

func (s *Summary) add(o Outcome, d DiscoveredURL) {
	s.Entries++
	switch o {
	case Accepted:
		s.Requests++
		s.Accepted++
		s.ByType[d.Type]++
	case NonHTTP:
		s.Requests++
		s.NonHTTP++
	case OtherEvent:
		s.OtherEvent++
	case Malformed:
		s.Malformed++
	}
}
