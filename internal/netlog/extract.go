package netlog

import (
	"github.com/tidwall/gjson"

	"github.com/PentesterFlow/LoadScope/internal/classify"
	"github.com/PentesterFlow/LoadScope/internal/errors"
)

// Paths into the decoded performance log message.
const (
	methodPath  = "message.method"
	paramsPath  = "message.params"
	requestPath = "message.params.request"
	urlPath     = "message.params.request.url"
	headersPath = "message.params.request.headers"
	refererPath = "message.params.request.headers.Referer"
)

// Extract returns the classified request URLs found in entries, in input order.
// Entries that cannot be decoded, are not request-initiation events, or carry
// a non-http URL are skipped. Duplicates are kept.
func Extract(entries []RawLogEntry) []DiscoveredURL {
	urls, _ := ExtractWithSummary(entries)
	return urls
}

// ExtractWithSummary is Extract plus per-outcome counts.
func ExtractWithSummary(entries []RawLogEntry) ([]DiscoveredURL, Summary) {
	summary := Summary{ByType: make(map[classify.URLType]int)}
	urls := make([]DiscoveredURL, 0)

	for _, entry := range entries {
		d, outcome, _ := ParseEntry(entry)
		summary.add(outcome, d)
		if outcome == Accepted {
			urls = append(urls, d)
		}
	}

	return urls, summary
}

// ParseEntry decodes a single log entry. The returned DiscoveredURL is only
// populated when the outcome is Accepted; err is set for Malformed entries.
// ParseEntry never panics.
func ParseEntry(entry RawLogEntry) (d DiscoveredURL, outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			d = DiscoveredURL{}
			outcome = Malformed
			err = errors.NewParseError("decoding entry panicked", errors.NewPanicError("", r))
		}
	}()

	msg := entry.Message
	if !gjson.Valid(msg) {
		return DiscoveredURL{}, Malformed, errors.NewParseError("message is not valid JSON", nil)
	}

	method := gjson.Get(msg, methodPath)
	if method.Type != gjson.String {
		return DiscoveredURL{}, Malformed, errors.NewParseError("message has no method", nil)
	}
	if method.Str != RequestWillBeSent {
		return DiscoveredURL{}, OtherEvent, nil
	}

	if !gjson.Get(msg, paramsPath).IsObject() {
		return DiscoveredURL{}, Malformed, errors.NewParseError("request event has no params", nil)
	}

	// Fields may be absent, but present ones must have the expected shape.
	if request := gjson.Get(msg, requestPath); request.Exists() && !request.IsObject() {
		return DiscoveredURL{}, Malformed, errors.NewParseError("request is not an object", nil)
	}
	rawURL := gjson.Get(msg, urlPath)
	if rawURL.Exists() && rawURL.Type != gjson.String {
		return DiscoveredURL{}, Malformed, errors.NewParseError("request url is not a string", nil)
	}
	if headers := gjson.Get(msg, headersPath); headers.Exists() && !headers.IsObject() {
		return DiscoveredURL{}, Malformed, errors.NewParseError("request headers is not an object", nil)
	}
	referer := gjson.Get(msg, refererPath)
	if referer.Exists() && referer.Type != gjson.String {
		return DiscoveredURL{}, Malformed, errors.NewParseError("referer is not a string", nil)
	}

	urlType, normalized, ok := classify.Classify(rawURL.String())
	if !ok {
		return DiscoveredURL{}, NonHTTP, nil
	}

	return DiscoveredURL{
		URL:     normalized,
		Referer: referer.String(),
		Type:    urlType,
	}, Accepted, nil
}
