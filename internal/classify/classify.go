// Package classify sorts captured request URLs into coarse resource types.
package classify

import "strings"

// URLType is the resource class assigned to a captured URL.
type URLType string

// URL types, in classification priority order.
const (
	Script   URLType = "script"
	Resource URLType = "resource"
	HTML     URLType = "html"
	Other    URLType = "other"
)

// String returns the string representation of URLType.
func (t URLType) String() string {
	return string(t)
}

// Valid reports whether t is one of the known URL types.
func (t URLType) Valid() bool {
	switch t {
	case Script, Resource, HTML, Other:
		return true
	default:
		return false
	}
}

// ParseType converts a name into a URLType.
func ParseType(s string) (URLType, bool) {
	t := URLType(strings.TrimSpace(s))
	return t, t.Valid()
}

// Types returns every URL type in the order rules are checked.
func Types() []URLType {
	return []URLType{Script, Resource, HTML, Other}
}

type rule struct {
	urlType  URLType
	suffixes []string
}

// Suffix matching is case-sensitive; the first rule that matches wins.
var rules = []rule{
	{Script, []string{".js", ".js.map"}},
	{Resource, []string{".png", ".jpg", ".jpeg", ".gif", ".css", ".pdf", ".zip"}},
	{HTML, []string{".html", ".htm", ".php", ".jsp", ".aspx"}},
}

// Normalize strips trailing slashes from a URL.
func Normalize(raw string) string {
	return strings.TrimRight(raw, "/")
}

// Classify normalizes raw and assigns it a URLType.
// ok is false when the normalized URL does not start with "http"; such URLs
// must be dropped by the caller.
func Classify(raw string) (urlType URLType, normalized string, ok bool) {
	normalized = Normalize(raw)
	if !strings.HasPrefix(normalized, "http") {
		return "", normalized, false
	}

	for _, r := range rules {
		for _, suffix := range r.suffixes {
			if strings.HasSuffix(normalized, suffix) {
				return r.urlType, normalized, true
			}
		}
	}

	return Other, normalized, true
}
