package output

import (
	"time"

	"github.com/PentesterFlow/LoadScope/internal/classify"
	"github.com/PentesterFlow/LoadScope/internal/netlog"
)

// Report is the serialized result of one discovery run.
type Report struct {
	Target    string                 `json:"target"`
	FinalURL  string                 `json:"final_url"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
	Summary   netlog.Summary         `json:"summary"`
	URLs      []netlog.DiscoveredURL `json:"urls"`
	Errors    []ReportError          `json:"errors,omitempty"`
}

// ReportError is a failed stage as it appears in a report.
type ReportError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// FilterTypes returns the URLs whose type is in types, keeping order.
// An empty types list keeps everything.
func FilterTypes(urls []netlog.DiscoveredURL, types []classify.URLType) []netlog.DiscoveredURL {
	if len(types) == 0 {
		return urls
	}

	keep := make(map[classify.URLType]bool, len(types))
	for _, t := range types {
		keep[t] = true
	}

	result := make([]netlog.DiscoveredURL, 0, len(urls))
	for _, u := range urls {
		if keep[u.Type] {
			result = append(result, u)
		}
	}
	return result
}

// CountByType counts URLs per type.
func CountByType(urls []netlog.DiscoveredURL) map[classify.URLType]int {
	counts := make(map[classify.URLType]int)
	for _, u := range urls {
		counts[u.Type]++
	}
	return counts
}
