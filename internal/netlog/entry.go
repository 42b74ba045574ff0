package netlog

import (
	"encoding/json"
	"fmt"
	"time"
)

type envelope struct {
	Message event  `json:"message"`
	Webview string `json:"webview"`
}

type event struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// NewEntry encodes a DevTools event as a performance log entry, the same
// shape ChromeDriver returns for the "performance" log type.
func NewEntry(method string, params interface{}, webview string, ts time.Time) (RawLogEntry, error) {
	data, err := json.Marshal(envelope{
		Message: event{Method: method, Params: params},
		Webview: webview,
	})
	if err != nil {
		return RawLogEntry{}, fmt.Errorf("failed to encode %s event: %w", method, err)
	}

	return RawLogEntry{
		Level:     "INFO",
		Message:   string(data),
		Timestamp: ts.UnixMilli(),
	}, nil
}
