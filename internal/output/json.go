package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/PentesterFlow/LoadScope/internal/netlog"
)

// JSONWriter writes output in JSON format.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	stream bool
	closed bool
}

// NewJSONWriter creates a new JSON writer. A streaming writer emits one
// compact JSON event per line and ignores pretty.
func NewJSONWriter(w io.Writer, pretty, stream bool) *JSONWriter {
	return &JSONWriter{
		writer: w,
		pretty: pretty && !stream,
		stream: stream,
	}
}

// WriteReport writes the complete report. In streaming mode it writes a
// "url" event per URL followed by a "summary" event.
func (j *JSONWriter) WriteReport(report *Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	if !j.stream {
		return j.writeValue(report)
	}

	for _, u := range report.URLs {
		if err := j.writeValue(StreamEvent{Type: "url", Data: u}); err != nil {
			return err
		}
	}
	return j.writeValue(StreamEvent{
		Type: "summary",
		Data: streamSummary{
			Target:    report.Target,
			FinalURL:  report.FinalURL,
			StartedAt: report.StartedAt,
			Duration:  report.Duration,
			Summary:   report.Summary,
			URLCount:  len(report.URLs),
			Errors:    report.Errors,
		},
	})
}

// writeValue writes one JSON document followed by a newline.
func (j *JSONWriter) writeValue(v interface{}) error {
	var data []byte
	var err error

	if j.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return err
	}

	_, err = j.writer.Write(data)
	if err != nil {
		return err
	}

	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// StreamEvent represents a streaming output event.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// streamSummary is the report without its URLs, sent last in a stream.
type streamSummary struct {
	Target    string         `json:"target"`
	FinalURL  string         `json:"final_url"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Summary   netlog.Summary `json:"summary"`
	URLCount  int            `json:"url_count"`
	Errors    []ReportError  `json:"errors,omitempty"`
}
