package browser

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/PentesterFlow/LoadScope/internal/netlog"
)

// Recorder captures DevTools network events as performance log entries.
type Recorder struct {
	mu      sync.RWMutex
	entries []netlog.RawLogEntry
	dropped int
	webview string
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecorder creates a recorder for the page identified by webview.
func NewRecorder(webview string) *Recorder {
	return &Recorder{
		entries: make([]netlog.RawLogEntry, 0),
		webview: webview,
		now:     time.Now,
	}
}

// Start enables the Network domain on page and records its events until
// Stop is called or ctx ends.
func (r *Recorder) Start(ctx context.Context, page *rod.Page) error {
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	wait := page.Context(ctx).EachEvent(
		func(e *proto.NetworkRequestWillBeSent) { r.Record(e.ProtoEvent(), e) },
		func(e *proto.NetworkResponseReceived) { r.Record(e.ProtoEvent(), e) },
		func(e *proto.NetworkLoadingFinished) { r.Record(e.ProtoEvent(), e) },
		func(e *proto.NetworkLoadingFailed) { r.Record(e.ProtoEvent(), e) },
	)

	done := make(chan struct{})
	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		wait()
	}()
	return nil
}

// Stop ends event collection and waits for the event loop to exit.
func (r *Recorder) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Record appends one event. Events that cannot be encoded are counted and
// dropped.
func (r *Recorder) Record(method string, params interface{}) {
	entry, err := netlog.NewEntry(method, params, r.webview, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.dropped++
		return
	}
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of the recorded entries in arrival order.
func (r *Recorder) Entries() []netlog.RawLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]netlog.RawLogEntry, len(r.entries))
	copy(result, r.entries)
	return result
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Dropped returns how many events could not be encoded.
func (r *Recorder) Dropped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// Clear discards all recorded entries.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make([]netlog.RawLogEntry, 0)
	r.dropped = 0
}
