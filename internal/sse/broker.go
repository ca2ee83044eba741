// Package sse streams pipeline and config-reload events to status clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Event types published by the application.
const (
	TypeRunStarted         = "run.started"
	TypeRunFinished        = "run.finished"
	TypeConfigReloaded     = "config.reloaded"
	TypeConfigReloadFailed = "config.reload_failed"
)

// clientBuffer is the number of frames a stream may fall behind before frames are dropped.
const clientBuffer = 16

// Event is one frame on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (e Event) frame() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

// Broker fans events out to connected streams. A run emits a handful of events,
// so a single lock over the stream set is enough.
type Broker struct {
	mu      sync.Mutex
	streams map[chan []byte]struct{}
	closed  bool
}

// NewBroker returns an open broker.
func NewBroker() *Broker {
	return &Broker{streams: make(map[chan []byte]struct{})}
}

// Subscribe registers a stream. After Close it returns an already closed channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.streams[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[ch]; ok {
		delete(b.streams, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected streams.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams)
}

// Publish sends an event to every stream. A stream whose buffer is full misses the event.
func (b *Broker) Publish(event Event) {
	raw, err := event.frame()
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.streams {
		select {
		case ch <- raw:
		default:
		}
	}
}

// Emit publishes data under kind. It has the shape of the pipeline's event hook.
func (b *Broker) Emit(kind string, data any) {
	b.Publish(Event{Type: kind, Data: data})
}

// ReloadCallback reports config reload attempts as events.
func (b *Broker) ReloadCallback(path string, err error) {
	if err != nil {
		b.Emit(TypeConfigReloadFailed, map[string]string{"path": path, "error": err.Error()})
		return
	}
	b.Emit(TypeConfigReloaded, map[string]string{"path": path})
}

// Close ends every open stream. Later calls are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.streams {
		delete(b.streams, ch)
		close(ch)
	}
}

// ServeHTTP streams events until the client goes away or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
