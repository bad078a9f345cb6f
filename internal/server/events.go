package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/qrprint/internal/metrics"
)

// Event types pushed to the front-end while a job runs.
const (
	EventStart    = "start"
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

type Event struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	JobID   string `json:"jobId,omitempty"`
}

const clientBuffer = 32

// Broker fans job events out to every connected Server-Sent Events client.
// A client that falls behind loses events instead of blocking the job.
type Broker struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func NewBroker() *Broker {
	return &Broker{clients: make(map[chan Event]struct{}), done: make(chan struct{})}
}

// Close ends every open stream. http.Server.Shutdown does not cancel running
// handlers, so it is registered as a shutdown hook.
func (b *Broker) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Broker) subscribe() chan Event {
	ch := make(chan Event, clientBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	n := len(b.clients)
	b.mu.Unlock()
	metrics.SetEventClients(n)
	return ch
}

func (b *Broker) unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.clients, ch)
	n := len(b.clients)
	b.mu.Unlock()
	metrics.SetEventClients(n)
}

// Clients returns the number of connected listeners.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("type", ev.Type).Msg("event dropped for slow client")
		}
	}
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := b.subscribe()
	defer b.unsubscribe(ch)

	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-b.done:
			return
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
