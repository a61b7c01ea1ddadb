// Package sse implements a Server-Sent Events broker that announces newly
// committed journal entries.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/dia/internal/models"
	"github.com/starford/dia/internal/parser"
)

// Event types.
const (
	TypeEntryCreated    = "entry.created"
	TypeEntitiesUpdated = "entities.updated"
)

// Event is one SSE message.
type Event struct {
	Type string      `json:"type"`
	Data any    `json:"data"`
}

// EntryCreated is the payload of an entry.created event.
type EntryCreated struct {
	ID       int64    `json:"id"`
	Date     string   `json:"date"`
	People   []string `json:"people"`
	Projects []string `json:"projects"`
	Tags     []string `json:"tags"`
}

func newEntryCreated(e models.Entry) EntryCreated {
	refs := parser.Extract(e.Content)
	return EntryCreated{
		ID:       e.ID,
		Date:     e.Date,
		People:   names(refs.People),
		Projects: names(refs.Projects),
		Tags:     names(refs.Tags),
	}
}

// names returns the distinct names in scan order.
func names(refs []string) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(refs))
	for _, n := range refs {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + entities throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	entitiesMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	entryCh       chan EntryCreated
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. entities.updated events are sent at
// most once per entitiesThrottle.
func NewBroker(entitiesThrottle time.Duration) *Broker {
	if entitiesThrottle <= 0 {
		entitiesThrottle = 2 * time.Second
	}

	b := &Broker{
		entitiesMin:   entitiesThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		entryCh:       make(chan EntryCreated, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastEntities time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case created := <-b.entryCh:
			broadcast(Event{Type: TypeEntryCreated, Data: created})

			if len(created.People)+len(created.Projects)+len(created.Tags) == 0 {
				continue
			}
			now := time.Now()
			if now.Sub(lastEntities) >= b.entitiesMin {
				lastEntities = now
				broadcast(Event{Type: TypeEntitiesUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// PublishEntry announces a committed entry, followed by a throttled
// entities.updated event when the entry references any entity.
func (b *Broker) PublishEntry(e models.Entry) {
	if b.closed.Load() {
		return
	}
	select {
	case b.entryCh <- newEntryCreated(e):
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
