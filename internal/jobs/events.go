package jobs

import "sync"

const eventChannelBuffer = 100

// Event types surfaced to the UI.
const (
	EventJob                = "job"
	EventClustersChanged    = "clusters_changed"
	EventSuggestionsChanged = "suggestions_changed"
)

// Event is a notification pushed to the presentation layer so it can
// refresh without polling the full dataset.
type Event struct {
	Type     string  `json:"type"`
	JobID    string  `json:"job_id,omitempty"`
	Project  string  `json:"project,omitempty"`
	Status   string  `json:"status,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// Broadcaster fans events out to SSE listeners. Slow listeners are
// skipped, never blocked on.
type Broadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// NewBroadcaster creates an event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// AddListener adds an event listener.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Send sends an event to all listeners.
func (b *Broadcaster) Send(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}
