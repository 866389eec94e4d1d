// broadcastgroup.go
package qfragile

import (
	"sync"
	"time"
)

// DefaultSubscriberBuffer is the channel size given to each subscriber.
const DefaultSubscriberBuffer = 64

// EventFilter decides whether a subscriber receives a step result.
type EventFilter func(*StepResult) bool

/*
OnEvents accepts step results whose primary event is one of types. Terminal
results, which carry no event, are accepted only when no types are given.
*/
func OnEvents(types ...EventType) EventFilter {
	return func(res *StepResult) bool {
		if len(types) == 0 {
			return true
		}
		if res.Event == nil {
			return false
		}
		for _, t := range types {
			if res.Event.Type == t {
				return true
			}
		}
		return false
	}
}

/*
BroadcastGroup fans step results out to subscribers. Sends never block the
engine: a subscriber that falls behind loses results, and the loss is counted.
*/
type BroadcastGroup struct {
	mu sync.RWMutex

	ID          string
	subscribers map[string]chan *StepResult
	filters     map[string][]EventFilter
	bufferSize  int
	metrics     *BroadcastMetrics
	closed      bool
}

// BroadcastMetrics tracks delivery for a broadcast group.
type BroadcastMetrics struct {
	MessagesSent      int64
	MessagesDropped   int64
	ActiveSubscribers int
	LastBroadcastTime time.Time
}

// NewBroadcastGroup returns an empty group whose subscribers get bufferSize slots.
func NewBroadcastGroup(id string, bufferSize int) *BroadcastGroup {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &BroadcastGroup{
		ID:          id,
		subscribers: make(map[string]chan *StepResult),
		filters:     make(map[string][]EventFilter),
		bufferSize:  bufferSize,
		metrics:     &BroadcastMetrics{},
	}
}

/*
Subscribe registers subscriberID and returns its channel. A result is delivered
when it passes any of the filters, or always when none are given. Subscribing an
existing ID replaces the old subscription and closes its channel.
*/
func (bg *BroadcastGroup) Subscribe(subscriberID string, filters ...EventFilter) <-chan *StepResult {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	ch := make(chan *StepResult, bg.bufferSize)
	if bg.closed {
		close(ch)
		return ch
	}

	if old, exists := bg.subscribers[subscriberID]; exists {
		close(old)
		bg.metrics.ActiveSubscribers--
	}

	bg.subscribers[subscriberID] = ch
	delete(bg.filters, subscriberID)
	if len(filters) > 0 {
		bg.filters[subscriberID] = filters
	}

	bg.metrics.ActiveSubscribers++
	return ch
}

// Unsubscribe closes and removes a subscriber.
func (bg *BroadcastGroup) Unsubscribe(subscriberID string) {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	if ch, exists := bg.subscribers[subscriberID]; exists {
		close(ch)
		delete(bg.subscribers, subscriberID)
		delete(bg.filters, subscriberID)
		bg.metrics.ActiveSubscribers--
	}
}

// Send delivers res to every matching subscriber without blocking.
func (bg *BroadcastGroup) Send(res *StepResult) {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	if bg.closed || res == nil {
		return
	}

	for subID, ch := range bg.subscribers {
		if !bg.accepts(subID, res) {
			continue
		}

		select {
		case ch <- res:
			bg.metrics.MessagesSent++
		default:
			bg.metrics.MessagesDropped++
		}
	}

	bg.metrics.LastBroadcastTime = time.Now()
}

func (bg *BroadcastGroup) accepts(subscriberID string, res *StepResult) bool {
	filters, ok := bg.filters[subscriberID]
	if !ok {
		return true
	}
	for _, filter := range filters {
		if filter(res) {
			return true
		}
	}
	return false
}

// GetMetrics returns a copy of the delivery counters.
func (bg *BroadcastGroup) GetMetrics() BroadcastMetrics {
	bg.mu.RLock()
	defer bg.mu.RUnlock()
	return *bg.metrics
}

// Close closes every subscriber channel. Later sends are ignored.
func (bg *BroadcastGroup) Close() {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	if bg.closed {
		return
	}
	for _, ch := range bg.subscribers {
		close(ch)
	}
	bg.subscribers = make(map[string]chan *StepResult)
	bg.filters = make(map[string][]EventFilter)
	bg.metrics.ActiveSubscribers = 0
	bg.closed = true
}
