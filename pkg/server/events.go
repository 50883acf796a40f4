package server

import (
	"sync"

	"github.com/jowharshamshiri/janus/pkg/wire"
)

// EventTopic names one of the server's publish topics.
type EventTopic string

const (
	EventListening      EventTopic = "listening"
	EventRequest        EventTopic = "request"
	EventResponse       EventTopic = "response"
	EventClientActivity EventTopic = "clientActivity"
	EventError          EventTopic = "error"
)

// RequestEvent accompanies EventRequest.
type RequestEvent struct {
	Request    *wire.Request
	ClientAddr string
}

// ResponseEvent accompanies EventResponse.
type ResponseEvent struct {
	Response   *wire.Response
	ClientAddr string
}

// ClientActivityEvent accompanies EventClientActivity.
type ClientActivityEvent struct {
	Address string
	When    int64 // unix nanos
}

// Subscriber receives an event payload whose concrete type depends on
// the topic (see the Event* structs above, or nil for EventListening).
type Subscriber func(payload interface{})

// eventBus is a synchronous, best-effort publish/subscribe surface.
// Subscriber panics are recovered so a misbehaving subscriber never
// disrupts request processing.
type eventBus struct {
	mu   sync.RWMutex
	subs map[EventTopic][]Subscriber
}

func newEventBus() *eventBus {
	return &eventBus{subs: map[EventTopic][]Subscriber{}}
}

// On registers a subscriber for a topic.
func (b *eventBus) On(topic EventTopic, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], fn)
}

// Emit delivers payload to every subscriber of topic, synchronously,
// isolating each subscriber's panics from the caller and from each other.
func (b *eventBus) Emit(topic EventTopic, payload interface{}) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[topic]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		func() {
			defer func() { _ = recover() }()
			sub(payload)
		}()
	}
}
