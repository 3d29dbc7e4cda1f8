// report/report.go
package report

import (
	"sync"

	"firmboot-go/x/timex"
)

// Hub is the status surface of the boot layer: a small retained-state
// publish/subscribe hub with exact string topics. The registrar publishes
// boot phase transitions on "boot/state"; the task runner publishes per-task
// lifecycle and failures on "task/<name>/state". Queues are bounded and
// overflow drops the oldest event, so a slow observer never stalls boot.
type Hub struct {
	mu       sync.Mutex
	qLen     int
	subs     map[string][]*Subscription
	retained map[string]Event
}

// Event is one published status update.
type Event struct {
	Topic    string
	Payload  any
	TS       int64 // Unix ms
	Retained bool
}

// Subscription receives events for a single topic.
type Subscription struct {
	topic string
	ch    chan Event
	hub   *Hub
}

func (s *Subscription) Topic() string   { return s.topic }
func (s *Subscription) C() <-chan Event { return s.ch }
func (s *Subscription) Cancel()         { s.hub.cancel(s) }

// NewHub creates a hub with the given per-subscription queue length.
func NewHub(queueLen int) *Hub {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	return &Hub{
		qLen:     queueLen,
		subs:     make(map[string][]*Subscription),
		retained: make(map[string]Event),
	}
}

// Publish delivers a non-retained event to current subscribers.
func (h *Hub) Publish(topic string, payload any) {
	h.publish(Event{Topic: topic, Payload: payload, TS: timex.NowMs()})
}

// PublishRetained delivers an event and keeps it as the topic's current
// state for late subscribers. A nil payload clears the retained state.
func (h *Hub) PublishRetained(topic string, payload any) {
	h.publish(Event{Topic: topic, Payload: payload, TS: timex.NowMs(), Retained: true})
}

func (h *Hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[e.Topic] {
		select {
		case sub.ch <- e:
		default:
			// drop oldest if queue full; a consumer may drain the queue
			// first, so neither step may block under the hub lock
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- e:
			default:
			}
		}
	}

	if e.Retained {
		if e.Payload == nil {
			delete(h.retained, e.Topic)
		} else {
			h.retained[e.Topic] = e
		}
	}
}

// Subscribe registers interest in one topic. The topic's retained event, if
// any, is delivered immediately.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan Event, h.qLen), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[topic] = append(h.subs[topic], sub)
	if e, ok := h.retained[topic]; ok {
		sub.ch <- e
	}
	return sub
}

// Retained returns the current retained event for a topic.
func (h *Hub) Retained(topic string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.retained[topic]
	return e, ok
}

func (h *Hub) cancel(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[sub.topic]
	for i, s := range list {
		if s == sub {
			h.subs[sub.topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[sub.topic]) == 0 {
		delete(h.subs, sub.topic)
	}
	close(sub.ch)
}
