package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/opencode-ai/toolrun/internal/logging"
)

// Topic is the watermill topic every event is mirrored to.
const Topic = "toolrun.events"

// Metadata keys set on mirrored messages.
const (
	MetadataType    = "type"
	MetadataSession = "session"
)

// EventType represents the type of event.
type EventType string

const (
	SessionCreated EventType = "session.created"
	SessionClosed  EventType = "session.closed"
	ToolInvoked    EventType = "tool.invoked"
	ToolCompleted  EventType = "tool.completed"
	FileEdited     EventType = "file.edited"
)

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// SessionID returns the session the event belongs to, or "".
func (e Event) SessionID() string {
	if s, ok := e.Data.(interface{ EventSessionID() string }); ok {
		return s.EventSessionID()
	}
	return ""
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

type subscription struct {
	id     uint64
	accept func(Event) bool
	fn     Subscriber
}

// Bus is the event bus. Direct subscribers receive typed events; every
// event is also mirrored as a JSON message on the watermill Topic, which is
// what Stream consumers (the SSE endpoint) read.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID atomic.Uint64
	closed bool

	pubsub *gochannel.GoChannel
}

// globalBus is the default event bus instance.
var globalBus = NewBus()

// NewBus creates a bus backed by its own gochannel.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NopLogger{},
		),
	}
}

// Subscribe registers fn for one event type and returns an unsubscribe
// function.
func Subscribe(eventType EventType, fn Subscriber) func() {
	return globalBus.Subscribe(eventType, fn)
}

func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	return b.add(func(e Event) bool { return e.Type == eventType }, fn)
}

// SubscribeAll registers fn for every event.
func SubscribeAll(fn Subscriber) func() {
	return globalBus.SubscribeAll(fn)
}

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	return b.add(nil, fn)
}

// SubscribeSession registers fn for the events of one session.
func SubscribeSession(sessionID string, fn Subscriber) func() {
	return globalBus.SubscribeSession(sessionID, fn)
}

func (b *Bus) SubscribeSession(sessionID string, fn Subscriber) func() {
	return b.add(func(e Event) bool { return e.SessionID() == sessionID }, fn)
}

func (b *Bus) add(accept func(Event) bool, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.nextID.Add(1)
	b.subs = append(b.subs, subscription{id: id, accept: accept, fn: fn})

	var once sync.Once
	return func() { once.Do(func() { b.remove(id) }) }
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// matching returns the subscribers of event, or false once the bus is
// closed.
func (b *Bus) matching(event Event) ([]Subscriber, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, false
	}
	var out []Subscriber
	for _, s := range b.subs {
		if s.accept == nil || s.accept(event) {
			out = append(out, s.fn)
		}
	}
	return out, true
}

// Publish delivers event to each subscriber in its own goroutine.
func Publish(event Event) {
	globalBus.Publish(event)
}

func (b *Bus) Publish(event Event) {
	subs, ok := b.matching(event)
	if !ok {
		return
	}
	b.mirror(event)
	for _, fn := range subs {
		go fn(event)
	}
}

// PublishSync delivers event to every subscriber, in subscription order,
// before returning.
func PublishSync(event Event) {
	globalBus.PublishSync(event)
}

func (b *Bus) PublishSync(event Event) {
	subs, ok := b.matching(event)
	if !ok {
		return
	}
	b.mirror(event)
	for _, fn := range subs {
		fn(event)
	}
}

// mirror publishes the event on the watermill topic. Without stream
// subscribers gochannel drops the message.
func (b *Bus) mirror(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.Warn().Err(err).Str("type", string(event.Type)).Msg("event not mirrored")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataType, string(event.Type))
	if id := event.SessionID(); id != "" {
		msg.Metadata.Set(MetadataSession, id)
	}
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		logging.Debug().Err(err).Str("type", string(event.Type)).Msg("event not mirrored")
	}
}

// Stream subscribes to the watermill topic. Each message payload is the
// JSON encoding of an Event and carries MetadataType and, for session
// events, MetadataSession. Consumers must Ack every message. The channel
// closes when ctx is done or the bus is closed.
func Stream(ctx context.Context) (<-chan *message.Message, error) {
	return globalBus.Stream(ctx)
}

func (b *Bus) Stream(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, Topic)
}

// Close drops all subscribers and closes the stream.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subs = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// Reset replaces the global bus with a fresh one (for testing).
func Reset() {
	old := globalBus
	globalBus = NewBus()
	_ = old.Close()
}
