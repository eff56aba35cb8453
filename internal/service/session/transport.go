package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Outbound events queue here until the SSE handler drains them. The depth only
// needs to absorb responses produced while a write to the client is in flight.
const eventQueueDepth = 16

var (
	ErrTransportClosed = errors.New("session: transport closed")
	ErrQueueFull       = errors.New("session: event queue full")
)

// Event is one server-sent event waiting to go out on the stream.
type Event struct {
	Name string
	Data []byte
}

// Transport is the server half of one SSE connection: a session id plus a
// bounded outbound event queue. The HTTP handler owns the response writer and
// drains Events; everything else only enqueues.
type Transport struct {
	id     string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewTransport allocates a transport with a fresh session id.
func NewTransport() *Transport {
	return &Transport{
		id:     uuid.NewString(),
		events: make(chan Event, eventQueueDepth),
		done:   make(chan struct{}),
	}
}

// ID returns the session identifier assigned at creation.
func (t *Transport) ID() string { return t.id }

// Send enqueues an event for the stream. It fails rather than blocks when the
// transport is closed or the client has stopped draining.
func (t *Transport) Send(name string, data []byte) error {
	select {
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	select {
	case t.events <- Event{Name: name, Data: data}:
		return nil
	case <-t.done:
		return ErrTransportClosed
	default:
		return ErrQueueFull
	}
}

// Events is drained by the SSE handler.
func (t *Transport) Events() <-chan Event { return t.events }

// Done closes when the transport is shut down.
func (t *Transport) Done() <-chan struct{} { return t.done }

// Close is idempotent.
func (t *Transport) Close() {
	t.once.Do(func() { close(t.done) })
}
