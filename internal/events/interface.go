package events

// EventPublisher is the write side of the hub. Services depend on it rather
// than on *Hub so tests can pass nil or a fake.
type EventPublisher interface {
	// SendEvent queues an event for delivery. It never blocks.
	SendEvent(event Event) error
}

// Compile-time verification that *Hub implements EventPublisher
var _ EventPublisher = (*Hub)(nil)
