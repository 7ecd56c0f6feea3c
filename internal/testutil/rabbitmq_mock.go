package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

// PublishedEvent is an event captured by MockPublisher.
type PublishedEvent struct {
	RoutingKey string
	EventData  interface{}
	RawJSON    []byte
}

// MockPublisher records events in memory instead of talking to RabbitMQ.
type MockPublisher struct {
	mu     sync.RWMutex
	events []PublishedEvent

	// Err, when set, is returned from every Publish call.
	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, routingKey string, eventData interface{}) error {
	if m.Err != nil {
		return m.Err
	}
	raw, err := json.Marshal(eventData)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{RoutingKey: routingKey, EventData: eventData, RawJSON: raw})
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Count returns how many events went out with routingKey.
func (m *MockPublisher) Count(routingKey string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.events {
		if e.RoutingKey == routingKey {
			n++
		}
	}
	return n
}

// Last returns the most recent event with routingKey, or nil.
func (m *MockPublisher) Last(routingKey string) *PublishedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].RoutingKey == routingKey {
			e := m.events[i]
			return &e
		}
	}
	return nil
}

// DecodeLast unmarshals the JSON of the last routingKey event into dst.
func (m *MockPublisher) DecodeLast(t *testing.T, routingKey string, dst interface{}) {
	t.Helper()
	e := m.Last(routingKey)
	if e == nil {
		t.Fatalf("no %q event published", routingKey)
	}
	if err := json.Unmarshal(e.RawJSON, dst); err != nil {
		t.Fatalf("decode %q event: %v", routingKey, err)
	}
}

// AssertPublished fails the test unless exactly want events used routingKey.
func (m *MockPublisher) AssertPublished(t *testing.T, routingKey string, want int) {
	t.Helper()
	if got := m.Count(routingKey); got != want {
		t.Errorf("expected %d %q events, got %d", want, routingKey, got)
	}
}
