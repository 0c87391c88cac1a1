package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// DefaultBufferSize is the number of events a subscription holds before dropping new ones
const DefaultBufferSize = 256

// Subscription receives the events of the subscribed types
type Subscription struct {
	ID string

	eventTypes []Type
	ch         chan *Event
}

// Events returns the channel events are delivered on. It is closed when the subscription is canceled.
func (s *Subscription) Events() <-chan *Event {
	return s.ch
}

// eventSupported checks if the event is supported by the subscription
func (s *Subscription) eventSupported(eventType Type) bool {
	if len(s.eventTypes) == 0 {
		return true
	}

	for _, supportedType := range s.eventTypes {
		if supportedType == eventType {
			return true
		}
	}

	return false
}

// Manager fans gateway events out to subscribers
type Manager struct {
	subscriptions     map[string]*Subscription
	subscriptionsLock sync.RWMutex
	bufferSize        int
	logger            hclog.Logger
}

func NewManager(logger hclog.Logger, bufferSize int) *Manager {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Manager{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    bufferSize,
		logger:        logger.Named("event-manager"),
	}
}

// Subscribe registers a new listener for the given event types, every type when none is given
func (m *Manager) Subscribe(eventTypes ...Type) *Subscription {
	m.subscriptionsLock.Lock()
	defer m.subscriptionsLock.Unlock()

	subscription := &Subscription{
		ID:         uuid.New().String(),
		eventTypes: eventTypes,
		ch:         make(chan *Event, m.bufferSize),
	}

	m.subscriptions[subscription.ID] = subscription
	m.logger.Debug("added new subscription", "id", subscription.ID)

	return subscription
}

// Cancel stops the subscription
func (m *Manager) Cancel(id string) {
	m.subscriptionsLock.Lock()
	defer m.subscriptionsLock.Unlock()

	if subscription, ok := m.subscriptions[id]; ok {
		close(subscription.ch)
		delete(m.subscriptions, id)
		m.logger.Debug("canceled subscription", "id", id)
	}
}

// Close cancels every subscription
func (m *Manager) Close() {
	m.subscriptionsLock.Lock()
	defer m.subscriptionsLock.Unlock()

	for id, subscription := range m.subscriptions {
		close(subscription.ch)
		delete(m.subscriptions, id)
	}
}

// Fire delivers the event to every interested subscriber. [NON-BLOCKING]
// A subscriber whose buffer is full misses the event.
func (m *Manager) Fire(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	m.subscriptionsLock.RLock()
	defer m.subscriptionsLock.RUnlock()

	for _, subscription := range m.subscriptions {
		if !subscription.eventSupported(event.Type) {
			continue
		}

		select {
		case subscription.ch <- event:
		default:
			m.logger.Warn("subscription buffer full, dropping event", "id", subscription.ID, "event", event.Type)
		}
	}
}
