package mqtt

import (
	"sort"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Subscriber tracks topic subscriptions so they can be restored after a reconnect.
// Subscribing a topic twice is a no-op.
type Subscriber struct {
	mu         sync.RWMutex
	client     *Client
	handlers   map[string]paho.MessageHandler // topic -> handler
	subscribed map[string]bool                // topic -> live on the broker
}

// NewSubscriber creates a subscriber over client.
func NewSubscriber(client *Client) *Subscriber {
	return &Subscriber{
		client:     client,
		handlers:   make(map[string]paho.MessageHandler),
		subscribed: make(map[string]bool),
	}
}

// Register records handler for topic without subscribing. Resubscribe picks it up.
func (s *Subscriber) Register(topic string, handler paho.MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[topic] = handler
}

// Subscribe records handler for topic and subscribes if not already subscribed.
func (s *Subscriber) Subscribe(topic string, handler paho.MessageHandler) error {
	s.mu.Lock()
	s.handlers[topic] = handler
	if s.subscribed[topic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.client.Subscribe(topic, handler); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[topic] = true
	s.mu.Unlock()
	return nil
}

// Resubscribe subscribes every recorded topic that is not live.
// It returns the first error but attempts every topic.
func (s *Subscriber) Resubscribe() error {
	s.mu.RLock()
	pending := make(map[string]paho.MessageHandler)
	for topic, h := range s.handlers {
		if !s.subscribed[topic] {
			pending[topic] = h
		}
	}
	s.mu.RUnlock()

	var first error
	for topic, h := range pending {
		if err := s.Subscribe(topic, h); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// IsSubscribed returns true if the topic is live.
func (s *Subscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// SubscribedTopics returns the live topics, sorted.
func (s *Subscriber) SubscribedTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.subscribed))
	for topic := range s.subscribed {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ClearSubscriptions marks every topic as not live. Handlers are kept.
// Call this on disconnect so Resubscribe restores them.
func (s *Subscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}
