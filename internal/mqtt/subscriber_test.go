package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MockMQTTClient is an in-memory pahoClient.
type MockMQTTClient struct {
	mu            sync.Mutex
	subscriptions map[string]paho.MessageHandler
	subscribeCall int
	published     []publishedMessage
	connected     bool
	connectErr    error
	subscribeErr  error
}

type publishedMessage struct {
	topic    string
	retained bool
	payload  []byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		subscriptions: make(map[string]paho.MessageHandler),
	}
}

func (m *MockMQTTClient) Connect() paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connectErr != nil {
		return &mockToken{err: m.connectErr}
	}
	m.connected = true
	return &mockToken{}
}

func (m *MockMQTTClient) Disconnect(uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeCall++
	if m.subscribeErr != nil {
		return &mockToken{err: m.subscribeErr}
	}
	m.subscriptions[topic] = handler
	return &mockToken{}
}

func (m *MockMQTTClient) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, _ := payload.([]byte)
	m.published = append(m.published, publishedMessage{topic: topic, retained: retained, payload: b})
	return &mockToken{}
}

func (m *MockMQTTClient) GetSubscriptions() map[string]paho.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[string]paho.MessageHandler)
	for k, v := range m.subscriptions {
		result[k] = v
	}
	return result
}

func (m *MockMQTTClient) SubscribeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribeCall
}

func (m *MockMQTTClient) Published(topic string) []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []publishedMessage
	for _, p := range m.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.subscriptions[topic]
	m.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

type mockToken struct {
	err error
}

func (t *mockToken) Wait() bool                       { return true }
func (t *mockToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *mockToken) Error() error { return t.err }

func newTestSubscriber() (*Subscriber, *MockMQTTClient) {
	mock := NewMockMQTTClient()
	mock.connected = true
	return NewSubscriber(newClientWith(mock, nil)), mock
}

func noopHandler(paho.Client, paho.Message) {}

func TestSubscriber_Subscribe(t *testing.T) {
	subscriber, mock := newTestSubscriber()

	if err := subscriber.Subscribe("astarviz/command", noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := mock.GetSubscriptions()["astarviz/command"]; !ok {
		t.Error("expected subscription to command topic")
	}
	if !subscriber.IsSubscribed("astarviz/command") {
		t.Error("expected subscriber to track subscription")
	}
}

func TestSubscriber_Subscribe_Idempotent(t *testing.T) {
	subscriber, mock := newTestSubscriber()

	_ = subscriber.Subscribe("astarviz/command", noopHandler)
	_ = subscriber.Subscribe("astarviz/command", noopHandler)

	if got := mock.SubscribeCalls(); got != 1 {
		t.Errorf("expected 1 broker subscribe, got %d", got)
	}
	if topics := subscriber.SubscribedTopics(); len(topics) != 1 {
		t.Errorf("expected 1 subscribed topic, got %d", len(topics))
	}
}

func TestSubscriber_SubscribeError(t *testing.T) {
	subscriber, mock := newTestSubscriber()
	mock.subscribeErr = errors.New("not Connected")

	if err := subscriber.Subscribe("astarviz/command", noopHandler); err == nil {
		t.Fatal("expected subscribe error")
	}
	if subscriber.IsSubscribed("astarviz/command") {
		t.Error("failed subscription must not be tracked as live")
	}

	// The handler is remembered for the next reconnect.
	mock.mu.Lock()
	mock.subscribeErr = nil
	mock.mu.Unlock()
	if err := subscriber.Resubscribe(); err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
	if !subscriber.IsSubscribed("astarviz/command") {
		t.Error("expected resubscribe to restore the topic")
	}
}

func TestSubscriber_ClearAndResubscribe(t *testing.T) {
	subscriber, mock := newTestSubscriber()

	topics := []string{"astarviz/command", "astarviz/other"}
	for _, topic := range topics {
		if err := subscriber.Subscribe(topic, noopHandler); err != nil {
			t.Fatalf("failed to subscribe %s: %v", topic, err)
		}
	}

	subscriber.ClearSubscriptions()
	if len(subscriber.SubscribedTopics()) != 0 {
		t.Error("expected no live subscriptions after clear")
	}

	// Resubscribing after clear goes back to the broker.
	if err := subscriber.Resubscribe(); err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
	if got := subscriber.SubscribedTopics(); len(got) != 2 || got[0] != "astarviz/command" {
		t.Errorf("unexpected topics after resubscribe: %v", got)
	}
	if got := mock.SubscribeCalls(); got != 4 {
		t.Errorf("expected 4 broker subscribes, got %d", got)
	}
}

func TestSubscriber_RegisterDefersSubscribe(t *testing.T) {
	subscriber, mock := newTestSubscriber()

	subscriber.Register("astarviz/command", noopHandler)
	if mock.SubscribeCalls() != 0 || subscriber.IsSubscribed("astarviz/command") {
		t.Fatal("register must not subscribe")
	}

	if err := subscriber.Resubscribe(); err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
	if !subscriber.IsSubscribed("astarviz/command") {
		t.Error("expected registered topic to be subscribed")
	}
}

func TestSubscriber_ConcurrentSubscriptions(t *testing.T) {
	subscriber, _ := newTestSubscriber()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = subscriber.Subscribe("astarviz/command", noopHandler)
		}()
	}
	wg.Wait()

	if topics := subscriber.SubscribedTopics(); len(topics) != 1 {
		t.Errorf("expected 1 topic, got %d", len(topics))
	}
}
