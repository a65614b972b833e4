package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/metrics"
	"github.com/AaronLay10/astarviz/internal/search"
	"github.com/AaronLay10/astarviz/internal/session"
)

type fakeRedis struct {
	mu         sync.Mutex
	messages   map[string][][]byte
	pingErr    error
	publishErr error
	closed     bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{messages: make(map[string][][]byte)}
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return redis.NewIntResult(0, f.publishErr)
	}
	b, _ := message.([]byte)
	f.messages[channel] = append(f.messages[channel], b)
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeRedis) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRedis) sent(channel string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.messages[channel]...)
}

func TestNewRedisValidatesConfig(t *testing.T) {
	if _, err := NewRedis(Config{URL: "redis://localhost:6379/0"}); err == nil {
		t.Error("expected error for missing channel")
	}
	if _, err := NewRedis(Config{URL: "http://nope", Channel: "frames"}); err == nil {
		t.Error("expected error for bad url")
	}
	r, err := NewRedis(Config{URL: "redis://localhost:6379/2", Channel: "frames"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Channel() != "frames" {
		t.Errorf("unexpected channel %q", r.Channel())
	}
}

func TestRelayPublishesNonTransientFrames(t *testing.T) {
	fake := newFakeRedis()
	r := newRedisWith(fake, "astarviz:frames", nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	r.Publish(session.Frame{Sequence: 1, Reason: session.ReasonTick})
	r.Publish(session.Frame{Sequence: 2, Reason: session.ReasonHover})
	r.Publish(session.Frame{Sequence: 3, Reason: session.ReasonStep, State: search.StateRunning, Open: []string{"b"}})
	r.Publish(session.Frame{Sequence: 4, Reason: session.ReasonStep, State: search.StateFound, Path: []string{"a", "b"}})

	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	msgs := fake.sent("astarviz:frames")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 relayed frames, got %d", len(msgs))
	}
	var last session.Frame
	if err := json.Unmarshal(msgs[1], &last); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if last.Sequence != 4 || last.State != search.StateFound || len(last.Path) != 2 {
		t.Errorf("unexpected frame %+v", last)
	}
	if !fake.closed {
		t.Error("expected client closed")
	}
	if !r.Up() {
		t.Error("expected link up after successful publishes")
	}
}

func TestRelayStartPingFailure(t *testing.T) {
	fake := newFakeRedis()
	fake.pingErr = errors.New("connection refused")
	r := newRedisWith(fake, "frames", nil)
	defer r.Close()

	events.Clear()
	metrics.SetComponentUp("redis", true)

	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	if r.Up() {
		t.Error("link must be down after failed ping")
	}
	if v := testutil.ToFloat64(metrics.ComponentUp.WithLabelValues("redis")); v != 0 {
		t.Errorf("expected redis component down, got %v", v)
	}
	found := false
	for _, e := range events.Snapshot() {
		if e.Name == "bridge.disconnected" && e.Message == "connection refused" {
			found = true
		}
	}
	if !found {
		t.Error("expected bridge.disconnected event for the failed ping")
	}
	if err := r.Check(context.Background()); err == nil {
		t.Error("expected readiness failure")
	}
}

func TestRelayPublishFailureMarksDown(t *testing.T) {
	fake := newFakeRedis()
	r := newRedisWith(fake, "frames", nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	fake.mu.Lock()
	fake.publishErr = errors.New("broken pipe")
	fake.mu.Unlock()

	r.Publish(session.Frame{Reason: session.ReasonRun})
	r.Close()

	if r.Up() {
		t.Error("expected link down after failed publish")
	}
}

func TestRelayDropsWhenQueueFull(t *testing.T) {
	r := newRedisWith(newFakeRedis(), "frames", nil)
	defer r.Close()

	// No worker started: the queue fills up.
	for i := 0; i < queueSize+5; i++ {
		r.Publish(session.Frame{Sequence: uint64(i), Reason: session.ReasonStep})
	}
	if got := r.Dropped(); got != 5 {
		t.Errorf("expected 5 dropped frames, got %d", got)
	}
}
