package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AaronLay10/astarviz/internal/graph"
	"github.com/AaronLay10/astarviz/internal/scheduler"
	"github.com/AaronLay10/astarviz/internal/search"
	"github.com/AaronLay10/astarviz/internal/session"
)

type fakeCommander struct {
	mu   sync.Mutex
	cmds []session.Command
	err  error
}

func (f *fakeCommander) Apply(source string, c session.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, c)
	return f.err
}

func (f *fakeCommander) commands() []session.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Command(nil), f.cmds...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for: %s", msg)
}

func startedBridge(t *testing.T, cmd Commander) (*Bridge, *MockMQTTClient) {
	t.Helper()
	mock := NewMockMQTTClient()
	b := newBridgeWith(mock, "astarviz", cmd, nil)
	if err := b.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	t.Cleanup(b.Close)
	return b, mock
}

func TestBridgeStartSubscribesCommandTopic(t *testing.T) {
	b, mock := startedBridge(t, &fakeCommander{})

	if _, ok := mock.GetSubscriptions()["astarviz/command"]; !ok {
		t.Fatal("expected command topic subscription")
	}
	if err := b.Check(context.Background()); err != nil {
		t.Errorf("expected ready bridge, got %v", err)
	}
}

func TestBridgeStartConnectFailure(t *testing.T) {
	mock := NewMockMQTTClient()
	mock.connectErr = errors.New("connection refused")
	b := newBridgeWith(mock, "astarviz", &fakeCommander{}, nil)
	defer b.Close()

	err := b.Start()
	if err == nil {
		t.Fatal("expected connect error")
	}
	if b.Check(context.Background()) == nil {
		t.Error("expected readiness failure while disconnected")
	}

	// A later broker connect restores the command subscription.
	mock.mu.Lock()
	mock.connectErr = nil
	mock.connected = true
	mock.mu.Unlock()
	b.onConnect()

	if _, ok := mock.GetSubscriptions()["astarviz/command"]; !ok {
		t.Error("expected command topic subscription after reconnect")
	}
	if b.Check(context.Background()) != nil {
		t.Error("expected ready after reconnect")
	}
}

func TestBridgeConnectionLostClearsSubscriptions(t *testing.T) {
	b, mock := startedBridge(t, &fakeCommander{})

	b.onConnectionLost(errors.New("EOF"))
	if b.subs.IsSubscribed("astarviz/command") {
		t.Error("expected subscriptions cleared on connection loss")
	}
	if err := b.Check(context.Background()); err == nil {
		t.Error("expected readiness failure after connection loss")
	}

	b.onConnect()
	if !b.subs.IsSubscribed("astarviz/command") {
		t.Error("expected resubscribe on reconnect")
	}
	if got := mock.SubscribeCalls(); got != 2 {
		t.Errorf("expected 2 broker subscribes, got %d", got)
	}
	if st := b.Monitor().State(); st.Connects != 2 || st.Disconnects != 1 {
		t.Errorf("unexpected link state %+v", st)
	}
}

func TestBridgePublishFiltersFrames(t *testing.T) {
	b, mock := startedBridge(t, &fakeCommander{})

	b.Publish(session.Frame{Sequence: 1, Reason: session.ReasonTick})
	b.Publish(session.Frame{Sequence: 2, Reason: session.ReasonHover, Hovered: "top"})
	b.Publish(session.Frame{
		Sequence: 3,
		Reason:   session.ReasonSelect,
		State:    search.StateIdle,
		Start:    "top",
		Speed:    scheduler.Speed1,
		Status:   session.Message(session.MsgSelectEnd),
	})

	waitFor(t, func() bool { return len(mock.Published("astarviz/status")) == 1 }, "status publish")
	b.Close()

	frames := mock.Published("astarviz/frame")
	if len(frames) != 1 {
		t.Fatalf("expected only the select frame, got %d", len(frames))
	}
	var f session.Frame
	if err := json.Unmarshal(frames[0].payload, &f); err != nil {
		t.Fatalf("bad frame payload: %v", err)
	}
	if f.Sequence != 3 || f.Start != "top" {
		t.Errorf("unexpected frame %+v", f)
	}
	if frames[0].retained {
		t.Error("frames must not be retained")
	}

	status := mock.Published("astarviz/status")[0]
	if !status.retained {
		t.Error("status must be retained")
	}
	var st StatusPayload
	if err := json.Unmarshal(status.payload, &st); err != nil {
		t.Fatalf("bad status payload: %v", err)
	}
	if st.Message != session.MsgSelectEnd || st.Text != session.MsgSelectEnd || st.Start != "top" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestBridgeStatusOnlyOnChange(t *testing.T) {
	b, mock := startedBridge(t, &fakeCommander{})

	f := session.Frame{Reason: session.ReasonStep, State: search.StateRunning, Running: true}
	f.Status = session.Status{Fields: []session.Field{{Name: "Cost", Value: "1.00"}}}
	b.Publish(f)
	f.Sequence++
	b.Publish(f)
	f.Sequence++
	f.Status = session.Status{Fields: []session.Field{{Name: "Cost", Value: "2.00"}}}
	b.Publish(f)

	b.Close()
	if got := len(mock.Published("astarviz/frame")); got != 3 {
		t.Errorf("expected 3 frames, got %d", got)
	}
	if got := len(mock.Published("astarviz/status")); got != 2 {
		t.Errorf("expected 2 status updates, got %d", got)
	}
}

func TestBridgeHandleCommand(t *testing.T) {
	cmd := &fakeCommander{}
	_, mock := startedBridge(t, cmd)

	mock.SimulateMessage("astarviz/command", []byte(`{"command":" Select ","node_id":"top"}`))
	mock.SimulateMessage("astarviz/command", []byte(`not json`))

	got := cmd.commands()
	if len(got) != 1 || got[0].Command != "select" || got[0].NodeID != "top" {
		t.Fatalf("unexpected commands %+v", got)
	}

	waitFor(t, func() bool { return len(mock.Published("astarviz/result")) == 2 }, "command results")
	results := mock.Published("astarviz/result")
	var ok, bad CommandResult
	json.Unmarshal(results[0].payload, &ok)
	json.Unmarshal(results[1].payload, &bad)
	if !ok.OK || ok.Command != "select" {
		t.Errorf("unexpected result %+v", ok)
	}
	if bad.OK || bad.Error == "" {
		t.Errorf("expected rejected result, got %+v", bad)
	}
}

func TestBridgeHandleCommandError(t *testing.T) {
	cmd := &fakeCommander{err: errors.New("search already running")}
	_, mock := startedBridge(t, cmd)

	mock.SimulateMessage("astarviz/command", []byte(`{"command":"run"}`))

	waitFor(t, func() bool { return len(mock.Published("astarviz/result")) == 1 }, "command result")
	var res CommandResult
	if err := json.Unmarshal(mock.Published("astarviz/result")[0].payload, &res); err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Error != "search already running" || res.Command != "run" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestBridgeDropsWhenQueueFull(t *testing.T) {
	mock := NewMockMQTTClient()
	b := newBridgeWith(mock, "astarviz", &fakeCommander{}, nil)
	defer b.Close()

	// No worker: the queue fills and further frames are dropped.
	for i := 0; i < outboundBuffer+10; i++ {
		b.enqueue(outbound{topic: b.Topic(TopicFrame), payload: []byte("{}")})
	}
	if got := b.Dropped(); got != 10 {
		t.Errorf("expected 10 dropped, got %d", got)
	}
}

func TestBridgeDrivesSession(t *testing.T) {
	g, err := graph.FromNodes("line", []graph.Node{
		{ID: "a", X: 0, Y: 0, Neighbors: []string{"b"}},
		{ID: "b", X: 100, Y: 0, Neighbors: []string{"a"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	sess, err := session.New(g,
		session.WithSpeed(scheduler.SpeedMax),
		session.WithEngineOptions(search.WithoutEvents()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	b, mock := startedBridge(t, sess)
	sess.AddPublisher(b)

	for _, payload := range []string{
		`{"command":"select","node_id":"a"}`,
		`{"command":"select","node_id":"b"}`,
		`{"command":"run"}`,
	} {
		mock.SimulateMessage("astarviz/command", []byte(payload))
	}

	if snap := sess.Snapshot(); snap.State != search.StateFound {
		t.Fatalf("expected found, got %s", snap.State)
	}

	waitFor(t, func() bool {
		for _, m := range mock.Published("astarviz/status") {
			var st StatusPayload
			if json.Unmarshal(m.payload, &st) == nil && st.State == search.StateFound {
				return true
			}
		}
		return false
	}, "found status on mqtt")
}

func TestMonitorTransitions(t *testing.T) {
	m := NewMonitor("tcp://broker:1883")
	if m.Check(context.Background()) == nil {
		t.Fatal("new monitor should report disconnected")
	}

	m.HandleLost(errors.New("ignored while down"))
	if st := m.State(); st.Disconnects != 0 {
		t.Errorf("loss while down must not count, got %d", st.Disconnects)
	}

	m.HandleConnect()
	m.HandleConnect()
	if st := m.State(); !st.Connected || st.Connects != 1 {
		t.Errorf("unexpected state after connect %+v", st)
	}

	m.HandleLost(errors.New("keepalive timeout"))
	st := m.State()
	if st.Connected || st.Disconnects != 1 || st.LastError != "keepalive timeout" {
		t.Errorf("unexpected state after loss %+v", st)
	}
	if err := m.Check(context.Background()); err == nil {
		t.Error("expected readiness failure")
	}
}
