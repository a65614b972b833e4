package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/metrics"
	"github.com/AaronLay10/astarviz/internal/scheduler"
	"github.com/AaronLay10/astarviz/internal/search"
	"github.com/AaronLay10/astarviz/internal/session"
)

// Topic suffixes under the configured prefix.
const (
	TopicFrame   = "frame"
	TopicStatus  = "status"
	TopicCommand = "command"
	TopicResult  = "result"
)

const outboundBuffer = 64

// Commander applies remote commands. *session.Session implements it.
type Commander interface {
	Apply(source string, c session.Command) error
}

// StatusPayload is the retained status document.
type StatusPayload struct {
	Seq     uint64          `json:"seq"`
	State   search.State    `json:"state"`
	Running bool            `json:"running"`
	Speed   scheduler.Speed `json:"speed"`
	Start   string          `json:"start,omitempty"`
	End     string          `json:"end,omitempty"`
	Message string          `json:"message,omitempty"`
	Fields  []session.Field `json:"fields,omitempty"`
	Text    string          `json:"text"`
}

// CommandResult is published after every command received on the command topic.
type CommandResult struct {
	Command string `json:"command,omitempty"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type outbound struct {
	topic    string
	retained bool
	payload  []byte
}

// Bridge mirrors session frames to MQTT and feeds commands from MQTT back into the session.
// Publish never blocks: messages go through a buffered queue drained by one worker.
type Bridge struct {
	client    *Client
	subs      *Subscriber
	monitor   *Monitor
	commander Commander
	prefix    string
	logger    *slog.Logger

	out       chan outbound
	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	mu         sync.Mutex
	lastStatus string
	dropped    atomic.Uint64
}

// NewBridge builds a bridge and its broker client. It does not connect.
func NewBridge(o Options, prefix string, cmd Commander) *Bridge {
	b := newBridge(prefix, cmd, o.Logger, o.URL)
	o.OnConnect = b.onConnect
	o.OnConnectionLost = b.onConnectionLost
	b.client = NewClient(o)
	b.subs = NewSubscriber(b.client)
	return b
}

func newBridgeWith(pc pahoClient, prefix string, cmd Commander, logger *slog.Logger) *Bridge {
	b := newBridge(prefix, cmd, logger, "mock://")
	b.client = newClientWith(pc, b.logger)
	b.subs = NewSubscriber(b.client)
	return b
}

func newBridge(prefix string, cmd Commander, logger *slog.Logger, url string) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		monitor:   NewMonitor(url),
		commander: cmd,
		prefix:    prefix,
		logger:    logger.With("component", "mqtt"),
		out:       make(chan outbound, outboundBuffer),
		stop:      make(chan struct{}),
	}
}

// Topic returns the full topic for a suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.prefix + "/" + suffix
}

// Monitor returns the link monitor.
func (b *Bridge) Monitor() *Monitor {
	return b.monitor
}

// Start launches the publish worker, connects, and subscribes to the command topic.
// A connect error is returned but the client keeps retrying; the command subscription is
// restored once the broker is reachable.
func (b *Bridge) Start() error {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go b.worker()
	})

	topic := b.Topic(TopicCommand)
	b.subs.Register(topic, b.handleCommand)

	if err := b.client.Connect(); err != nil {
		b.logger.Warn("broker unavailable, retrying in background", "url", b.client.URL(), "error", err)
		return fmt.Errorf("mqtt connect: %w", err)
	}
	b.monitor.HandleConnect()

	if err := b.subs.Resubscribe(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	b.logger.Info("connected and subscribed", "url", b.client.URL(), "topic", topic)
	return nil
}

func (b *Bridge) onConnect() {
	b.monitor.HandleConnect()
	if err := b.subs.Resubscribe(); err != nil {
		b.logger.Warn("resubscribe failed", "error", err)
	}
}

func (b *Bridge) onConnectionLost(err error) {
	b.monitor.HandleLost(err)
	b.subs.ClearSubscriptions()
	b.logger.Warn("connection lost", "error", err)
}

// Publish implements session.Publisher. Tick and hover frames are not mirrored.
// The retained status is only republished when it changes.
func (b *Bridge) Publish(f session.Frame) {
	if f.Reason.Transient() {
		return
	}

	frame, err := json.Marshal(f)
	if err != nil {
		b.logger.Error("failed to encode frame", "error", err, "seq", f.Sequence)
		return
	}
	b.enqueue(outbound{topic: b.Topic(TopicFrame), payload: frame})

	st := statusPayload(f)
	key := fmt.Sprintf("%s|%t|%s|%s|%s|%s", st.State, st.Running, st.Speed, st.Start, st.End, st.Text)
	b.mu.Lock()
	changed := key != b.lastStatus
	b.lastStatus = key
	b.mu.Unlock()
	if !changed {
		return
	}

	status, err := json.Marshal(st)
	if err != nil {
		b.logger.Error("failed to encode status", "error", err)
		return
	}
	b.enqueue(outbound{topic: b.Topic(TopicStatus), retained: true, payload: status})
}

func statusPayload(f session.Frame) StatusPayload {
	return StatusPayload{
		Seq:     f.Sequence,
		State:   f.State,
		Running: f.Running,
		Speed:   f.Speed,
		Start:   f.Start,
		End:     f.End,
		Message: f.Status.Message,
		Fields:  f.Status.Fields,
		Text:    f.Status.String(),
	}
}

func (b *Bridge) enqueue(o outbound) {
	select {
	case b.out <- o:
	default:
		b.dropped.Add(1)
		b.logger.Debug("outbound queue full, dropping message", "topic", o.topic)
	}
}

// Dropped returns the number of messages discarded because the queue was full.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bridge) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stop:
			b.flush()
			return
		case o := <-b.out:
			b.send(o)
		}
	}
}

// flush sends what is already queued, without waiting for more.
func (b *Bridge) flush() {
	for {
		select {
		case o := <-b.out:
			b.send(o)
		default:
			return
		}
	}
}

func (b *Bridge) send(o outbound) {
	if err := b.client.Publish(o.topic, 1, o.retained, o.payload); err != nil {
		b.logger.Debug("publish failed", "topic", o.topic, "error", err)
		return
	}
	metrics.FramesPublished.WithLabelValues("mqtt").Inc()
}

// handleCommand decodes a command message and applies it to the session.
func (b *Bridge) handleCommand(_ paho.Client, msg paho.Message) {
	cmd, err := session.ParseCommand(msg.Payload())
	if err != nil {
		events.Emit("warning", "command.rejected", err.Error(), map[string]interface{}{
			"source": "mqtt",
			"topic":  msg.Topic(),
		})
		b.publishResult(CommandResult{OK: false, Error: err.Error()})
		return
	}

	res := CommandResult{Command: cmd.Command, OK: true}
	if err := b.commander.Apply("mqtt", cmd); err != nil {
		res.OK = false
		res.Error = err.Error()
	}
	b.publishResult(res)
}

func (b *Bridge) publishResult(res CommandResult) {
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	b.enqueue(outbound{topic: b.Topic(TopicResult), payload: payload})
}

// Check is a readiness check for the broker link.
func (b *Bridge) Check(ctx context.Context) error {
	return b.monitor.Check(ctx)
}

// Close flushes queued messages and disconnects. Safe to call more than once.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.stop)
		b.wg.Wait()
		b.client.Disconnect()
		metrics.SetComponentUp("mqtt", false)
	})
}
