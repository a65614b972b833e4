package api

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/AaronLay10/astarviz/internal/metrics"
	"github.com/AaronLay10/astarviz/internal/session"
)

const frameBuffer = 16

// FrameHub fans encoded frames out to websocket subscribers.
// Every frame is a full picture, so a slow subscriber simply misses intermediate frames.
type FrameHub struct {
	mu     sync.RWMutex
	subs   map[chan []byte]struct{}
	last   []byte
	logger *slog.Logger
}

// NewFrameHub creates an empty hub.
func NewFrameHub(logger *slog.Logger) *FrameHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameHub{
		subs:   make(map[chan []byte]struct{}),
		logger: logger,
	}
}

// Publish implements session.Publisher.
func (h *FrameHub) Publish(f session.Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("failed to encode frame", "error", err, "seq", f.Sequence)
		return
	}

	h.mu.Lock()
	h.last = b
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- b:
		default:
		}
	}
	metrics.FramesPublished.WithLabelValues("websocket").Inc()
}

// Subscribe registers a subscriber and returns its channel plus the latest frame, if any.
func (h *FrameHub) Subscribe() (chan []byte, []byte) {
	ch := make(chan []byte, frameBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
	return ch, h.last
}

// Unsubscribe removes and closes ch. Safe to call twice.
func (h *FrameHub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

// Close closes every subscriber.
func (h *FrameHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan []byte]struct{})
}

// Count returns the number of subscribers.
func (h *FrameHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
