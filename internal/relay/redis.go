// Package relay forwards session frames to a Redis pub/sub channel so other
// processes can follow a search without holding a websocket.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/metrics"
	"github.com/AaronLay10/astarviz/internal/session"
)

const (
	queueSize      = 128
	publishTimeout = 3 * time.Second
	pingTimeout    = 5 * time.Second
)

// redisClient is the part of *redis.Client the relay uses.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Config holds Redis connection configuration.
type Config struct {
	// URL is the Redis connection URL (redis://host:port/db)
	URL string

	// Password overrides any password in URL.
	Password string

	// Channel receives one JSON frame per message.
	Channel string

	Logger *slog.Logger
}

// Redis publishes non-transient frames to a pub/sub channel.
// Publish never blocks; a single worker drains the queue.
type Redis struct {
	client  redisClient
	channel string
	logger  *slog.Logger

	queue     chan []byte
	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	up      atomic.Bool
	dropped atomic.Uint64
}

// NewRedis creates a relay. It does not contact the server.
func NewRedis(cfg Config) (*Redis, error) {
	if cfg.Channel == "" {
		return nil, fmt.Errorf("redis relay: channel required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DialTimeout = 5 * time.Second
	opts.WriteTimeout = publishTimeout

	return newRedisWith(redis.NewClient(opts), cfg.Channel, cfg.Logger), nil
}

func newRedisWith(c redisClient, channel string, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:  c,
		channel: channel,
		logger:  logger.With("component", "redis"),
		queue:   make(chan []byte, queueSize),
		stop:    make(chan struct{}),
	}
}

// Channel returns the pub/sub channel name.
func (r *Redis) Channel() string {
	return r.channel
}

// Start pings the server and launches the worker. A failed ping is returned but the
// worker still runs; the link is marked up on the first successful publish.
func (r *Redis) Start(ctx context.Context) error {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.worker()
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		// The link starts down, so report the failure without waiting for a transition.
		r.up.Store(false)
		r.report(false, err)
		return fmt.Errorf("redis ping: %w", err)
	}
	r.setUp(true, nil)
	r.logger.Info("relaying frames", "channel", r.channel)
	return nil
}

// Publish implements session.Publisher.
func (r *Redis) Publish(f session.Frame) {
	if f.Reason.Transient() {
		return
	}
	b, err := json.Marshal(f)
	if err != nil {
		r.logger.Error("failed to encode frame", "error", err, "seq", f.Sequence)
		return
	}
	select {
	case r.queue <- b:
	default:
		r.dropped.Add(1)
		r.logger.Debug("relay queue full, dropping frame", "seq", f.Sequence)
	}
}

// Dropped returns the number of frames discarded because the queue was full.
func (r *Redis) Dropped() uint64 {
	return r.dropped.Load()
}

// Up reports whether the last interaction with the server succeeded.
func (r *Redis) Up() bool {
	return r.up.Load()
}

func (r *Redis) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			for {
				select {
				case b := <-r.queue:
					r.send(b)
				default:
					return
				}
			}
		case b := <-r.queue:
			r.send(b)
		}
	}
}

func (r *Redis) send(b []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		r.setUp(false, err)
		r.logger.Debug("publish failed", "channel", r.channel, "error", err)
		return
	}
	r.setUp(true, nil)
	metrics.FramesPublished.WithLabelValues("redis").Inc()
}

// setUp records link transitions as events and the component gauge.
func (r *Redis) setUp(up bool, err error) {
	if r.up.Swap(up) == up {
		return
	}
	r.report(up, err)
}

func (r *Redis) report(up bool, err error) {
	metrics.SetComponentUp("redis", up)
	if up {
		events.Emit("info", "bridge.connected", "", map[string]interface{}{
			"bridge":  "redis",
			"channel": r.channel,
		})
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	events.Emit("warning", "bridge.disconnected", msg, map[string]interface{}{
		"bridge":  "redis",
		"channel": r.channel,
	})
}

// Check is a readiness check.
func (r *Redis) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close flushes queued frames and closes the client. Safe to call more than once.
func (r *Redis) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()
		err = r.client.Close()
		metrics.SetComponentUp("redis", false)
	})
	return err
}
