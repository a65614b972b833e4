package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronLay10/astarviz/internal/animation"
	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/graph"
	"github.com/AaronLay10/astarviz/internal/metrics"
	"github.com/AaronLay10/astarviz/internal/scheduler"
	"github.com/AaronLay10/astarviz/internal/search"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithSpeed sets the initial speed.
func WithSpeed(sp scheduler.Speed) Option {
	return func(s *Session) {
		if sp.Valid() {
			s.speed = sp
		}
	}
}

// WithScheduler replaces the default scheduler.
func WithScheduler(sched *scheduler.Scheduler) Option {
	return func(s *Session) { s.sched = sched }
}

// WithPublisher adds a frame publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Session) { s.pubs = append(s.pubs, p) }
}

// WithTickPeriod sets the animation redraw period.
func WithTickPeriod(d time.Duration) Option {
	return func(s *Session) { s.tickPeriod = d }
}

// WithEngineOptions passes options to the search engine.
func WithEngineOptions(opts ...search.Option) Option {
	return func(s *Session) { s.engineOpts = append(s.engineOpts, opts...) }
}

// Session owns one graph, its search engine, scheduler and animation queue, and the
// viewer's selection. All mutation happens behind one mutex.
type Session struct {
	mu         sync.Mutex
	graph      *graph.Graph
	engine     *search.Engine
	engineOpts []search.Option
	queue      *animation.Queue
	sched      *scheduler.Scheduler
	ticker     *animation.Ticker
	tickPeriod time.Duration
	logger     *slog.Logger
	pubs       []Publisher

	speed    scheduler.Speed
	runSpeed scheduler.Speed
	start    string
	end      string
	hovered  string
	status   Status
	seq      uint64
	closed   bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates an idle session over g.
func New(g *graph.Graph, opts ...Option) (*Session, error) {
	if g == nil {
		return nil, errors.New("session: nil graph")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		graph:      g,
		queue:      animation.NewQueue(),
		tickPeriod: animation.DefaultTickPeriod,
		logger:     slog.Default(),
		speed:      scheduler.Speed1,
		status:     Message(MsgSelectStart),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, o := range opts {
		o(s)
	}
	if s.sched == nil {
		s.sched = scheduler.New(scheduler.WithLogger(s.logger))
	}
	s.engine = search.NewEngine(s.engineOpts...)
	s.ticker = animation.NewTicker(s.tickPeriod, func() { s.Tick() })
	return s, nil
}

// Graph returns the session graph.
func (s *Session) Graph() *graph.Graph {
	return s.graph
}

// AddPublisher registers p for all subsequent frames.
func (s *Session) AddPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubs = append(s.pubs, p)
}

// StartTicker begins the background animation loop.
func (s *Session) StartTicker() {
	s.ticker.Start()
}

// Hover marks id as the node under the pointer. An empty id clears it.
func (s *Session) Hover(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if id != "" && !s.graph.Has(id) {
		return &graph.UnknownNodeError{ID: id}
	}
	s.setHoveredLocked(id)
	return nil
}

// HoverAt hovers the node whose hit square contains p, or clears the hover.
// It returns the hovered id.
func (s *Session) HoverAt(p graph.Point) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	id, _ := s.graph.NodeAt(p, 0)
	s.setHoveredLocked(id)
	return id, nil
}

func (s *Session) setHoveredLocked(id string) {
	if id == s.hovered {
		return
	}
	s.hovered = id
	s.publishLocked(ReasonHover)
}

// Click selects the hovered node. It reports whether the selection changed.
func (s *Session) Click() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if s.hovered == "" {
		return false, nil
	}
	return s.selectLocked(s.hovered), nil
}

// Select picks id as the start node, then as the end node. Once both are set further
// selections are ignored until Reset. It reports whether the selection changed.
func (s *Session) Select(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if !s.graph.Has(id) {
		return false, &graph.UnknownNodeError{ID: id}
	}
	return s.selectLocked(id), nil
}

func (s *Session) selectLocked(id string) bool {
	switch {
	case s.start == "":
		s.start = id
		s.status = Message(MsgSelectEnd)
		events.Emit("info", "selection.start", "", map[string]interface{}{"node_id": id})
	case s.end == "":
		s.end = id
		s.status = Message(MsgReady)
		events.Emit("info", "selection.end", "", map[string]interface{}{"node_id": id})
	default:
		return false
	}
	s.publishLocked(ReasonSelect)
	return true
}

// Run starts a search between the selected endpoints at the current speed.
// The previous run's visuals are discarded. At max speed Run returns once the
// search has finished; otherwise it returns after the first step.
func (s *Session) Run() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.engine.Running() {
		// The previous loop is past its last step and needs no session lock to exit.
		s.sched.Wait()
	}
	if err := s.engine.Start(s.graph, s.start, s.end); err != nil {
		s.mu.Unlock()
		return err
	}
	s.queue.Reset()
	s.runSpeed = s.speed
	s.status = Status{}
	metrics.RunsActive.Set(1)
	s.publishLocked(ReasonRun)
	ctx, speed, runID := s.ctx, s.speed, s.engine.Info().RunID
	s.mu.Unlock()

	if err := s.sched.Start(ctx, speed, s.step); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			s.mu.Lock()
			s.abortRunLocked(runID)
			s.mu.Unlock()
		}
		return err
	}
	return nil
}

// abortRunLocked drops the engine run runID when the scheduler refused to drive it.
// A newer run started in the meantime belongs to another loop and is left alone.
func (s *Session) abortRunLocked(runID string) bool {
	if !s.engine.Running() || s.engine.Info().RunID != runID {
		return false
	}
	s.engine.Reset()
	metrics.RunsActive.Set(0)
	s.status = Message(MsgReady)
	s.publishLocked(ReasonReset)
	return true
}

// step is the scheduler callback: one expansion plus its animation edge and status.
func (s *Session) step() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true, nil
	}

	res, err := s.engine.Step()
	if err != nil {
		if errors.Is(err, search.ErrNotStarted) {
			// Reset won the race against a scheduled step.
			return true, nil
		}
		s.logger.Error("search step failed", "error", err)
		events.Emit("error", "system.error", err.Error(), map[string]interface{}{
			"component": "session",
		})
		s.engine.Reset()
		metrics.RunsActive.Set(0)
		metrics.RunsTotal.WithLabelValues("error").Inc()
		s.status = Message(fmt.Sprintf("Search failed: %v", err))
		s.publishLocked(ReasonStep)
		return true, err
	}

	if res.State != search.StateNoPath {
		metrics.StepsTotal.Inc()
	}
	if tr := res.Traversal; tr != nil {
		s.pushEdgeLocked(*tr)
	}

	switch res.State {
	case search.StateRunning:
		s.status = Fields(
			Field{Name: "Current", Value: res.Current},
			Field{Name: "Cost", Value: formatCost(res.Cost)},
			Field{Name: "Steps", Value: fmt.Sprint(res.Steps)},
		)
	case search.StateFound:
		fields := []Field{
			{Name: "Cost", Value: formatCost(res.Cost)},
			{Name: "Steps", Value: fmt.Sprint(res.Steps)},
		}
		if s.runSpeed.Max() {
			fields = append(fields, Field{Name: "Time", Value: formatElapsed(res.Info.Elapsed)})
		}
		s.status = Fields(fields...)
		s.finishLocked("found", res)
	case search.StateNoPath:
		s.status = Message(MsgNoPath)
		s.finishLocked("no_path", res)
	}

	s.publishLocked(ReasonStep)
	return res.State.Terminal(), nil
}

func (s *Session) pushEdgeLocked(tr search.Traversal) {
	from, err := s.graph.Position(tr.From)
	if err != nil {
		return
	}
	to, err := s.graph.Position(tr.To)
	if err != nil {
		return
	}
	speed := animation.SpeedForScore(tr.Score)
	if tr.Final {
		speed = animation.FinalEdgeSpeed
	}
	s.queue.Push(animation.Edge{
		From:  tr.From,
		To:    tr.To,
		Start: from,
		End:   to,
		Speed: speed,
	})
}

func (s *Session) finishLocked(outcome string, res search.StepResult) {
	metrics.RunsActive.Set(0)
	metrics.ObserveRun(outcome, s.runSpeed.String(), res.Steps, res.Info.Elapsed)
	s.logger.Info("search finished",
		"outcome", outcome,
		"steps", res.Steps,
		"cost", res.Cost,
		"speed", s.runSpeed.String(),
	)
}

func formatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

// Reset stops any run and clears the search, animation and selection.
func (s *Session) Reset() error {
	for {
		s.sched.Reset()
		s.mu.Lock()
		if !s.sched.Running() {
			break
		}
		// A Run slipped in between; stop it too.
		s.mu.Unlock()
	}
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.engine.Running() {
		metrics.RunsActive.Set(0)
		metrics.RunsTotal.WithLabelValues("reset").Inc()
	}
	s.engine.Reset()
	s.queue.Reset()
	s.start = ""
	s.end = ""
	s.status = Message(MsgSelectStart)
	events.Emit("info", "selection.cleared", "", nil)
	s.publishLocked(ReasonReset)
	return nil
}

// SetSpeed changes the speed used by the next run. It is rejected while a search runs.
func (s *Session) SetSpeed(sp scheduler.Speed) error {
	if !sp.Valid() {
		return &scheduler.InvalidSpeedError{Value: fmt.Sprint(int(sp))}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.engine.Running() {
		return ErrSpeedLocked
	}
	if sp == s.speed {
		return nil
	}
	prev := s.speed
	s.speed = sp
	events.Emit("info", "speed.changed", "", map[string]interface{}{
		"from": prev.String(),
		"to":   sp.String(),
	})
	s.publishLocked(ReasonSpeed)
	return nil
}

// Speed returns the currently selected speed.
func (s *Session) Speed() scheduler.Speed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Tick advances the animation by one redraw period. It is skipped, returning false,
// when no search is running and every edge is fully drawn.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	running := s.engine.Running()
	if !running && !s.queue.HasPending() {
		return false
	}
	s.queue.Advance(s.activeSpeedLocked().Multiplier())
	s.publishLocked(ReasonTick)
	return true
}

// activeSpeedLocked is the speed of the run being drawn, or the selected speed when idle.
func (s *Session) activeSpeedLocked() scheduler.Speed {
	if s.engine.State() != search.StateIdle && s.runSpeed.Valid() {
		return s.runSpeed
	}
	return s.speed
}

// Status returns the current status report.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Running reports whether a search is in progress.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Running()
}

// Snapshot returns the current frame without publishing it.
func (s *Session) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked(ReasonInit)
}

func (s *Session) frameLocked(reason Reason) Frame {
	snap := s.engine.Snapshot()
	edges := s.queue.Edges()
	pending := s.queue.HasPending()
	return Frame{
		Sequence:     s.seq,
		Reason:       reason,
		Graph:        s.graph.Name(),
		State:        snap.State,
		Open:         snap.Open,
		Closed:       snap.Closed,
		Path:         snap.Path,
		Edges:        edges,
		Start:        s.start,
		End:          s.end,
		Hovered:      s.hovered,
		Running:      snap.State == search.StateRunning,
		Speed:        s.speed,
		Status:       s.status,
		PathRevealed: len(snap.Path) > 0 && !pending,
	}
}

func (s *Session) publishLocked(reason Reason) {
	s.seq++
	fr := s.frameLocked(reason)
	for _, p := range s.pubs {
		p.Publish(fr)
	}
}

// Close stops the scheduler and animation ticker. Further operations return ErrClosed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.ticker.Stop()
		s.sched.Reset()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
	})
	return nil
}
