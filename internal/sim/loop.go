package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
	"github.com/OEOTYAN/BedrockServerClientInterface/logging/simulation"
)

const (
	tickCounterMetricKey     = "sim_ticks_total"
	advisorySkippedMetricKey = "sim_advisory_skipped_total"
	tickOverrunMetricKey     = "sim_tick_overrun_total"
	defaultTickRate          = 20
	defaultTaskQueueCapacity = 8192
)

// Task is a unit of work handed to an Executor. The context passed to the
// task identifies the executor it runs on.
type Task func(ctx context.Context)

// Executor runs tasks on a designated execution context. Callers already on
// that context run inline; everyone else enqueues and returns immediately.
type Executor interface {
	Execute(ctx context.Context, task Task)
}

// Immediate runs every task inline on the caller's goroutine.
type Immediate struct{}

// Execute implements Executor.
func (Immediate) Execute(ctx context.Context, task Task) {
	if task == nil {
		return
	}
	task(ctx)
}

// Ticker receives one call per simulation tick.
type Ticker interface {
	Tick(ctx context.Context, tick uint64)
}

// TickerFunc adapts a function into a Ticker.
type TickerFunc func(ctx context.Context, tick uint64)

// Tick implements Ticker.
func (f TickerFunc) Tick(ctx context.Context, tick uint64) {
	if f == nil {
		return
	}
	f(ctx, tick)
}

// LoopConfig tunes the tick cadence and hand-off queue.
type LoopConfig struct {
	TickRate      int
	QueueCapacity int
}

// DefaultLoopConfig returns the production cadence.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickRate:      defaultTickRate,
		QueueCapacity: defaultTaskQueueCapacity,
	}
}

// LoopDeps carries shared infrastructure for the loop.
type LoopDeps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

type tickerEntry struct {
	id       uint64
	ticker   Ticker
	advisory bool
}

type loopKey struct{}

// Loop is the designated execution context: handed-off tasks and tickers
// all run on the goroutine that calls Run.
type Loop struct {
	config    LoopConfig
	buffer    *TaskBuffer
	wake      chan struct{}
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	clock     logging.Clock

	tickersMu sync.Mutex
	tickers   []tickerEntry
	nextID    uint64

	tick         atomic.Uint64
	spilled      atomic.Uint64
	skipAdvisory bool
	streak       uint64
}

// NewLoop constructs a loop. Zero config fields fall back to the defaults.
func NewLoop(cfg LoopConfig, deps LoopDeps) *Loop {
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaultTickRate
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultTaskQueueCapacity
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	return &Loop{
		config:    cfg,
		buffer:    NewTaskBuffer(cfg.QueueCapacity, deps.Metrics),
		wake:      make(chan struct{}, 1),
		logger:    logger,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
		clock:     clock,
	}
}

// Budget is the wall-clock time allotted to one tick.
func (l *Loop) Budget() time.Duration {
	if l == nil {
		return 0
	}
	return time.Second / time.Duration(l.config.TickRate)
}

// TickRate reports the configured ticks per second.
func (l *Loop) TickRate() int {
	if l == nil {
		return 0
	}
	return l.config.TickRate
}

// CurrentTick reports the last tick started.
func (l *Loop) CurrentTick() uint64 {
	if l == nil {
		return 0
	}
	return l.tick.Load()
}

// Pending reports the number of queued tasks.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// OnLoop reports whether ctx was handed out by this loop.
func (l *Loop) OnLoop(ctx context.Context) bool {
	if l == nil || ctx == nil {
		return false
	}
	owner, _ := ctx.Value(loopKey{}).(*Loop)
	return owner == l
}

func (l *Loop) bind(ctx context.Context) context.Context {
	if l.OnLoop(ctx) {
		return ctx
	}
	return context.WithValue(ctx, loopKey{}, l)
}

// Execute implements Executor.
func (l *Loop) Execute(ctx context.Context, task Task) {
	if l == nil || task == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if l.OnLoop(ctx) {
		task(ctx)
		return
	}
	if !l.buffer.Push(task) {
		// Hand-offs are never dropped; a full ring spills.
		l.buffer.Spill(task)
		spilled := l.spilled.Add(1)
		if spilled&(spilled-1) == 0 {
			l.logger.Printf("[backpressure] task queue full capacity=%d spilled=%d", l.config.QueueCapacity, spilled)
			simulation.TaskSpilled(ctx, l.publisher, l.tick.Load(), simulation.TaskSpilledPayload{
				Capacity: l.config.QueueCapacity,
				Spilled:  spilled,
			}, nil)
		}
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AddTicker registers t. Advisory tickers are skipped on the tick after a
// budget overrun. The returned func unregisters t.
func (l *Loop) AddTicker(t Ticker, advisory bool) (remove func()) {
	if l == nil || t == nil {
		return func() {}
	}
	l.tickersMu.Lock()
	l.nextID++
	id := l.nextID
	l.tickers = append(l.tickers, tickerEntry{id: id, ticker: t, advisory: advisory})
	l.tickersMu.Unlock()
	return func() {
		l.tickersMu.Lock()
		defer l.tickersMu.Unlock()
		for i, entry := range l.tickers {
			if entry.id == id {
				l.tickers = append(l.tickers[:i], l.tickers[i+1:]...)
				return
			}
		}
	}
}

func (l *Loop) snapshotTickers() []tickerEntry {
	l.tickersMu.Lock()
	defer l.tickersMu.Unlock()
	return append([]tickerEntry(nil), l.tickers...)
}

func (l *Loop) runTasks(ctx context.Context) {
	for _, task := range l.buffer.Drain() {
		task(ctx)
	}
}

// Step runs queued tasks and one round of tickers on the caller's
// goroutine. Run calls it on every tick; tests call it directly.
func (l *Loop) Step(ctx context.Context) {
	if l == nil {
		return
	}
	ctx = l.bind(ctx)
	tick := l.tick.Add(1)
	start := l.clock.Now()

	l.runTasks(ctx)

	skip := l.skipAdvisory
	l.skipAdvisory = false
	for _, entry := range l.snapshotTickers() {
		if entry.advisory && skip {
			l.addMetric(advisorySkippedMetricKey, 1)
			continue
		}
		entry.ticker.Tick(ctx, tick)
	}
	l.addMetric(tickCounterMetricKey, 1)

	elapsed := l.clock.Now().Sub(start)
	budget := l.Budget()
	if elapsed <= budget {
		l.streak = 0
		return
	}
	l.streak++
	l.skipAdvisory = true
	l.addMetric(tickOverrunMetricKey, 1)
	simulation.TickBudgetOverrun(ctx, l.publisher, tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: elapsed.Milliseconds(),
		BudgetMillis:   budget.Milliseconds(),
		Ratio:          float64(elapsed) / float64(budget),
		Streak:         l.streak,
		SkipAdvisory:   true,
	}, nil)
}

// Run drives the fixed-timestep loop until ctx is cancelled. Tasks queued
// between ticks run as soon as they arrive.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return nil
	}
	ticker := time.NewTicker(l.Budget())
	defer ticker.Stop()

	runCtx := l.bind(ctx)
	for {
		select {
		case <-ctx.Done():
			l.runTasks(runCtx)
			return nil
		case <-l.wake:
			l.runTasks(runCtx)
		case <-ticker.C:
			l.Step(runCtx)
		}
	}
}

func (l *Loop) addMetric(key string, delta uint64) {
	if l.metrics == nil {
		return
	}
	l.metrics.Add(key, delta)
}

var (
	_ Executor = (*Loop)(nil)
	_ Executor = Immediate{}
)
