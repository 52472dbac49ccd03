package foreign

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/graft/metric"
)

// Severity grades bus messages.
type Severity int

const (
	// SeverityInfo is progress reporting.
	SeverityInfo Severity = iota
	// SeverityWarning is a recoverable anomaly.
	SeverityWarning
	// SeverityError is a failure surfaced from a driver or callback.
	SeverityError
)

// String returns a human-readable severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one bus item. Err is set for error-severity messages raised
// from a Go error.
type Message struct {
	Severity Severity
	Source   string
	Text     string
	Err      error
	Time     time.Time
}

const defaultBusCapacity = 64

// Bus carries messages from graph driver goroutines to whoever watches the
// graph. Posting never blocks: when the buffer is full the message is
// dropped and counted, so a slow or absent consumer cannot stall a driver.
type Bus struct {
	logger  *slog.Logger
	metrics *metric.Metrics
	graph   string

	ch      chan Message
	dropped atomic.Uint64

	// dropWarn limits how often a full buffer is logged.
	dropWarn *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newBus(capacity int, logger *slog.Logger, metrics *metric.Metrics, graph string) *Bus {
	if capacity <= 0 {
		capacity = defaultBusCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:   logger,
		metrics:  metrics,
		graph:    graph,
		ch:       make(chan Message, capacity),
		dropWarn: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Post delivers a message without blocking. Messages posted after Close or
// into a full buffer are dropped and counted.
func (b *Bus) Post(msg Message) {
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.drop(msg)
		return
	}
	select {
	case b.ch <- msg:
		b.mu.Unlock()
		if b.metrics != nil {
			b.metrics.RecordBusMessage(b.graph, msg.Severity.String())
		}
		return
	default:
	}
	b.mu.Unlock()
	b.drop(msg)
}

func (b *Bus) drop(msg Message) {
	n := b.dropped.Add(1)
	if b.metrics != nil {
		b.metrics.RecordBusDropped(b.graph)
	}
	if b.dropWarn.Allow() {
		b.logger.Warn("dropping bus message",
			"source", msg.Source,
			"severity", msg.Severity.String(),
			"dropped_total", n)
	}
}

// Error posts an error-severity message built from err.
func (b *Bus) Error(source string, err error) {
	b.Post(Message{
		Severity: SeverityError,
		Source:   source,
		Text:     err.Error(),
		Err:      err,
	})
}

// Warning posts a warning-severity message.
func (b *Bus) Warning(source, text string) {
	b.Post(Message{
		Severity: SeverityWarning,
		Source:   source,
		Text:     text,
	})
}

// Info posts an info-severity message.
func (b *Bus) Info(source, text string) {
	b.Post(Message{
		Severity: SeverityInfo,
		Source:   source,
		Text:     text,
	})
}

// Messages returns the receive side of the bus. The channel closes when the
// owning graph stops.
func (b *Bus) Messages() <-chan Message {
	return b.ch
}

// Dropped returns how many messages were discarded.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops accepting messages and closes the channel. Safe to call once
// all posters have finished.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
