package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FilterConfig determines which summaries trigger notifications.
type FilterConfig struct {
	ZoneRuns bool
	Imports  bool
	// MinTotalDamage skips zone runs with less total damage (trash clears).
	MinTotalDamage int64
}

// NotifierStatus represents the current status of the notifier.
type NotifierStatus struct {
	Disabled       bool
	DisabledReason string
	DisabledAt     time.Time
	Sent           int
}

// DefaultMaxQueueSize is the default maximum number of summaries to keep in queue.
const DefaultMaxQueueSize = 100

// Notifier batches and sends Discord notifications.
// It runs a dedicated goroutine for processing summaries.
type Notifier struct {
	sender       Sender
	schedule     Scheduler
	backoff      *Backoff
	batchDelay   time.Duration
	filter       FilterConfig
	logger       *slog.Logger
	maxQueueSize int

	summaryCh chan Summary
	flushCh   chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}

	// internal state (protected by mu)
	mu         sync.Mutex
	queue      []Summary
	flushTimer Stopper
	status     NotifierStatus

	// backoff state, owned by the run loop
	backoffUntil time.Time

	stopOnce sync.Once
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithScheduler replaces time.AfterFunc for the batch window.
func WithScheduler(s Scheduler) NotifierOption {
	return func(n *Notifier) { n.schedule = s }
}

// WithNotifierLogger sets the logger.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithMaxQueueSize sets the maximum queue size.
func WithMaxQueueSize(size int) NotifierOption {
	return func(n *Notifier) {
		if size > 0 {
			n.maxQueueSize = size
		}
	}
}

// WithBackoff sets the retry backoff.
func WithBackoff(b *Backoff) NotifierOption {
	return func(n *Notifier) {
		if b != nil {
			n.backoff = b
		}
	}
}

// NewNotifier creates a new Notifier.
// Call Run() to start processing summaries.
func NewNotifier(sender Sender, batchDelaySec int, filter FilterConfig, opts ...NotifierOption) *Notifier {
	if batchDelaySec <= 0 {
		batchDelaySec = 3
	}

	n := &Notifier{
		sender:       sender,
		schedule:     realScheduler,
		backoff:      NewBackoff(DefaultBackoffConfig),
		batchDelay:   time.Duration(batchDelaySec) * time.Second,
		filter:       filter,
		logger:       slog.Default(),
		maxQueueSize: DefaultMaxQueueSize,
		summaryCh:    make(chan Summary, 64),
		flushCh:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		queue:        make([]Summary, 0, 16),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run starts the notification processing loop.
// Blocks until Stop is called or ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.doneCh)

	for {
		select {
		case s := <-n.summaryCh:
			n.handleSummary(s)

		case <-n.flushCh:
			n.flush(ctx)

		case <-n.stopCh:
			// Best-effort flush on stop
			n.flush(ctx)
			return

		case <-ctx.Done():
			n.flush(context.Background())
			return
		}
	}
}

// Enqueue adds a summary to the notification queue. Summaries are filtered
// based on configuration. Safe to call from any goroutine.
// Non-blocking: if the channel is full, the summary is dropped.
func (n *Notifier) Enqueue(s Summary) {
	if s.Kind == 0 {
		return
	}

	n.mu.Lock()
	disabled := n.status.Disabled
	n.mu.Unlock()
	if disabled {
		return
	}

	if !n.shouldNotify(s) {
		return
	}

	select {
	case n.summaryCh <- s:
	default:
		n.logger.Warn("notification queue full, summary dropped", "title", s.Title)
	}
}

func (n *Notifier) shouldNotify(s Summary) bool {
	switch s.Kind {
	case SummaryZoneRun:
		return n.filter.ZoneRuns && s.TotalDamage >= n.filter.MinTotalDamage
	case SummaryImport:
		return n.filter.Imports
	default:
		return false
	}
}

func (n *Notifier) handleSummary(s Summary) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.queue = append(n.queue, s)
	n.coalesceQueueLocked()

	// Drop oldest
	if len(n.queue) > n.maxQueueSize {
		dropped := len(n.queue) - n.maxQueueSize
		n.queue = n.queue[dropped:]
		n.logger.Warn("queue overflow, dropped old summaries", "dropped", dropped)
	}

	if n.flushTimer == nil {
		n.flushTimer = n.schedule(n.batchDelay, n.triggerFlush)
	}
}

// coalesceQueueLocked keeps only the latest summary per key, at the
// position of the first one. Must be called with mu held.
func (n *Notifier) coalesceQueueLocked() {
	if len(n.queue) <= 1 {
		return
	}

	seen := make(map[string]int)
	result := make([]Summary, 0, len(n.queue))
	for _, s := range n.queue {
		if s.Key == "" {
			result = append(result, s)
			continue
		}
		if idx, ok := seen[s.Key]; ok {
			result[idx] = s
			continue
		}
		seen[s.Key] = len(result)
		result = append(result, s)
	}
	n.queue = result
}

func (n *Notifier) triggerFlush() {
	select {
	case n.flushCh <- struct{}{}:
	default:
	}
}

func (n *Notifier) flush(ctx context.Context) {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.flushTimer = nil
		n.mu.Unlock()
		return
	}

	// In backoff: keep the queue and try again when it ends.
	if time.Now().Before(n.backoffUntil) {
		remaining := time.Until(n.backoffUntil)
		n.logger.Debug("in backoff period, keeping summaries in queue",
			"queue_size", len(n.queue),
			"remaining", remaining,
		)
		if n.flushTimer == nil {
			n.flushTimer = n.schedule(remaining, n.triggerFlush)
		}
		n.mu.Unlock()
		return
	}

	summaries := n.queue
	n.queue = make([]Summary, 0, 16)
	n.flushTimer = nil
	n.mu.Unlock()

	for _, payload := range BuildPayloads(summaries) {
		result, retryAfter := n.sender.Send(ctx, payload)
		n.handleSendResult(result, retryAfter)
		if result != SendOK {
			break
		}
	}
}

func (n *Notifier) handleSendResult(result SendResult, retryAfter time.Duration) {
	switch result {
	case SendOK:
		n.backoff.Reset()
		n.backoffUntil = time.Time{}
		n.mu.Lock()
		n.status.Sent++
		n.mu.Unlock()

	case SendRetryable:
		n.backoffUntil = time.Now().Add(n.backoff.Next(retryAfter))
		n.logger.Warn("discord send failed, backing off",
			"attempt", n.backoff.Attempts(),
			"backoff_until", n.backoffUntil,
		)

	case SendFatal:
		n.mu.Lock()
		n.status.Disabled = true
		n.status.DisabledReason = "fatal error (invalid webhook or authentication failed)"
		n.status.DisabledAt = time.Now()
		n.mu.Unlock()
		n.logger.Error("discord send fatal error, notifications disabled")
	}
}

// Stop stops the notifier gracefully.
// Waits for the run loop to finish or until ctx is cancelled.
// Safe to call multiple times.
func (n *Notifier) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() {
		close(n.stopCh)
	})

	select {
	case <-n.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current notifier status.
func (n *Notifier) Status() NotifierStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// QueueLength returns the current queue length.
func (n *Notifier) QueueLength() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}
