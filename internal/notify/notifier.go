package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/netsync/apiserver/internal/metrics"
)

var (
	ErrQueueFull = errors.New("notify: queue full")
	ErrClosed    = errors.New("notify: notifier closed")
	ErrAbandoned = errors.New("notify: abandoned at shutdown")
)

// Sender delivers one verification message.
type Sender interface {
	Send(ctx context.Context, msg VerificationEmail) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg VerificationEmail) error

func (f SenderFunc) Send(ctx context.Context, msg VerificationEmail) error { return f(ctx, msg) }

// Options sizes the notifier.
type Options struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Notifier is a bounded, fire-and-forget work queue in front of a Sender.
type Notifier struct {
	sender  Sender
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	// base parents every send; cancelled when Shutdown gives up waiting.
	base  context.Context
	abort context.CancelFunc

	mu     sync.RWMutex
	queue  chan VerificationEmail
	closed bool
	wg     sync.WaitGroup
}

// NewNotifier starts opts.Workers goroutines draining a queue of
// opts.QueueSize messages. m may be nil.
func NewNotifier(sender Sender, opts Options, log *slog.Logger, m *metrics.Metrics) *Notifier {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 20 * time.Second
	}

	base, abort := context.WithCancel(context.Background())
	n := &Notifier{
		sender:  sender,
		log:     log,
		metrics: m,
		timeout: opts.SendTimeout,
		base:    base,
		abort:   abort,
		queue:   make(chan VerificationEmail, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		n.wg.Add(1)
		go n.work()
	}
	return n
}

// Enqueue submits msg without blocking. A full or closed queue drops the
// message; the drop is logged and counted and the error is returned for
// callers that care.
func (n *Notifier) Enqueue(msg VerificationEmail) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.drop(msg, ErrClosed)
		return ErrClosed
	}

	select {
	case n.queue <- msg:
		n.metrics.QueueDepth(len(n.queue))
		return nil
	default:
		n.drop(msg, ErrQueueFull)
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for queued ones to be sent.
func (n *Notifier) Close() {
	_ = n.Shutdown(context.Background())
}

// Shutdown stops accepting messages and waits for queued ones to be sent
// until ctx is done. At that point in-flight sends are cancelled, the rest
// of the queue is dropped, and ctx.Err() is returned once the workers exit.
func (n *Notifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.abort()
		return nil
	case <-ctx.Done():
		n.abort()
		<-done
		return ctx.Err()
	}
}

func (n *Notifier) work() {
	defer n.wg.Done()
	for msg := range n.queue {
		n.metrics.QueueDepth(len(n.queue))
		if n.base.Err() != nil {
			n.drop(msg, ErrAbandoned)
			continue
		}
		n.send(msg)
	}
}

func (n *Notifier) send(msg VerificationEmail) {
	// Detached from any request: the caller may be long gone.
	ctx, cancel := context.WithTimeout(n.base, n.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			n.metrics.Notification("failed")
			n.log.Error("verification email panicked", "to", msg.To, "panic", r)
		}
	}()

	if err := n.sender.Send(ctx, msg); err != nil {
		n.metrics.Notification("failed")
		n.log.Error("verification email failed", "to", msg.To, "resend", msg.Resend, "error", err)
		return
	}
	n.metrics.Notification("sent")
	n.log.Debug("verification email sent", "to", msg.To, "resend", msg.Resend)
}

func (n *Notifier) drop(msg VerificationEmail, reason error) {
	n.metrics.Notification("dropped")
	n.log.Warn("verification email dropped", "to", msg.To, "reason", reason)
}
