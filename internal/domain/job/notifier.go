package job

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until the job store announces new work (LISTEN/NOTIFY on job insert).
type Waiter interface {
	WaitForNotification(ctx context.Context) error
}

// Notifier fans one store listener out to every idle worker.
type Notifier interface {
	Subscribe() (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure DefaultNotifier.
type NotifierOptions struct {
	Waiter Waiter
	// WaitWindow bounds one wait. Subscribers are also woken when it elapses, so a missed
	// notification costs at most one window.
	WaitWindow time.Duration
	// Backoff is the pause after a failed wait before listening again.
	Backoff time.Duration
}

// DefaultNotifier runs a listener goroutine only while it has subscribers. Each subscriber
// gets a one-slot channel: wakeups coalesce and never block the listener.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan struct{}
	stop   context.CancelFunc
	done   chan struct{}
}

var _ Notifier = (*DefaultNotifier)(nil)

// NewNotifier applies defaults of one minute for the window and 250ms for the backoff.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}
	n := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		subs:       make(map[uint64]chan struct{}),
	}
	if n.waitWindow <= 0 {
		n.waitWindow = time.Minute
	}
	if n.backoff <= 0 {
		n.backoff = 250 * time.Millisecond
	}
	return n, nil
}

// Subscribe registers a wakeup channel, starting the listener if needed. The returned func
// unsubscribes and closes the channel; it is safe to call more than once and after StopAll.
func (n *DefaultNotifier) Subscribe() (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop == nil {
		ctx, cancel := context.WithCancel(context.Background())
		n.stop = cancel
		n.done = make(chan struct{})
		go n.listen(ctx, n.done)
	}

	id := n.nextID
	n.nextID++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	var once sync.Once
	return func() { once.Do(func() { n.unsubscribe(id) }) }, ch
}

func (n *DefaultNotifier) unsubscribe(id uint64) {
	n.mu.Lock()
	ch, ok := n.subs[id]
	if !ok {
		n.mu.Unlock()
		return
	}
	delete(n.subs, id)
	close(ch)
	var done chan struct{}
	if len(n.subs) == 0 {
		done = n.stopLocked()
	}
	n.mu.Unlock()

	if done != nil {
		<-done
	}
}

// StopAll closes every subscriber channel and waits for the listener to exit.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	for id, ch := range n.subs {
		close(ch)
		delete(n.subs, id)
	}
	done := n.stopLocked()
	n.mu.Unlock()

	if done != nil {
		<-done
	}
}

// stopLocked cancels the listener and returns the channel that closes when it has exited.
func (n *DefaultNotifier) stopLocked() chan struct{} {
	if n.stop == nil {
		return nil
	}
	n.stop()
	done := n.done
	n.stop, n.done = nil, nil
	return done
}

func (n *DefaultNotifier) listen(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx)
		cancel()

		if ctx.Err() != nil {
			return
		}
		n.broadcast()

		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(n.backoff):
			}
		}
	}
}

func (n *DefaultNotifier) broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
