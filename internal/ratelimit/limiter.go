// Package ratelimit paces outbound Google Ads calls through a single FIFO lane.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinDelay is the spacing used when none is configured.
const DefaultMinDelay = 100 * time.Millisecond

var ErrClosed = errors.New("ratelimit: limiter closed")

// Limiter runs submitted functions one at a time, in submission order, starting
// each at least minDelay after the previous one started. The queue is unbounded.
type Limiter struct {
	pacer *rate.Limiter

	mu     sync.Mutex
	queue  []*job
	closed bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

type job struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

func New(minDelay time.Duration) *Limiter {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}
	l := &Limiter{
		pacer:   rate.NewLimiter(limit, 1),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

// Do queues fn and blocks until it has run or ctx ends. A caller whose context
// ends while still queued gets ctx.Err() and fn is never invoked. If ctx ends
// while fn is running, Do returns at once and fn finishes on the worker, so fn
// must not hand results back through unsynchronized variables. Errors and
// panics from fn go to this caller only.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	j := &job{ctx: ctx, fn: fn, result: make(chan error, 1)}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, j)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker. Calls still queued fail with ErrClosed.
func (l *Limiter) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.stopped
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)
	<-l.stopped
}

func (l *Limiter) run() {
	defer close(l.stopped)

	for {
		select {
		case <-l.done:
			l.failPending()
			return
		default:
		}

		j := l.next()
		if j == nil {
			select {
			case <-l.wake:
			case <-l.done:
				l.failPending()
				return
			}
			continue
		}

		if err := j.ctx.Err(); err != nil {
			j.result <- err
			continue
		}
		if err := l.pacer.Wait(j.ctx); err != nil {
			j.result <- err
			continue
		}
		j.result <- invoke(j)
	}
}

func (l *Limiter) next() *job {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	j := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return j
}

func (l *Limiter) failPending() {
	l.mu.Lock()
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, j := range pending {
		j.result <- ErrClosed
	}
}

func invoke(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ratelimit: queued call panicked: %v", r)
		}
	}()
	return j.fn(j.ctx)
}
