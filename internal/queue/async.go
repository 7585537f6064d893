package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBufferFull is returned when events arrive faster than the broker
// accepts them.
var ErrBufferFull = errors.New("audit event buffer full")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("audit publisher closed")

// Sender publishes one event synchronously.
type Sender interface {
	Publish(ctx context.Context, ev AuditEvent) error
}

// AsyncPublisher decouples request handling from the broker: Publish only
// enqueues, and a single worker forwards events to the wrapped Sender.
type AsyncPublisher struct {
	next    Sender
	log     logrus.FieldLogger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan AuditEvent
	done   chan struct{}
}

// NewAsyncPublisher starts the worker. buffer bounds the number of queued
// events; further events are dropped with ErrBufferFull.
func NewAsyncPublisher(next Sender, buffer int, log logrus.FieldLogger) *AsyncPublisher {
	a := &AsyncPublisher{
		next:    next,
		log:     log,
		timeout: 5 * time.Second,
		events:  make(chan AuditEvent, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish queues ev for the worker. It never blocks: a full buffer
// yields ErrBufferFull and a closed publisher ErrClosed.
func (a *AsyncPublisher) Publish(_ context.Context, ev AuditEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.events <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for ev := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Publish(ctx, ev); err != nil {
			a.log.WithError(err).WithFields(logrus.Fields{
				"entity": ev.Entity,
				"action": ev.Action,
			}).Warn("audit event dropped")
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones are sent.
func (a *AsyncPublisher) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	<-a.done
}
