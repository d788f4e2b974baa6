// Package link runs a genie.Engine in its own goroutine. The engine is single
// threaded, so every request is shipped to that goroutine and executed between
// two pumps.
package link

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/speters/genielink/genie"
)

var (
	ErrStopped = errors.New("link: runner stopped")
	ErrNoReply = errors.New("link: no reply from display")
)

// Subscriber receives every frame drained from the event queue
type Subscriber interface {
	HandleFrame(ctx context.Context, link string, f genie.Frame) error
}

// SubscriberFunc adapts a function to a Subscriber
type SubscriberFunc func(ctx context.Context, link string, f genie.Frame) error

func (fn SubscriberFunc) HandleFrame(ctx context.Context, link string, f genie.Frame) error {
	return fn(ctx, link, f)
}

// Value is the last known value of an object
type Value struct {
	Object  genie.ObjectType `json:"object"`
	Index   byte             `json:"index"`
	Value   uint16           `json:"value"`
	Updated time.Time        `json:"updated"`
}

// Status is a snapshot of the link state
type Status struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Depth       int    `json:"depth"`
	Pending     int    `json:"pending"`
	FatalErrors int    `json:"fatal_errors"`
	LastError   string `json:"last_error,omitempty"`
}

type request struct {
	fn  func(e *genie.Engine) error
	res chan error
}

type key struct {
	object genie.ObjectType
	index  byte
}

// Runner owns an engine and serializes all access to it
type Runner struct {
	engine  *genie.Engine
	subs    []Subscriber
	idle    time.Duration
	cmdChan chan request
	log     *log.Entry

	ctx  context.Context
	Done chan struct{}

	mu    sync.RWMutex
	cache map[key]Value
}

// New creates a runner. idle is the pause between polls while the display is silent.
func New(e *genie.Engine, idle time.Duration, subs ...Subscriber) *Runner {
	if idle <= 0 {
		idle = time.Millisecond
	}
	r := &Runner{
		engine:  e,
		subs:    subs,
		idle:    idle,
		cmdChan: make(chan request),
		log:     log.WithField("link", e.Name()),
		ctx:     context.Background(),
		Done:    make(chan struct{}),
		cache:   make(map[key]Value),
	}
	e.OnEvent(func(e *genie.Engine) { r.drain(e) })
	return r
}

// Name returns the name of the link
func (r *Runner) Name() string { return r.engine.Name() }

// Run pumps the engine until ctx is cancelled
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.Done)
	r.ctx = ctx

	tick := time.NewTicker(r.idle)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debugf("Closing, returning from pump loop")
			return ctx.Err()
		case req := <-r.cmdChan:
			req.res <- req.fn(r.engine)
			continue
		default:
		}

		if r.engine.Pump(true) == genie.PumpRxChar {
			continue
		}

		select {
		case <-ctx.Done():
			r.log.Debugf("Closing, returning from pump loop")
			return ctx.Err()
		case req := <-r.cmdChan:
			req.res <- req.fn(r.engine)
		case <-tick.C:
		}
	}
}

// Do runs fn on the runner goroutine and returns its error
func (r *Runner) Do(ctx context.Context, fn func(e *genie.Engine) error) error {
	req := request{fn: fn, res: make(chan error, 1)}
	select {
	case r.cmdChan <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.Done:
		return ErrStopped
	}
	select {
	case err := <-req.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain empties the event queue into the cache and the subscribers
func (r *Runner) drain(e *genie.Engine) []genie.Frame {
	var frames []genie.Frame
	for {
		f, ok := e.Dequeue()
		if !ok {
			return frames
		}
		frames = append(frames, f)

		r.mu.Lock()
		r.cache[key{f.Object(), f.Index()}] = Value{Object: f.Object(), Index: f.Index(), Value: f.Data(), Updated: time.Now()}
		r.mu.Unlock()

		for _, s := range r.subs {
			if err := s.HandleFrame(r.ctx, e.Name(), f); err != nil {
				r.log.Errorf("Subscriber failed for %v: %v", f, err)
			}
		}
	}
}

// ready brings the link back to Idle before a command. A link that does not
// get there within the timeout is resynchronized.
func (r *Runner) ready(e *genie.Engine) error {
	err := e.WaitForIdle()
	if errors.Is(err, genie.ErrTimeout) {
		r.log.Warnf("Link stuck in %v (depth %v), resyncing", e.State(), e.Depth())
		e.Resync()
		return nil
	}
	return err
}

// exchange sends one command and waits for its answer. Frames queued in the
// meantime are drained before the wait is judged, so an answer counts even if
// the link did not return to Idle afterwards. Such a link is resynchronized.
func (r *Runner) exchange(ctx context.Context, send func(e *genie.Engine) error, reply func(f genie.Frame) bool) error {
	return r.Do(ctx, func(e *genie.Engine) error {
		if err := r.ready(e); err != nil {
			return err
		}
		if err := send(e); err != nil {
			return err
		}

		err := e.WaitForIdle()
		nak := errors.Is(e.Err(), genie.ErrNak)
		answered := false
		if reply != nil {
			for _, f := range r.drain(e) {
				if reply(f) {
					answered = true
				}
			}
		}
		if errors.Is(err, genie.ErrTimeout) {
			r.log.Warnf("No answer in %v (depth %v), resyncing", e.State(), e.Depth())
			e.Resync()
		}

		switch {
		case answered:
			return nil
		case err != nil:
			return err
		case nak:
			return genie.ErrNak
		case reply != nil:
			return ErrNoReply
		}
		return nil
	})
}

// ReadObject asks the display for the value of an object and waits for the reply
func (r *Runner) ReadObject(ctx context.Context, object genie.ObjectType, index byte) (uint16, error) {
	var v uint16
	err := r.exchange(ctx,
		func(e *genie.Engine) error { return e.ReadObject(object, index) },
		func(f genie.Frame) bool {
			if f.Is(genie.ReportObj, object, index) {
				v = f.Data()
				return true
			}
			return false
		})
	return v, err
}

// WriteObject writes an object value and waits for the ACK
func (r *Runner) WriteObject(ctx context.Context, object genie.ObjectType, index byte, value uint16) error {
	return r.exchange(ctx, func(e *genie.Engine) error {
		return e.WriteObject(object, index, value)
	}, nil)
}

// WriteString writes text to a string object, as 16bit units if unicode is set
func (r *Runner) WriteString(ctx context.Context, index byte, s string, unicode bool) error {
	return r.exchange(ctx, func(e *genie.Engine) error {
		if unicode {
			return e.WriteUnicode(index, s)
		}
		return e.WriteString(index, s)
	}, nil)
}

func (r *Runner) WriteContrast(ctx context.Context, value byte) error {
	return r.exchange(ctx, func(e *genie.Engine) error {
		return e.WriteContrast(value)
	}, nil)
}

func (r *Runner) WriteMagicBytes(ctx context.Context, index byte, payload []byte) error {
	return r.exchange(ctx, func(e *genie.Engine) error {
		return e.WriteMagicBytes(index, payload)
	}, nil)
}

func (r *Runner) WriteMagicDoubleBytes(ctx context.Context, index byte, payload []uint16) error {
	return r.exchange(ctx, func(e *genie.Engine) error {
		return e.WriteMagicDoubleBytes(index, payload)
	}, nil)
}

// Resync drops everything in flight and returns the link to idle
func (r *Runner) Resync(ctx context.Context) error {
	return r.Do(ctx, func(e *genie.Engine) error {
		e.Resync()
		return nil
	})
}

func (r *Runner) Status(ctx context.Context) (Status, error) {
	var s Status
	err := r.Do(ctx, func(e *genie.Engine) error {
		s = Status{
			Name:        e.Name(),
			State:       e.State().String(),
			Depth:       e.Depth(),
			Pending:     e.Pending(),
			FatalErrors: e.FatalErrors(),
		}
		if err := e.Err(); err != nil && !errors.Is(err, genie.ErrNoCharacter) {
			s.LastError = err.Error()
		}
		return nil
	})
	return s, err
}

// Value returns the last value seen for an object
func (r *Runner) Value(object genie.ObjectType, index byte) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.cache[key{object, index}]
	return v, ok
}

// Values returns all cached object values
func (r *Runner) Values() []Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs := make([]Value, 0, len(r.cache))
	for _, v := range r.cache {
		vs = append(vs, v)
	}
	return vs
}
