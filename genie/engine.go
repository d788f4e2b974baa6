// Package genie speaks the serial protocol of 4D Systems Genie displays.
//
// An Engine is pumped by its owner: each Pump consumes at most one byte,
// decodes report and event frames into a small queue and tracks the nested
// link states of a conversation (waiting for an ACK, receiving a report).
// Commands are written once the link is idle.
package genie

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// EventHandler is called by Pump when no byte is pending and frames are queued.
// It usually drains the queue with Dequeue.
type EventHandler func(e *Engine)

// MagicSink receives a magic report. It must read length payload units with
// NextByte or NextDoubleByte; the engine discards the trailing checksum itself.
type MagicSink func(e *Engine, index byte, length int)

type magicHeader struct {
	cmd    byte
	index  byte
	length byte
}

// Engine drives one link to a display. It is not safe for concurrent use:
// a single goroutine pumps it and issues all commands.
type Engine struct {
	t       Transport
	cfg     Config
	log     *log.Entry
	limiter *rate.Limiter

	stack *linkStack
	queue *eventQueue
	err   error
	fatal int

	rx      Frame
	rxCount int
	rxSum   byte

	magic      magicHeader
	magicCount int

	handler    EventHandler
	byteSink   MagicSink
	doubleSink MagicSink
}

// New creates an engine on top of t. The link starts Idle with an empty queue.
func New(t Transport, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		t:          t,
		cfg:        cfg,
		log:        cfg.Logger.WithField("link", cfg.Name),
		limiter:    rate.NewLimiter(cfg.PollRate, 1),
		stack:      newLinkStack(cfg.MaxLinkStates),
		queue:      newEventQueue(cfg.QueueCapacity),
		byteSink:   discardBytes,
		doubleSink: discardDoubleBytes,
	}
	return e
}

// Name returns the link name
func (e *Engine) Name() string { return e.cfg.Name }

// Err returns the error recorded by the last operation. It is overwritten on
// every pump and command, a poll without input leaves ErrNoCharacter.
func (e *Engine) Err() error { return e.err }

// State returns the active link state
func (e *Engine) State() LinkState { return e.stack.current() }

// Depth returns the number of nested link states, 1 when idle
func (e *Engine) Depth() int { return e.stack.depth }

// Pending returns the number of queued frames
func (e *Engine) Pending() int { return e.queue.len() }

// FatalErrors returns the number of fatal errors since the last good frame or resync
func (e *Engine) FatalErrors() int { return e.fatal }

// OnEvent registers the handler called by Pump(true). nil removes it.
func (e *Engine) OnEvent(h EventHandler) {
	e.handler = h
}

// OnMagicBytes registers the sink for magic byte reports. nil restores the default, which discards the payload.
func (e *Engine) OnMagicBytes(s MagicSink) {
	if s == nil {
		s = discardBytes
	}
	e.byteSink = s
}

// OnMagicDoubleBytes registers the sink for magic double byte reports. nil restores the default.
func (e *Engine) OnMagicDoubleBytes(s MagicSink) {
	if s == nil {
		s = discardDoubleBytes
	}
	e.doubleSink = s
}

// Dequeue removes the oldest queued frame
func (e *Engine) Dequeue() (Frame, bool) {
	f, ok := e.queue.dequeue()
	if ok {
		e.cfg.Metrics.depths(e.cfg.Name, e.queue.len(), e.stack.depth)
	}
	return f, ok
}

// push enters a new link state. A full stack means the link lost track of
// the display, so it is resynchronized instead.
func (e *Engine) push(state LinkState) {
	if !e.stack.push(state) {
		e.log.Warnf("Link state stack overflow pushing %v", state)
		e.Resync()
		return
	}
	e.entered(state)
	e.cfg.Metrics.depths(e.cfg.Name, e.queue.len(), e.stack.depth)
}

func (e *Engine) pop() {
	e.stack.pop()
	e.cfg.Metrics.depths(e.cfg.Name, e.queue.len(), e.stack.depth)
}

// entered resets the accumulators of a freshly entered receiving state
func (e *Engine) entered(state LinkState) {
	switch {
	case state.receivingFrame():
		e.rxCount = 0
		e.rxSum = 0
	case state.receivingMagic():
		e.magicCount = 0
	}
}

// handleError records err and resynchronizes the link once too many fatal errors happened in a row
func (e *Engine) handleError(err error) {
	e.err = err
	e.cfg.Metrics.failed(e.cfg.Name, err)
	if !isFatal(err) {
		return
	}
	e.fatal++
	if e.cfg.MaxFatalErrors > 0 && e.fatal > e.cfg.MaxFatalErrors {
		e.log.Errorf("%v fatal errors, last: %v", e.fatal, err)
		e.Resync()
		e.err = err
	}
}

// pace blocks until the poll limiter allows the next poll of the transport
func (e *Engine) pace() {
	_ = e.limiter.Wait(context.Background())
}

func (e *Engine) timeoutMillis() int64 {
	return e.cfg.Timeout.Milliseconds()
}
