package genie

// WaitForIdle pumps the link until it is idle or the timeout elapsed. Every
// received byte restarts the timeout, a frame in flight is never abandoned.
// On timeout the link states are left alone; call Resync to start over.
func (e *Engine) WaitForIdle() error {
	switch e.stack.current() {
	case Idle:
		return nil
	case Shutdown:
		e.err = ErrShutdown
		return ErrShutdown
	}

	timeout := e.timeoutMillis()
	deadline := e.t.Millis() + timeout
	for e.t.Millis() < deadline {
		if e.Pump(false) == PumpRxChar {
			deadline = e.t.Millis() + timeout
		} else {
			e.pace()
		}
		if e.stack.current() == Idle {
			return nil
		}
	}

	e.log.Warnf("Timed out waiting for idle link in state %v (depth %v)", e.stack.current(), e.stack.depth)
	e.handleError(ErrTimeout)
	return ErrTimeout
}

// Resync discards all unread input and queued frames and returns the link to Idle.
// It also revives a link that was shut down.
func (e *Engine) Resync() {
	e.log.Warnf("Resync in state %v, depth %v, %v queued frames", e.stack.current(), e.stack.depth, e.queue.len())
	n := 0
	for e.t.Available() > 0 {
		if _, err := e.t.ReadByte(); err != nil {
			break
		}
		n++
	}
	if n > 0 {
		e.log.Debugf("Flushed %v bytes of input", n)
	}
	e.queue.flush()
	e.stack.reset()
	e.rxCount, e.rxSum, e.magicCount = 0, 0, 0
	e.fatal = 0
	e.cfg.Metrics.resync(e.cfg.Name)
	e.cfg.Metrics.depths(e.cfg.Name, 0, 1)
}

// Shutdown stops the link: the pump ignores input and every command fails
// with ErrShutdown until Resync is called.
func (e *Engine) Shutdown() {
	e.log.Infof("Link shut down")
	e.stack.halt()
	e.queue.flush()
	e.err = ErrShutdown
}
