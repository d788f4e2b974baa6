package genie

// PumpResult tells the caller of Pump whether a byte was consumed
type PumpResult byte

const (
	PumpNone   PumpResult = iota // Nothing pending, call again later
	PumpRxChar                   // A byte was processed
)

func (r PumpResult) String() string {
	if r == PumpRxChar {
		return "RxChar"
	}
	return "None"
}

// getchar returns the next pending byte without blocking
func (e *Engine) getchar() (byte, bool) {
	e.err = nil
	if e.t.Available() == 0 {
		e.err = ErrNoCharacter
		return 0, false
	}
	c, err := e.t.ReadByte()
	if err != nil {
		e.err = err
		return 0, false
	}
	return c, true
}

// Pump is the heart of the link state machine: it consumes at most one byte
// and never blocks, except while a magic report payload is read.
// With runHandler set, the registered EventHandler is called when nothing is
// pending and frames are queued.
func (e *Engine) Pump(runHandler bool) PumpResult {
	if e.stack.current() == Shutdown {
		e.err = ErrShutdown
		return PumpNone
	}

	c, ok := e.getchar()
	if !ok {
		if runHandler && e.handler != nil && e.queue.len() > 0 {
			e.handler(e)
		}
		return PumpNone
	}

	switch state := e.stack.current(); state {
	case Idle, WaitAckOrNak, WaitReportHeader:
		switch {
		case c == ReportEvent:
			// Event out of the blue, suspend the current state while it is received
			e.push(ReceivingEvent)
		case c == ReportMagicBytes:
			e.push(ReceivingMagicBytes)
		case c == ReportMagicDBytes:
			e.push(ReceivingMagicDoubleBytes)
		case state == WaitAckOrNak && c == ACK:
			e.pop()
			e.settled()
			return PumpRxChar
		case state == WaitAckOrNak && c == NAK:
			e.pop()
			e.log.Warnf("Received NAK")
			e.handleError(ErrNak)
			return PumpRxChar
		case state == WaitReportHeader && c == ReportObj:
			e.stack.replace(ReceivingReport)
			e.entered(ReceivingReport)
		default:
			e.log.Debugf("Unexpected byte 0x%02x in state %v", c, state)
			e.handleError(&UnexpectedByteError{State: state, Byte: c})
			return PumpRxChar
		}
	}

	// The lead byte is the first byte of a frame or magic header
	switch state := e.stack.current(); {
	case state.receivingFrame():
		e.accumulate(c, state)
	case state.receivingMagic():
		e.magicHeaderByte(c, state)
	}
	return PumpRxChar
}

// accumulate collects FrameSize bytes, verifies them and queues the frame
func (e *Engine) accumulate(c byte, state LinkState) {
	e.rx[e.rxCount] = c
	e.rxSum ^= c
	e.rxCount++
	if e.rxCount < FrameSize {
		return
	}

	f, sum := e.rx, e.rxSum
	e.rxCount, e.rxSum = 0, 0
	// Revert to whatever was active before the frame started
	e.pop()

	if sum != 0 {
		e.log.Warnf("Discarding frame '% x': bad checksum", f[:])
		e.handleError(&ChecksumError{Frame: f, Residual: sum})
		return
	}
	e.settled()

	kind := "event"
	if state == ReceivingReport {
		kind = "report"
	}
	e.cfg.Metrics.frame(e.cfg.Name, kind)
	e.log.Debugf("Received %v %v", kind, f)

	coalesced, err := e.queue.enqueue(f)
	if err != nil {
		e.log.Warnf("Dropping %v %v: %v", kind, f, err)
		e.handleError(err)
		return
	}
	if coalesced {
		e.cfg.Metrics.coalesced(e.cfg.Name)
	}
	e.cfg.Metrics.depths(e.cfg.Name, e.queue.len(), e.stack.depth)
}

// settled clears the fatal error count once a conversation ended back at Idle.
// An ACK that only uncovers a stale wait state does not count as recovery.
func (e *Engine) settled() {
	if e.stack.current() == Idle {
		e.fatal = 0
	}
}
