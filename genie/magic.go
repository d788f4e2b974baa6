package genie

import (
	"errors"
	"fmt"
)

// magicHeaderByte fills the magic report header: command, index, length.
// Once complete the payload is handed to the registered sink.
func (e *Engine) magicHeaderByte(c byte, state LinkState) {
	switch e.magicCount {
	case 0:
		e.magic.cmd = c
	case 1:
		e.magic.index = c
	case 2:
		e.magic.length = c
	}
	e.magicCount++
	if e.magicCount < 3 {
		return
	}

	sink := e.byteSink
	if state == ReceivingMagicDoubleBytes {
		sink = e.doubleSink
	}
	e.log.Debugf("Magic report cmd=0x%02x index=%d length=%d", e.magic.cmd, e.magic.index, e.magic.length)
	sink(e, e.magic.index, int(e.magic.length))

	// The payload shape is up to the sink, so the checksum can not be verified
	if e.err == nil {
		_, _ = e.NextByte()
	}
	e.cfg.Metrics.frame(e.cfg.Name, "magic")
	e.pop()
}

// NextByte reads one byte of a magic payload. It waits for the byte at most
// the configured timeout and records ErrTimeout if none arrives.
func (e *Engine) NextByte() (byte, error) {
	deadline := e.t.Millis() + e.timeoutMillis()
	for {
		if e.t.Available() > 0 {
			c, err := e.t.ReadByte()
			if err == nil {
				return c, nil
			}
			if !errors.Is(err, ErrNoCharacter) {
				err = fmt.Errorf("genie: read failed: %w", err)
				e.handleError(err)
				return 0, err
			}
		}
		if e.t.Millis() >= deadline {
			e.log.Warnf("Timed out waiting for magic payload")
			e.handleError(ErrTimeout)
			return 0, ErrTimeout
		}
		e.pace()
	}
}

// NextDoubleByte reads a big endian 16bit unit of a magic payload
func (e *Engine) NextDoubleByte() (uint16, error) {
	hi, err := e.NextByte()
	if err != nil {
		return 0, err
	}
	lo, err := e.NextByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// discardBytes is the sink used while none is registered. It sinks length-1
// units, the checksum read by the engine makes up the rest.
func discardBytes(e *Engine, index byte, length int) {
	for i := 1; i < length; i++ {
		if _, err := e.NextByte(); err != nil {
			return
		}
	}
}

func discardDoubleBytes(e *Engine, index byte, length int) {
	for i := 1; i < length; i++ {
		if _, err := e.NextDoubleByte(); err != nil {
			return
		}
	}
}
