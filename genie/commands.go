package genie

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// prepareCmd builds a command frame with its trailing XOR checksum
func prepareCmd(cmd byte, fields ...byte) []byte {
	b := make([]byte, 0, len(fields)+2)
	b = append(b, cmd)
	b = append(b, fields...)
	return append(b, Checksum(b))
}

// preparePayload builds a string or magic command: command, index, unit count, payload
func preparePayload(cmd byte, index byte, units int, payload []byte) []byte {
	b := make([]byte, 0, len(payload)+4)
	b = append(b, cmd, index, byte(units))
	b = append(b, payload...)
	return append(b, Checksum(b))
}

// send waits for the link to settle, transmits b and enters next.
// A display that never answered the previous command does not block the next one.
func (e *Engine) send(b []byte, next LinkState) error {
	if e.stack.current() == Shutdown {
		e.err = ErrShutdown
		return ErrShutdown
	}
	if err := e.WaitForIdle(); err != nil {
		e.log.Warnf("Link not idle (%v), sending anyway", e.stack.current())
	}
	e.err = nil

	for _, c := range b {
		if err := e.t.WriteByte(c); err != nil {
			e.err = fmt.Errorf("genie: write failed: %w", err)
			return e.err
		}
	}
	if f, ok := e.t.(flusher); ok {
		if err := f.Flush(); err != nil {
			e.err = fmt.Errorf("genie: write failed: %w", err)
			return e.err
		}
	}
	e.log.Debugf("Write b='%# x'", b)
	e.cfg.Metrics.written(e.cfg.Name, len(b))

	e.push(next)
	return nil
}

// ReadObject requests the value of an object. The reply is not awaited, it
// arrives as a ReportObj frame in the event queue.
func (e *Engine) ReadObject(object ObjectType, index byte) error {
	return e.send(prepareCmd(ReadObj, byte(object), index), WaitReportHeader)
}

// WriteObject writes a 16bit value to an object
func (e *Engine) WriteObject(object ObjectType, index byte, data uint16) error {
	return e.send(prepareCmd(WriteObj, byte(object), index, byte(data>>8), byte(data)), WaitAckOrNak)
}

// WriteContrast sets the display contrast. Most displays accept 0 or 1, some 0 to 15.
func (e *Engine) WriteContrast(value byte) error {
	return e.send(prepareCmd(WriteContrast, value), WaitAckOrNak)
}

// WriteString writes an ASCII string of at most 255 bytes to a string object.
// Text with characters beyond ASCII needs WriteUnicode.
func (e *Engine) WriteString(index byte, s string) error {
	if len(s) > MaxPayload {
		e.err = ErrTooLong
		return ErrTooLong
	}
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			e.err = ErrNotASCII
			return ErrNotASCII
		}
	}
	return e.send(preparePayload(WriteStr, index, len(s), []byte(s)), WaitAckOrNak)
}

// WriteUnicode writes s as 16bit units (UTF-16, big endian) to a string object
func (e *Engine) WriteUnicode(index byte, s string) error {
	units := utf16.Encode([]rune(s))
	if len(units) > MaxPayload {
		e.err = ErrTooLong
		return ErrTooLong
	}
	return e.send(preparePayload(WriteStrU, index, len(units), doubleBytes(units)), WaitAckOrNak)
}

// WriteMagicBytes writes at most 255 bytes to a magic object
func (e *Engine) WriteMagicBytes(index byte, payload []byte) error {
	if len(payload) > MaxPayload {
		e.err = ErrTooLong
		return ErrTooLong
	}
	return e.send(preparePayload(WriteMagicBytes, index, len(payload), payload), WaitAckOrNak)
}

// WriteMagicDoubleBytes writes at most 255 16bit values to a magic object
func (e *Engine) WriteMagicDoubleBytes(index byte, payload []uint16) error {
	if len(payload) > MaxPayload {
		e.err = ErrTooLong
		return ErrTooLong
	}
	return e.send(preparePayload(WriteMagicDBytes, index, len(payload), doubleBytes(payload)), WaitAckOrNak)
}

func doubleBytes(units []uint16) []byte {
	b := make([]byte, 0, 2*len(units))
	for _, u := range units {
		b = append(b, byte(u>>8), byte(u))
	}
	return b
}
