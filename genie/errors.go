package genie

import (
	"errors"
	"fmt"
)

// Errors recorded in the engine's last error slot
var (
	// ErrNoCharacter is not a failure, it signals that no byte was pending
	ErrNoCharacter   = errors.New("genie: no character available")
	ErrBadChecksum   = errors.New("genie: bad checksum")
	ErrNak           = errors.New("genie: command rejected by display (NAK)")
	ErrTimeout       = errors.New("genie: timeout")
	ErrQueueOverflow = errors.New("genie: event queue overflow")
	// ErrNoHandler is reserved
	ErrNoHandler      = errors.New("genie: no handler registered")
	ErrUnexpectedByte = errors.New("genie: unexpected byte")
	ErrTooLong        = errors.New("genie: payload exceeds 255 units")
	ErrNotASCII       = errors.New("genie: string is not ASCII, use WriteUnicode")
	ErrShutdown       = errors.New("genie: link shut down")
)

// ChecksumError carries the offending frame of a failed checksum verification
type ChecksumError struct {
	Frame    Frame
	Residual byte // XOR over all six bytes, zero for a valid frame
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("genie: bad checksum for frame '% x' (residual 0x%02x)", e.Frame[:], e.Residual)
}

func (e *ChecksumError) Unwrap() error { return ErrBadChecksum }

// UnexpectedByteError reports a byte that is not valid in the current link state
type UnexpectedByteError struct {
	State LinkState
	Byte  byte
}

func (e *UnexpectedByteError) Error() string {
	return fmt.Sprintf("genie: unexpected byte 0x%02x in state %v", e.Byte, e.State)
}

func (e *UnexpectedByteError) Unwrap() error { return ErrUnexpectedByte }

// isFatal reports whether err counts towards the fatal error threshold
func isFatal(err error) bool {
	return errors.Is(err, ErrBadChecksum) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrQueueOverflow)
}
