package genie

import "fmt"

// Frame is a 6 byte report or event frame as sent by the display:
// command, object type, index, data MSB, data LSB, checksum.
type Frame [FrameSize]byte

// NewFrame builds a frame and fills in its checksum
func NewFrame(cmd byte, object ObjectType, index byte, data uint16) Frame {
	f := Frame{cmd, byte(object), index, byte(data >> 8), byte(data)}
	f[5] = Checksum(f[:5])
	return f
}

// Checksum computes the running XOR used by all Genie frames
func Checksum(b []byte) byte {
	cs := byte(0)
	for i := 0; i < len(b); i++ {
		cs ^= b[i]
	}
	return cs
}

func (f Frame) Command() byte      { return f[0] }
func (f Frame) Object() ObjectType { return ObjectType(f[1]) }
func (f Frame) Index() byte        { return f[2] }

// Data returns the big endian 16bit value carried by the frame
func (f Frame) Data() uint16 {
	return uint16(f[3])<<8 | uint16(f[4])
}

// Valid reports whether the XOR over all six bytes is zero
func (f Frame) Valid() bool {
	return Checksum(f[:]) == 0
}

// Is compares command, object type and index of the frame
func (f Frame) Is(cmd byte, object ObjectType, index byte) bool {
	return f[0] == cmd && f[1] == byte(object) && f[2] == index
}

func (f Frame) sameObject(o Frame) bool {
	return f[0] == o[0] && f[1] == o[1] && f[2] == o[2]
}

func (f Frame) String() string {
	return fmt.Sprintf("cmd=0x%02x object=%v index=%d data=%d", f[0], f.Object(), f[2], f.Data())
}
