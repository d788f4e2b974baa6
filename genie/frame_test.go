package genie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrame(t *testing.T) {
	f := NewFrame(ReportEvent, 5, 2, 42)
	assert.Equal(t, Frame{0x07, 0x05, 0x02, 0x00, 0x2a, 0x07 ^ 0x05 ^ 0x02 ^ 0x2a}, f)
	assert.True(t, f.Valid())
	assert.Equal(t, uint16(42), f.Data())
}

func TestFrameData(t *testing.T) {
	f := Frame{ReportObj, 0, 0, 0x12, 0x34}
	assert.Equal(t, uint16(0x1234), f.Data())
	assert.False(t, f.Valid())
	f[5] = Checksum(f[:5])
	assert.True(t, f.Valid())
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0), Checksum(nil))
	assert.Equal(t, byte(0xff), Checksum([]byte{0x0f, 0xf0}))
	assert.Equal(t, byte(0), Checksum([]byte{0x5a, 0x5a}))
}

func TestFrameIs(t *testing.T) {
	f := NewFrame(ReportEvent, Slider, 3, 0)
	assert.True(t, f.Is(ReportEvent, Slider, 3))
	assert.False(t, f.Is(ReportObj, Slider, 3))
	assert.False(t, f.Is(ReportEvent, Knob, 3))
	assert.False(t, f.Is(ReportEvent, Slider, 4))
}

func TestObjectType(t *testing.T) {
	assert.Equal(t, "Slider", Slider.String())
	assert.Equal(t, "UserButton", UserButton.String())
	assert.Equal(t, "ObjectType(200)", ObjectType(200).String())

	o, err := ParseObjectType("Gauge")
	require.NoError(t, err)
	assert.Equal(t, Gauge, o)

	o, err = ParseObjectType("14")
	require.NoError(t, err)
	assert.Equal(t, Led, o)

	_, err = ParseObjectType("gizmo")
	assert.Error(t, err)
	_, err = ParseObjectType("300")
	assert.Error(t, err)
}
