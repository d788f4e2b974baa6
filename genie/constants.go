package genie

import (
	"fmt"
	"strconv"
)

// Command bytes of the Genie serial protocol
const (
	ReadObj           byte = 0x00 // Request the value of an object, answered by a ReportObj frame
	WriteObj          byte = 0x01 // Write a 16bit value to an object
	WriteStr          byte = 0x02 // Write an ASCII string to a string object
	WriteStrU         byte = 0x03 // Write a 16bit (Unicode) string to a string object
	WriteContrast     byte = 0x04 // Set display contrast/backlight
	ReportObj         byte = 0x05 // Reply to a ReadObj request
	ReportEvent       byte = 0x07 // Unsolicited event sent by the display
	WriteMagicBytes   byte = 0x08 // Write a byte array to a magic object
	WriteMagicDBytes  byte = 0x09 // Write a 16bit array to a magic object
	ReportMagicBytes  byte = 0x0a // Variable length byte report from a magic object
	ReportMagicDBytes byte = 0x0b // Variable length 16bit report from a magic object
	ACK               byte = 0x06 // Command accepted
	NAK               byte = 0x15 // Command rejected
)

// FrameSize is the length of a report or event frame including its checksum
const FrameSize = 6

// MaxPayload is the maximum number of units in a string or magic payload
const MaxPayload = 255

// ObjectType identifies the kind of widget a frame refers to
type ObjectType byte

const (
	DipSwitch ObjectType = iota
	Knob
	RockerSwitch
	RotarySwitch
	Slider
	Trackbar
	WinButton
	AngularMeter
	CoolGauge
	CustomDigits
	Form
	Gauge
	Image
	Keyboard
	Led
	LedDigits
	Meter
	Strings
	Thermometer
	UserLed
	Video
	StaticText
	Sound
	Timer
	Spectrum
	Scope
	Tank
	UserImages
	PinOutput
	PinInput
	FourDButton
	AniButton
	ColorPicker
	UserButton
)

var objectTypeNames = [...]string{
	"DipSwitch", "Knob", "RockerSwitch", "RotarySwitch", "Slider", "Trackbar",
	"WinButton", "AngularMeter", "CoolGauge", "CustomDigits", "Form", "Gauge",
	"Image", "Keyboard", "Led", "LedDigits", "Meter", "Strings", "Thermometer",
	"UserLed", "Video", "StaticText", "Sound", "Timer", "Spectrum", "Scope",
	"Tank", "UserImages", "PinOutput", "PinInput", "FourDButton", "AniButton",
	"ColorPicker", "UserButton",
}

func (o ObjectType) String() string {
	if int(o) < len(objectTypeNames) {
		return objectTypeNames[o]
	}
	return fmt.Sprintf("ObjectType(%d)", byte(o))
}

// ParseObjectType accepts either a known object name (case sensitive) or a decimal number
func ParseObjectType(s string) (ObjectType, error) {
	for i, n := range objectTypeNames {
		if n == s {
			return ObjectType(i), nil
		}
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown object type %q", s)
	}
	return ObjectType(v), nil
}
