package genie

import (
	"strconv"
	"strings"
)

// WriteInt writes n as text in the given base (2 to 36, anything else means 10)
func (e *Engine) WriteInt(index byte, n int64, base int) error {
	return e.WriteString(index, strings.ToUpper(strconv.FormatInt(n, normBase(base))))
}

// WriteUint writes n as text in the given base (2 to 36, anything else means 10)
func (e *Engine) WriteUint(index byte, n uint64, base int) error {
	return e.WriteString(index, strings.ToUpper(strconv.FormatUint(n, normBase(base))))
}

// WriteFloat writes f with the given number of decimals, 2 if digits is negative
func (e *Engine) WriteFloat(index byte, f float64, digits int) error {
	if digits < 0 {
		digits = 2
	}
	return e.WriteString(index, strconv.FormatFloat(f, 'f', digits, 64))
}

func normBase(base int) int {
	if base < 2 || base > 36 {
		return 10
	}
	return base
}
