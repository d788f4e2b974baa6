package genie

import (
	"errors"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type timedBytes struct {
	at int64
	b  []byte
}

// fakeTransport is an in-memory display with a manual millisecond clock.
// Every call to Millis advances the clock by tick.
type fakeTransport struct {
	rx       []byte
	tx       []byte
	later    []timedBytes
	now      int64
	tick     int64
	writeErr error
}

func (f *fakeTransport) release() {
	for len(f.later) > 0 && f.later[0].at <= f.now {
		f.rx = append(f.rx, f.later[0].b...)
		f.later = f.later[1:]
	}
}

func (f *fakeTransport) Available() int {
	f.release()
	return len(f.rx)
}

func (f *fakeTransport) ReadByte() (byte, error) {
	f.release()
	if len(f.rx) == 0 {
		return 0, ErrNoCharacter
	}
	c := f.rx[0]
	f.rx = f.rx[1:]
	return c, nil
}

func (f *fakeTransport) WriteByte(c byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.tx = append(f.tx, c)
	return nil
}

func (f *fakeTransport) Millis() int64 {
	f.now += f.tick
	return f.now
}

func (f *fakeTransport) feed(b ...byte) {
	f.rx = append(f.rx, b...)
}

// feedAt makes b available once the clock reached at
func (f *fakeTransport) feedAt(at int64, b ...byte) {
	f.later = append(f.later, timedBytes{at: at, b: b})
}

func quietLogger() *log.Logger {
	l := log.New()
	l.Out = io.Discard
	return l
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	base := []Option{
		WithName("test"),
		WithLogger(quietLogger()),
		WithPollRate(rate.Inf),
		WithTimeout(20 * time.Millisecond),
	}
	return New(ft, append(base, opts...)...), ft
}

// pumpN pumps n times and returns the result of the last pump
func pumpN(e *Engine, n int) PumpResult {
	var r PumpResult
	for i := 0; i < n; i++ {
		r = e.Pump(false)
	}
	return r
}

var errBroken = errors.New("broken wire")
