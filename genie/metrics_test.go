package genie

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	e, ft := newTestEngine(t, WithMetrics(m))

	a := NewFrame(ReportEvent, Slider, 0, 1)
	b := NewFrame(ReportEvent, Slider, 0, 2)
	bad := NewFrame(ReportEvent, Slider, 1, 2)
	bad[5] ^= 1
	ft.feed(a[:]...)
	ft.feed(b[:]...)
	ft.feed(bad[:]...)
	pumpN(e, 3*FrameSize)

	require.NoError(t, e.WriteObject(Led, 0, 1))
	ft.feed(NAK)
	e.Pump(false)
	e.Resync()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("test", "event")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CoalescedTotal.WithLabelValues("test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("test", "checksum")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("test", "nak")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResyncTotal.WithLabelValues("test")))
	assert.Equal(t, float64(FrameSize), testutil.ToFloat64(m.BytesWritten.WithLabelValues("test")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueueDepth.WithLabelValues("test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkDepth.WithLabelValues("test")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.frame("x", "event")
		m.failed("x", ErrNak)
		m.resync("x")
		m.written("x", 1)
		m.coalesced("x")
		m.depths("x", 1, 1)
	})
}
