package genie

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors of one or more links, labelled by link name.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FramesTotal    *prometheus.CounterVec // labels: link, kind=report|event|magic
	ErrorsTotal    *prometheus.CounterVec // labels: link, error
	ResyncTotal    *prometheus.CounterVec // labels: link
	BytesWritten   *prometheus.CounterVec // labels: link
	CoalescedTotal *prometheus.CounterVec // labels: link
	QueueDepth     *prometheus.GaugeVec   // labels: link
	LinkDepth      *prometheus.GaugeVec   // labels: link
}

// NewMetrics registers and returns the link metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genie_frames_received_total",
			Help: "Frames received from the display.",
		}, []string{"link", "kind"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genie_errors_total",
			Help: "Link errors by kind.",
		}, []string{"link", "error"}),
		ResyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genie_resync_total",
			Help: "Link resynchronizations.",
		}, []string{"link"}),
		BytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genie_bytes_written_total",
			Help: "Bytes written to the display.",
		}, []string{"link"}),
		CoalescedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genie_frames_coalesced_total",
			Help: "Frames merged into an already queued frame of the same object.",
		}, []string{"link"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "genie_event_queue_depth",
			Help: "Frames waiting in the event queue.",
		}, []string{"link"}),
		LinkDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "genie_link_state_depth",
			Help: "Depth of the link state stack.",
		}, []string{"link"}),
	}
	reg.MustRegister(m.FramesTotal, m.ErrorsTotal, m.ResyncTotal, m.BytesWritten, m.CoalescedTotal, m.QueueDepth, m.LinkDepth)
	return m
}

func (m *Metrics) frame(link, kind string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(link, kind).Inc()
}

func (m *Metrics) failed(link string, err error) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(link, errorLabel(err)).Inc()
}

func (m *Metrics) resync(link string) {
	if m == nil {
		return
	}
	m.ResyncTotal.WithLabelValues(link).Inc()
}

func (m *Metrics) written(link string, n int) {
	if m == nil {
		return
	}
	m.BytesWritten.WithLabelValues(link).Add(float64(n))
}

func (m *Metrics) coalesced(link string) {
	if m == nil {
		return
	}
	m.CoalescedTotal.WithLabelValues(link).Inc()
}

func (m *Metrics) depths(link string, queue, states int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(link).Set(float64(queue))
	m.LinkDepth.WithLabelValues(link).Set(float64(states))
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrBadChecksum):
		return "checksum"
	case errors.Is(err, ErrNak):
		return "nak"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrQueueOverflow):
		return "overflow"
	case errors.Is(err, ErrUnexpectedByte):
		return "framing"
	default:
		return "other"
	}
}
