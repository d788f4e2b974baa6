package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speters/genielink/genie"
	"github.com/speters/genielink/internal/journal"
	"github.com/speters/genielink/internal/link"
)

type fakeLink struct {
	err      error
	values   map[string]uint16
	strs     map[byte]string
	unicode  bool
	contrast byte
	magic    []byte
	magic16  []uint16
	resynced bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{values: map[string]uint16{}, strs: map[byte]string{}}
}

func key(o genie.ObjectType, i byte) string { return o.String() + "/" + strconv.Itoa(int(i)) }

func (f *fakeLink) Name() string { return "test" }

func (f *fakeLink) Status(ctx context.Context) (link.Status, error) {
	return link.Status{Name: "test", State: "Idle", Depth: 1}, f.err
}

func (f *fakeLink) Resync(ctx context.Context) error {
	f.resynced = true
	return f.err
}

func (f *fakeLink) Values() []link.Value {
	return []link.Value{{Object: genie.Led, Index: 0, Value: 1}}
}

func (f *fakeLink) ReadObject(ctx context.Context, o genie.ObjectType, i byte) (uint16, error) {
	return f.values[key(o, i)], f.err
}

func (f *fakeLink) WriteObject(ctx context.Context, o genie.ObjectType, i byte, v uint16) error {
	if f.err == nil {
		f.values[key(o, i)] = v
	}
	return f.err
}

func (f *fakeLink) WriteString(ctx context.Context, i byte, s string, unicode bool) error {
	f.strs[i] = s
	f.unicode = unicode
	return f.err
}

func (f *fakeLink) WriteContrast(ctx context.Context, v byte) error {
	f.contrast = v
	return f.err
}

func (f *fakeLink) WriteMagicBytes(ctx context.Context, i byte, p []byte) error {
	f.magic = p
	return f.err
}

func (f *fakeLink) WriteMagicDoubleBytes(ctx context.Context, i byte, p []uint16) error {
	f.magic16 = p
	return f.err
}

type fakeJournal struct {
	limit int
}

func (j *fakeJournal) Recent(ctx context.Context, limit int) ([]journal.Record, error) {
	j.limit = limit
	return []journal.Record{{Link: "test", Command: "event", Object: "WinButton", Value: 1}}, nil
}

func serve(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestVersion(t *testing.T) {
	s := &Server{Link: newFakeLink(), Version: "1.2.3", BuildDate: "today"}
	rec := serve(t, s, "GET", "/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"1.2.3","build_date":"today"}`, rec.Body.String())
}

func TestObjects(t *testing.T) {
	fl := newFakeLink()
	s := &Server{Link: fl}

	rec := serve(t, s, "POST", "/objects/Gauge/2", "500")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, s, "GET", "/objects/Gauge/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v objectValue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, objectValue{Object: "Gauge", Index: 2, Value: 500}, v)

	// numeric object types work too
	rec = serve(t, s, "GET", "/objects/11/2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, s, "GET", "/objects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"value": 1`)
}

func TestObjectBadRequests(t *testing.T) {
	s := &Server{Link: newFakeLink()}

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   int
	}{
		{"unknown object", "GET", "/objects/Teapot/0", "", http.StatusNotFound},
		{"index too big", "GET", "/objects/Led/300", "", http.StatusNotFound},
		{"not a number", "POST", "/objects/Led/0", `"on"`, http.StatusBadRequest},
		{"value too big", "POST", "/objects/Led/0", "70000", http.StatusBadRequest},
		{"magic byte too big", "POST", "/magic/0", "[1, 256]", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, s, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestLinkErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{genie.ErrNak, http.StatusBadGateway},
		{link.ErrNoReply, http.StatusBadGateway},
		{genie.ErrTimeout, http.StatusGatewayTimeout},
		{genie.ErrTooLong, http.StatusBadRequest},
		{genie.ErrNotASCII, http.StatusBadRequest},
		{genie.ErrShutdown, http.StatusServiceUnavailable},
		{link.ErrStopped, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			fl := newFakeLink()
			fl.err = tt.err
			rec := serve(t, &Server{Link: fl}, "POST", "/objects/Led/0", "1")
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.err.Error(), rec.Body.String())
		})
	}
}

func TestWrites(t *testing.T) {
	fl := newFakeLink()
	s := &Server{Link: fl}

	rec := serve(t, s, "POST", "/strings/3?unicode=true", `"grüße"`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "grüße", fl.strs[3])
	assert.True(t, fl.unicode)

	rec = serve(t, s, "POST", "/contrast", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, byte(1), fl.contrast)

	rec = serve(t, s, "POST", "/magic/0", "[1, 2, 255]")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte{1, 2, 255}, fl.magic)

	rec = serve(t, s, "POST", "/magic/0?double=1", "[4660, 65535]")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint16{0x1234, 0xffff}, fl.magic16)

	rec = serve(t, s, "POST", "/resync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fl.resynced)
}

func TestStatus(t *testing.T) {
	rec := serve(t, &Server{Link: newFakeLink()}, "GET", "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st link.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "Idle", st.State)
}

func TestEvents(t *testing.T) {
	rec := serve(t, &Server{Link: newFakeLink()}, "GET", "/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	j := &fakeJournal{}
	s := &Server{Link: newFakeLink(), Journal: j}
	rec = serve(t, s, "GET", "/events?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, j.limit)
	assert.Contains(t, rec.Body.String(), "WinButton")

	rec = serve(t, s, "GET", "/events?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := genie.NewMetrics(reg)
	m.ResyncTotal.WithLabelValues("test").Inc()

	rec := serve(t, &Server{Link: newFakeLink(), Gatherer: reg}, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "genie_resync_total")
}
