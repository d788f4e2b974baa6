// Package api serves a display link over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/speters/genielink/genie"
	"github.com/speters/genielink/internal/journal"
	"github.com/speters/genielink/internal/link"
)

// Link is the part of link.Runner the API uses
type Link interface {
	Name() string
	Status(ctx context.Context) (link.Status, error)
	Resync(ctx context.Context) error
	Values() []link.Value
	ReadObject(ctx context.Context, object genie.ObjectType, index byte) (uint16, error)
	WriteObject(ctx context.Context, object genie.ObjectType, index byte, value uint16) error
	WriteString(ctx context.Context, index byte, s string, unicode bool) error
	WriteContrast(ctx context.Context, value byte) error
	WriteMagicBytes(ctx context.Context, index byte, payload []byte) error
	WriteMagicDoubleBytes(ctx context.Context, index byte, payload []uint16) error
}

// Journal lists stored frames
type Journal interface {
	Recent(ctx context.Context, limit int) ([]journal.Record, error)
}

// Server holds what the handlers need
type Server struct {
	Link      Link
	Journal   Journal // nil when the journal is disabled
	Gatherer  prometheus.Gatherer
	Version   string
	BuildDate string
	Timeout   time.Duration // per request link timeout
}

type objectValue struct {
	Object string `json:"object"`
	Index  uint8  `json:"index"`
	Value  uint16 `json:"value"`
}

// Router returns the routes of s
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/version", s.versionInfo).Methods("GET")
	router.HandleFunc("/status", s.getStatus).Methods("GET")
	router.HandleFunc("/resync", s.resync).Methods("POST")
	router.HandleFunc("/objects", s.getObjects).Methods("GET")
	router.HandleFunc("/objects/{object}/{index:[0-9]+}", s.getObject).Methods("GET")
	router.HandleFunc("/objects/{object}/{index:[0-9]+}", s.setObject).Methods("POST")
	router.HandleFunc("/strings/{index:[0-9]+}", s.setString).Methods("POST")
	router.HandleFunc("/contrast", s.setContrast).Methods("POST")
	router.HandleFunc("/magic/{index:[0-9]+}", s.setMagic).Methods("POST")
	router.HandleFunc("/events", s.getEvents).Methods("GET")

	g := s.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	router.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods("GET")

	return router
}

func (s *Server) context(r *http.Request) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.Timeout)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	e.Encode(v)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("\"OK\"\n"))
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(code)
	w.Write([]byte(err.Error()))
}

// linkError maps link failures onto status codes
func linkError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, genie.ErrTooLong), errors.Is(err, genie.ErrNotASCII):
		code = http.StatusBadRequest
	case errors.Is(err, genie.ErrNak), errors.Is(err, link.ErrNoReply):
		code = http.StatusBadGateway
	case errors.Is(err, genie.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	case errors.Is(err, genie.ErrShutdown), errors.Is(err, link.ErrStopped):
		code = http.StatusServiceUnavailable
	}
	log.Debugf("Request failed: %v", err)
	writeError(w, code, err)
}

func indexParam(r *http.Request) (byte, error) {
	i, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", mux.Vars(r)["index"])
	}
	return byte(i), nil
}

func objectParams(r *http.Request) (genie.ObjectType, byte, error) {
	o, err := genie.ParseObjectType(mux.Vars(r)["object"])
	if err != nil {
		return 0, 0, err
	}
	i, err := indexParam(r)
	return o, i, err
}

func (s *Server) versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	v := struct {
		Version   string `json:"version"`
		BuildDate string `json:"build_date"`
	}{Version: s.Version, BuildDate: s.BuildDate}
	j, _ := json.Marshal(v)
	w.Write(j)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	st, err := s.Link.Status(ctx)
	if err != nil {
		linkError(w, err)
		return
	}
	writeJSON(w, st)
}

func (s *Server) resync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r)
	defer cancel()
	if err := s.Link.Resync(ctx); err != nil {
		linkError(w, err)
		return
	}
	log.Infof("Resync of link %s requested", s.Link.Name())
	writeOK(w)
}

func (s *Server) getObjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Link.Values())
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
	o, i, err := objectParams(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	v, err := s.Link.ReadObject(ctx, o, i)
	if err != nil {
		linkError(w, err)
		return
	}
	writeJSON(w, objectValue{Object: o.String(), Index: i, Value: v})
}

func (s *Server) setObject(w http.ResponseWriter, r *http.Request) {
	o, i, err := objectParams(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var v uint16
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	if err := s.Link.WriteObject(ctx, o, i, v); err != nil {
		linkError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) setString(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var text string
	if err := json.NewDecoder(r.Body).Decode(&text); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	unicode, _ := strconv.ParseBool(r.URL.Query().Get("unicode"))

	ctx, cancel := s.context(r)
	defer cancel()
	if err := s.Link.WriteString(ctx, i, text, unicode); err != nil {
		linkError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) setContrast(w http.ResponseWriter, r *http.Request) {
	var v uint8
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := s.context(r)
	defer cancel()
	if err := s.Link.WriteContrast(ctx, v); err != nil {
		linkError(w, err)
		return
	}
	writeOK(w)
}

// setMagic takes a JSON array of numbers, sent as 16bit units with ?double=true
func (s *Server) setMagic(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	double, _ := strconv.ParseBool(r.URL.Query().Get("double"))

	ctx, cancel := s.context(r)
	defer cancel()

	var units []uint16
	if err := json.NewDecoder(r.Body).Decode(&units); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if double {
		err = s.Link.WriteMagicDoubleBytes(ctx, i, units)
	} else {
		b := make([]byte, len(units))
		for n, u := range units {
			if u > 0xff {
				writeError(w, http.StatusBadRequest, fmt.Errorf("byte %d out of range: %d", n, u))
				return
			}
			b[n] = byte(u)
		}
		err = s.Link.WriteMagicBytes(ctx, i, b)
	}
	if err != nil {
		linkError(w, err)
		return
	}
	writeOK(w)
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		writeError(w, http.StatusNotFound, errors.New("journal disabled"))
		return
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("bad limit %q", l))
			return
		}
		limit = n
	}
	recs, err := s.Journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, recs)
}
