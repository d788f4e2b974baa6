package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/speters/genielink/genie"
	"github.com/speters/genielink/internal/api"
	"github.com/speters/genielink/internal/config"
	"github.com/speters/genielink/internal/journal"
	"github.com/speters/genielink/internal/link"
	"github.com/speters/genielink/internal/publish"
)

var cfgFile = flag.String("f", "", "configuration `file` (TOML)")
var connTo = flag.String("c", "", "connection string, use socket://[host]:[port] for TCP or [serialDevice] for direct serial connection")
var httpServe = flag.String("s", "", "start http server at [bindtohost][:]port")
var verbose = flag.Bool("v", false, "verbose logging")

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *cfgFile != "" {
		var err error
		// flags override the file, so validate only after applying them
		if cfg, err = config.Read(*cfgFile); err != nil {
			return cfg, err
		}
	}
	if *connTo != "" {
		cfg.Link.Device = *connTo
	}
	if *httpServe != "" {
		// accept :[portnum] as well as [portnum]
		if i, err := strconv.Atoi(*httpServe); err == nil {
			*httpServe = fmt.Sprintf(":%d", i)
		}
		cfg.HTTP.Listen = *httpServe
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func setupLogging(c config.LogConfig) {
	level, _ := log.ParseLevel(c.Level)
	log.SetLevel(level)
	if level >= log.DebugLevel {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}
	if c.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   true,
		}))
	}
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var subs []link.Subscriber
	var jrnl *journal.Journal
	if cfg.Journal.Path != "" {
		if jrnl, err = journal.Open(cfg.Journal.Path); err != nil {
			log.Fatalf("Can not open journal: %v", err)
		}
		defer jrnl.Close()
		subs = append(subs, jrnl)
	}
	if cfg.Redis.Addr != "" {
		pub, err := publish.New(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			log.Fatalf("Can not connect to redis: %v", err)
		}
		defer pub.Close()
		subs = append(subs, pub)
	}

	port, err := genie.Open(cfg.Link.Device, cfg.Link.Baud)
	if err != nil {
		log.Fatalf("Can not open link %s: %v", cfg.Link.Device, err)
	}
	defer port.Close()
	log.Infof("Connected to %s", cfg.Link.Device)

	engine := genie.New(port,
		genie.WithName(cfg.Link.Name),
		genie.WithMetrics(genie.NewMetrics(reg)),
		genie.WithTimeout(cfg.Link.Timeout),
		genie.WithQueueCapacity(cfg.Link.QueueCapacity),
		genie.WithMaxLinkStates(cfg.Link.MaxLinkStates),
		genie.WithMaxFatalErrors(cfg.Link.MaxFatalErrors),
		genie.WithPollRate(rate.Every(cfg.Link.PollInterval)),
	)
	runner := link.New(engine, cfg.Link.PollInterval, subs...)

	srv := &api.Server{
		Link:      runner,
		Gatherer:  reg,
		Version:   buildVersion,
		BuildDate: buildDate,
		Timeout:   5 * cfg.Link.Timeout,
	}
	if jrnl != nil {
		srv.Journal = jrnl
	}
	h := &http.Server{Addr: cfg.HTTP.Listen, Handler: srv.Router(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := h.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err)
			stop()
		}
	}()
	log.Infof("Serving http on %s", cfg.HTTP.Listen)

	go func() {
		select {
		case <-port.Done:
			log.Errorf("Link %s lost: %v", cfg.Link.Device, port.Err())
			stop()
		case <-ctx.Done():
		}
	}()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.Shutdown(shutdownCtx)
	log.Infof("Stopped")
}
