// Load test driver for the ticketmaster reservation API.
//
// Usage:
//
//	loadtest -profile rush -endpoints http://localhost:8080 -tickets 100
//	loadtest -profile stress -rate 3000 -event 42 -sections 20
//
// Flags override environment (ENDPOINTS, EVENT_ID). With -event 0 a fresh
// fixture is provisioned before the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/huangken8511429/ticketmaster-loadtest/internal/fixture"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/metrics"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/protocol"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/report"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/runner"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/scenario"
	"github.com/huangken8511429/ticketmaster-loadtest/internal/verify"
)

type options struct {
	endpoints string
	eventID   int64

	profileName string
	vus         int
	iterations  int
	peakRPS     int

	sections  int
	tickets   int
	settle    time.Duration
	seatCount int

	pollMode        string
	pollInterval    time.Duration
	pollAttempts    int
	longPollTimeout time.Duration
	submitOnly      bool

	clientPoolSize int
	useHTTP2       bool

	maxP95         time.Duration
	maxP99         time.Duration
	minSuccessRate float64
	maxFailureRate float64

	metricsAddr string
	jsonOut     bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.endpoints, "endpoints", "", "comma-separated base URLs (overrides ENDPOINTS env var)")
	flag.Int64Var(&o.eventID, "event", 0, "existing event id; 0 provisions a fresh fixture (overrides EVENT_ID env var)")

	flag.StringVar(&o.profileName, "profile", "rush", "traffic profile: smoke, rush, stress, rampup, saturation")
	flag.IntVar(&o.vus, "vus", 50, "virtual users (rush, saturation)")
	flag.IntVar(&o.iterations, "iterations", 50, "total iterations (rush)")
	flag.IntVar(&o.peakRPS, "rate", 3000, "peak arrival rate per second (stress)")

	flag.IntVar(&o.sections, "sections", 0, "provision an event with this many sections (0 = flat tickets)")
	flag.IntVar(&o.tickets, "tickets", 100, "flat ticket count when provisioning without sections")
	flag.DurationVar(&o.settle, "settle", 3*time.Second, "wait after provisioning for service materialization")
	flag.IntVar(&o.seatCount, "seat-count", 2, "seats requested per reservation")

	flag.StringVar(&o.pollMode, "poll", "long", "resolution discipline: long or short")
	flag.DurationVar(&o.pollInterval, "poll-interval", 500*time.Millisecond, "interval between short polls")
	flag.IntVar(&o.pollAttempts, "poll-attempts", 20, "max short-poll attempts")
	flag.DurationVar(&o.longPollTimeout, "long-poll-timeout", 35*time.Second, "client budget for the single long poll (must exceed the server hold time)")
	flag.BoolVar(&o.submitOnly, "submit-only", false, "fire submissions without resolving them")

	flag.IntVar(&o.clientPoolSize, "clients", 4, "HTTP client pool size")
	flag.BoolVar(&o.useHTTP2, "http2", false, "enable HTTP/2 transport")

	flag.DurationVar(&o.maxP95, "max-p95", 5*time.Second, "fail if end-to-end p95 exceeds this (0 disables)")
	flag.DurationVar(&o.maxP99, "max-p99", 10*time.Second, "fail if end-to-end p99 exceeds this (0 disables)")
	flag.Float64Var(&o.minSuccessRate, "min-success-rate", 0, "fail if success rate drops below this (0 disables)")
	flag.Float64Var(&o.maxFailureRate, "max-failure-rate", 0, "fail if submit-failed+timeout rate exceeds this (0 disables)")

	flag.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	flag.BoolVar(&o.jsonOut, "json", false, "emit the summary as JSON instead of text")
	flag.Parse()

	if o.endpoints == "" {
		o.endpoints = os.Getenv("ENDPOINTS")
	}
	if o.endpoints == "" {
		o.endpoints = "http://localhost:8080"
	}
	if o.eventID == 0 {
		if env := os.Getenv("EVENT_ID"); env != "" {
			if id, err := strconv.ParseInt(env, 10, 64); err == nil {
				o.eventID = id
			}
		}
	}
	return o
}

func buildProfile(o options) (scenario.Profile, error) {
	switch o.profileName {
	case "smoke":
		return scenario.Smoke(), nil
	case "rush":
		return scenario.Rush(o.vus, o.iterations), nil
	case "stress":
		return scenario.Stress(o.peakRPS), nil
	case "rampup":
		return scenario.RampUp(), nil
	case "saturation":
		total := o.tickets
		if o.sections > 0 {
			total = o.sections * 400 // 20 rows x 20 seats per section
		}
		return scenario.Saturation(o.vus, total, o.seatCount), nil
	default:
		return scenario.Profile{}, fmt.Errorf("unknown profile %q", o.profileName)
	}
}

func buildResolver(o options) protocol.Resolver {
	if o.pollMode == "short" {
		return protocol.ShortPoll{Interval: o.pollInterval, MaxAttempts: o.pollAttempts}
	}
	return protocol.LongPoll{Timeout: o.longPollTimeout}
}

func main() {
	o := parseFlags()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	endpoints, err := protocol.ParseEndpoints(o.endpoints)
	if err != nil {
		logger.Fatal("bad endpoint list", zap.Error(err))
	}
	profile, err := buildProfile(o)
	if err != nil {
		logger.Fatal("bad profile", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Setup calls and verification go to the first instance; the run itself
	// fans out across all of them.
	setupClient := &http.Client{Timeout: 30 * time.Second}
	primary := endpoints[0]

	fix := fixture.Fixture{EventID: o.eventID}
	if o.eventID == 0 {
		prov := fixture.NewProvisioner(primary, setupClient, o.settle, logger)
		if o.sections > 0 {
			fix, err = prov.ProvisionSections(ctx, o.sections)
		} else {
			fix, err = prov.ProvisionTickets(ctx, o.tickets)
		}
		if err != nil {
			// Fatal by design: no attempt is meaningful without a fixture.
			logger.Fatal("provisioning failed", zap.Error(err))
		}
	}

	agg := metrics.NewAggregator()
	if o.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		agg.AttachPrometheus(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(o.metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	pool := protocol.NewClientPool(o.clientPoolSize, 60*time.Second, o.useHTTP2)
	client := protocol.NewClient(protocol.Config{
		Endpoints:  endpoints,
		EventID:    fix.EventID,
		Sections:   fix.Sections,
		SeatCount:  o.seatCount,
		SubmitOnly: o.submitOnly,
	}, pool, buildResolver(o), logger)

	run, err := runner.New(profile, client.Run, agg, logger)
	if err != nil {
		logger.Fatal("invalid run configuration", zap.Error(err))
	}
	if err := run.Run(ctx); err != nil {
		logger.Warn("run interrupted", zap.Error(err))
	}

	snap := agg.Snapshot()
	thresholds := metrics.Thresholds{
		MaxP95EndToEnd: o.maxP95,
		MaxP99EndToEnd: o.maxP99,
		MinSuccessRate: o.minSuccessRate,
		MaxFailureRate: o.maxFailureRate,
	}
	violations := thresholds.Evaluate(snap)

	// Reconciliation runs strictly after the drain.
	var verification *verify.Report
	if !o.submitOnly {
		rep, err := verify.NewVerifier(primary, setupClient, logger).Verify(context.Background(), fix.EventID)
		if err != nil {
			logger.Error("verification unavailable", zap.Error(err))
		} else {
			verification = &rep
		}
	}

	summary := report.Build(uuid.NewString(), profile.Name, profile.PeakTarget(), snap, violations, verification)
	if o.jsonOut {
		out, err := summary.JSON()
		if err != nil {
			logger.Fatal("render summary", zap.Error(err))
		}
		fmt.Println(string(out))
	} else {
		fmt.Print(summary.Render())
	}

	if !summary.Passed {
		os.Exit(1)
	}
}
