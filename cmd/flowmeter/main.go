package main

import (
	"fmt"
	"os"

	"github.com/facebookgo/inject"
	"github.com/facebookgo/startstop"
	flag "github.com/jessevdk/go-flags"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/honeycombio/flowmeter/app"
	"github.com/honeycombio/flowmeter/config"
	"github.com/honeycombio/flowmeter/internal/health"
	"github.com/honeycombio/flowmeter/internal/otelutil"
	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/meter"
	"github.com/honeycombio/flowmeter/metrics"
	"github.com/honeycombio/flowmeter/pubsub"
	"github.com/honeycombio/flowmeter/route"
)

// set by the build.
var BuildID string
var version string

type Options struct {
	ConfigFile string `short:"c" long:"config" description:"Path to config file" default:"/etc/flowmeter/flowmeter.yaml"`
	Version    bool   `short:"v" long:"version" description:"Print version number and exit"`
}

func main() {
	var opts Options
	flagParser := flag.NewParser(&opts, flag.Default)
	if extraArgs, err := flagParser.Parse(); err != nil || len(extraArgs) != 0 {
		fmt.Println("command line parsing error - call with --help for usage")
		os.Exit(1)
	}

	if BuildID == "" {
		version = "dev"
	} else {
		version = "0." + BuildID
	}

	if opts.Version {
		fmt.Println("Version: " + version)
		os.Exit(0)
	}

	c := &config.FileConfig{Path: opts.ConfigFile}
	if err := c.Start(); err != nil {
		fmt.Printf("unable to load config: %v\n", err)
		os.Exit(1)
	}

	a := app.App{}

	// get desired implementation for each dependency to inject
	lgr, err := logger.GetLoggerImplementation(c)
	if err != nil {
		fmt.Printf("unable to set up logger: %v\n", err)
		os.Exit(1)
	}
	metricsr, err := metrics.GetMetricsImplementation(c)
	if err != nil {
		fmt.Printf("unable to set up metrics: %v\n", err)
		os.Exit(1)
	}
	pubsubber, err := pubsub.GetPubSubImplementation(c)
	if err != nil {
		fmt.Printf("unable to set up pubsub: %v\n", err)
		os.Exit(1)
	}

	logLevel := c.GetLoggerLevel()
	if err := lgr.SetLevel(logLevel.String()); err != nil {
		fmt.Printf("unable to set logging level: %v\n", err)
		os.Exit(1)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	tracer, shutdownTracing := otelutil.SetupTracing(c.GetOTelTracingConfig(), "flowmeter", version)
	defer shutdownTracing()

	// every report fans out to the log, the metrics system, and the peer
	// report topic
	loggerSink := &meter.LoggerSink{}
	metricsSink := &meter.MetricsSink{}
	pubsubSink := &meter.PubSubSink{Host: hostname}
	reportSink := &meter.MultiSink{Sinks: []meter.ReportSink{loggerSink, metricsSink, pubsubSink}}

	var g inject.Graph
	err = g.Provide(
		&inject.Object{Value: c},
		&inject.Object{Value: lgr},
		&inject.Object{Value: metricsr, Name: "metrics"},
		&inject.Object{Value: pubsubber},
		&inject.Object{Value: tracer, Name: "tracer"},
		&inject.Object{Value: clockwork.NewRealClock()},
		&inject.Object{Value: loggerSink},
		&inject.Object{Value: metricsSink},
		&inject.Object{Value: pubsubSink},
		&inject.Object{Value: reportSink, Name: "reportSink"},
		&inject.Object{Value: &health.Health{}},
		&inject.Object{Value: &meter.Registry{}},
		&inject.Object{Value: &meter.EMASmoother{}},
		&inject.Object{Value: &route.Router{}},
		&inject.Object{Value: version, Name: "version"},
		&inject.Object{Value: &a},
	)
	if err != nil {
		fmt.Printf("failed to provide injection graph. error: %+v\n", err)
		os.Exit(1)
	}
	if err := g.Populate(); err != nil {
		fmt.Printf("failed to populate injection graph. error: %+v\n", err)
		os.Exit(1)
	}

	// the logger provided to startstop must be valid before any service is
	// started, meaning it can't rely on injected configs. make a custom logger
	// just for this step
	ststLogger := logrus.New()
	level, _ := logrus.ParseLevel(logLevel.String())
	ststLogger.SetLevel(level)

	defer startstop.Stop(g.Objects(), ststLogger)
	if err := startstop.Start(g.Objects(), ststLogger); err != nil {
		fmt.Printf("failed to start injected dependencies. error: %+v\n", err)
		os.Exit(1)
	}

	// block until a signal tells us to exit; the deferred startstop.Stop then
	// winds everything down in dependency order
	a.WaitForShutdown()
}
