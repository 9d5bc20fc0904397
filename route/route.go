package route

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/trace"

	"github.com/honeycombio/flowmeter/config"
	"github.com/honeycombio/flowmeter/internal/health"
	"github.com/honeycombio/flowmeter/internal/otelutil"
	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/meter"
	"github.com/honeycombio/flowmeter/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Router struct {
	Config   config.Config      `inject:""`
	Logger   logger.Logger      `inject:""`
	Metrics  metrics.Metrics    `inject:"metrics"`
	Health   health.Reporter    `inject:""`
	Registry *meter.Registry    `inject:""`
	Smoother *meter.EMASmoother `inject:""`
	Tracer   trace.Tracer       `inject:"tracer"`

	// version is set on startup so that the router may answer HTTP requests
	// for the version
	versionStr string

	server *http.Server
	doneWG sync.WaitGroup
}

// eventBody is the optional POST body for an event; a missing or empty body
// counts a single tuple.
type eventBody struct {
	Count uint64 `json:"count"`
}

type eventResponse struct {
	Status int    `json:"status"`
	Stream string `json:"stream"`
	Count  uint64 `json:"count"`
}

type throughputResponse struct {
	Stream     string  `json:"stream"`
	Throughput float64 `json:"throughput"`
}

var routerMetrics = []metrics.Metadata{
	{Name: "router_event", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "Number of event requests handled"},
	{Name: "router_tuples", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "Number of tuples counted via the event endpoint"},
	{Name: "router_throughput_query", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "Number of throughput queries handled"},
	{Name: "router_dropped", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "Number of requests rejected with an error"},
}

func (r *Router) SetVersion(ver string) {
	r.versionStr = ver
}

// LnS spins up the Listen and Serve portion of the router.
func (r *Router) LnS() {
	for _, metric := range routerMetrics {
		r.Metrics.Register(metric)
	}

	muxxer := mux.NewRouter()

	muxxer.Use(r.setResponseHeaders)
	muxxer.Use(r.requestLogger)
	muxxer.Use(r.panicCatcher)

	// answer basic health checks locally
	muxxer.HandleFunc("/alive", r.alive).Name("local health")
	muxxer.HandleFunc("/ready", r.ready).Name("local readiness")
	muxxer.HandleFunc("/panic", r.panic).Name("intentional panic")
	muxxer.HandleFunc("/version", r.version).Name("report version info")

	apiMuxxer := muxxer.PathPrefix("/1/").Subrouter()

	// count tuples and read throughput back out
	apiMuxxer.HandleFunc("/events/{streamName}", r.event).Methods("POST").Name("event")
	apiMuxxer.HandleFunc("/throughput/{streamName}", r.throughput).Methods("GET").Name("throughput")

	listenAddr := r.Config.GetListenAddr()

	r.Logger.Info().Logf("Listening on %s", listenAddr)
	r.server = &http.Server{
		Addr:    listenAddr,
		Handler: muxxer,
	}

	r.doneWG.Add(1)
	go func() {
		defer r.doneWG.Done()

		err := r.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.Error().Logf("failed to ListenAndServe: %s", err)
		}
	}()
}

func (r *Router) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if r.server != nil {
		if err := r.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	r.doneWG.Wait()
	return nil
}

func (r *Router) alive(w http.ResponseWriter, req *http.Request) {
	if !r.Health.IsAlive() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"source":"flowmeter","alive":"no"}`))
		return
	}
	r.Logger.Debug().Logf("answered /alive check")
	w.Write([]byte(`{"source":"flowmeter","alive":"yes"}`))
}

func (r *Router) ready(w http.ResponseWriter, req *http.Request) {
	if !r.Health.IsReady() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"source":"flowmeter","ready":"no"}`))
		return
	}
	w.Write([]byte(`{"source":"flowmeter","ready":"yes"}`))
}

func (r *Router) panic(w http.ResponseWriter, req *http.Request) {
	panic("panic? never!")
}

func (r *Router) version(w http.ResponseWriter, req *http.Request) {
	w.Write([]byte(fmt.Sprintf(`{"source":"flowmeter","version":"%s"}`, r.versionStr)))
}

// event counts tuples against the named stream. The body is optional; when
// present it is JSON with a "count" field so a client can batch many tuples
// into one request.
func (r *Router) event(w http.ResponseWriter, req *http.Request) {
	_, span := otelutil.StartSpan(req.Context(), r.Tracer, "event")
	defer span.End()

	streamName := mux.Vars(req)["streamName"]
	r.Metrics.Increment("router_event")

	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.Metrics.Increment("router_dropped")
		r.handlerReturnWithError(w, ErrPostBody, err)
		return
	}

	count := uint64(1)
	if len(body) > 0 {
		var ev eventBody
		if err := json.Unmarshal(body, &ev); err != nil {
			r.Metrics.Increment("router_dropped")
			r.handlerReturnWithError(w, ErrJSONFailed, err)
			return
		}
		if ev.Count == 0 {
			r.Metrics.Increment("router_dropped")
			r.handlerReturnWithError(w, ErrInvalidCount, fmt.Errorf("got count %d for stream %s", ev.Count, streamName))
			return
		}
		count = ev.Count
	}

	m, err := r.Registry.Get(streamName)
	if err != nil {
		r.Metrics.Increment("router_dropped")
		r.handlerReturnWithError(w, ErrUnknownStream, err)
		return
	}

	for i := uint64(0); i < count; i++ {
		m.Tick()
	}
	r.Metrics.Count("router_tuples", count)
	otelutil.AddSpanFields(span, map[string]interface{}{
		"stream": streamName,
		"count":  count,
	})

	resp, err := json.Marshal(eventResponse{Status: http.StatusOK, Stream: streamName, Count: count})
	if err != nil {
		r.handlerReturnWithError(w, ErrJSONBuildFailed, err)
		return
	}
	w.Write(resp)
}

// throughput reports the smoothed cluster-wide throughput for the named
// stream, as maintained by the smoother from pubsub reports.
func (r *Router) throughput(w http.ResponseWriter, req *http.Request) {
	_, span := otelutil.StartSpan(req.Context(), r.Tracer, "throughput")
	defer span.End()

	streamName := mux.Vars(req)["streamName"]
	r.Metrics.Increment("router_throughput_query")

	value, ok := r.Smoother.SmoothedThroughput(streamName)
	if !ok {
		r.Metrics.Increment("router_dropped")
		r.handlerReturnWithError(w, ErrUnknownStream, fmt.Errorf("stream %s has no recent reports", streamName))
		return
	}

	otelutil.AddSpanField(span, "stream", streamName)
	resp, err := json.Marshal(throughputResponse{Stream: streamName, Throughput: value})
	if err != nil {
		r.handlerReturnWithError(w, ErrJSONBuildFailed, err)
		return
	}
	w.Write(resp)
}
