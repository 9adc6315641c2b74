package observer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// AnalysisEvent represents an analysis lifecycle event. It never carries the
// credential or the image.
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Model          string                 `json:"model,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorType      string                 `json:"error_type,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Detections     int                    `json:"detections,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when analysis begins
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when detections were produced
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when the outcome is an error entry
	AnalysisFailed EventType = "analysis_failed"
	// AnalysisRejected when a session already has an analysis in flight
	AnalysisRejected EventType = "analysis_rejected"
	// ImageIngested when the upload was decoded and bounded
	ImageIngested EventType = "image_ingested"
	// ImageIngestFailed when the upload could not be decoded
	ImageIngestFailed EventType = "image_ingest_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"model":           event.Model,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}

	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_type"] = event.ErrorType
	}
	if event.Detections > 0 {
		fields["detections"] = event.Detections
	}

	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Info("Image analysis started")
	case AnalysisCompleted:
		entry.Info("Image analysis completed")
	case AnalysisFailed:
		entry.Error("Image analysis failed")
	case AnalysisRejected:
		entry.Warn("Image analysis rejected, another analysis is in flight")
	case ImageIngested:
		entry.Debug("Image ingested")
	case ImageIngestFailed:
		entry.Warn("Image ingest failed")
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver exports analysis events as Prometheus metrics and keeps
// a small in-process summary for the health endpoint.
type MetricsObserver struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge

	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	rejectedAnalyses    int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a metrics observer with its own registry
func NewMetricsObserver() *MetricsObserver {
	o := &MetricsObserver{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vision_lens_analysis_events_total",
				Help: "Analysis lifecycle events by type and error type.",
			},
			[]string{"event", "error_type"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vision_lens_analysis_duration_seconds",
				Help:    "Time from ingest to rendered outcome.",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"model", "outcome"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vision_lens_analyses_in_flight",
			Help: "Analyses currently waiting on the vision API.",
		}),
	}
	o.registry.MustRegister(
		o.events, o.duration, o.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.events.WithLabelValues(string(event.EventType), event.ErrorType).Inc()

	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
		o.inFlight.Inc()
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
		o.inFlight.Dec()
		o.duration.WithLabelValues(event.Model, "success").Observe(event.ProcessingTime.Seconds())
	case AnalysisFailed:
		o.failedAnalyses++
		o.inFlight.Dec()
		o.duration.WithLabelValues(event.Model, "failure").Observe(event.ProcessingTime.Seconds())
	case AnalysisRejected:
		o.rejectedAnalyses++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Registry returns the registry holding the analysis metrics
func (o *MetricsObserver) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the registry in the Prometheus exposition format
func (o *MetricsObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulAnalyses > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulAnalyses)
	}

	return map[string]interface{}{
		"total_analyses":      o.totalAnalyses,
		"successful_analyses": o.successfulAnalyses,
		"failed_analyses":     o.failedAnalyses,
		"rejected_analyses":   o.rejectedAnalyses,
		"avg_processing_time": avgProcessingTime.String(),
	}
}

// eventQueueSize bounds events waiting for delivery before publishers block
const eventQueueSize = 1024

type queuedEvent struct {
	ctx   context.Context
	event AnalysisEvent
}

// EventPublisher implements the Subject interface. Events are delivered off
// the request path by a single dispatcher, in publish order, to each
// observer in subscription order.
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer

	start sync.Once
	queue chan queuedEvent
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		queue:     make(chan queuedEvent, eventQueueSize),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers queues an event for delivery and returns without waiting
// for observers.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.start.Do(func() {
		go p.dispatch()
	})

	// the request context is cancelled once the response is written
	p.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}
}

func (p *EventPublisher) dispatch() {
	for qe := range p.queue {
		p.mu.RLock()
		observers := make([]Observer, len(p.observers))
		copy(observers, p.observers)
		p.mu.RUnlock()

		for _, obs := range observers {
			deliver(obs, qe)
		}
	}
}

func deliver(obs Observer, qe queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(qe.ctx, qe.event)
}
