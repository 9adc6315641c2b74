package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

type channelObserver struct {
	name   string
	events chan AnalysisEvent
}

func (o *channelObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.events <- event
}

func (o *channelObserver) GetObserverName() string {
	return o.name
}

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event AnalysisEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                        { return "panicking" }

func TestEventPublisher_Notify(t *testing.T) {
	p := NewEventPublisher()
	obs := &channelObserver{name: "chan", events: make(chan AnalysisEvent, 1)}
	p.Subscribe(panickingObserver{})
	p.Subscribe(obs)

	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisStarted, Model: "flash"})

	select {
	case ev := <-obs.events:
		if ev.EventType != AnalysisStarted || ev.Model != "flash" {
			t.Errorf("Unexpected event %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Error("Expected timestamp to be filled in")
		}
	case <-time.After(time.Second):
		t.Fatal("Observer was not notified")
	}

	p.Unsubscribe(obs)
	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: AnalysisCompleted})
	select {
	case ev := <-obs.events:
		t.Errorf("Expected no event after unsubscribe, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventPublisher_DeliversInOrder(t *testing.T) {
	p := NewEventPublisher()
	first := &channelObserver{name: "first", events: make(chan AnalysisEvent, 8)}
	second := &channelObserver{name: "second", events: make(chan AnalysisEvent, 8)}
	p.Subscribe(first)
	p.Subscribe(panickingObserver{})
	p.Subscribe(second)

	sequence := []EventType{AnalysisStarted, ImageIngestFailed, AnalysisFailed}
	for _, et := range sequence {
		p.NotifyObservers(context.Background(), AnalysisEvent{EventType: et})
	}

	for _, obs := range []*channelObserver{first, second} {
		for i, want := range sequence {
			select {
			case ev := <-obs.events:
				if ev.EventType != want {
					t.Errorf("%s: expected event %d to be %s, got %s", obs.name, i, want, ev.EventType)
				}
			case <-time.After(time.Second):
				t.Fatalf("%s: event %d was not delivered", obs.name, i)
			}
		}
	}
}

func TestEventPublisher_CancelledContext(t *testing.T) {
	p := NewEventPublisher()
	obs := &ctxObserver{errs: make(chan error, 1)}
	p.Subscribe(obs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.NotifyObservers(ctx, AnalysisEvent{EventType: AnalysisCompleted})

	select {
	case err := <-obs.errs:
		if err != nil {
			t.Errorf("Expected observer context to outlive the request, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Observer was not notified")
	}
}

type ctxObserver struct {
	errs chan error
}

func (o *ctxObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.errs <- ctx.Err()
}

func (o *ctxObserver) GetObserverName() string {
	return "ctx"
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(logger)
	obs.OnEvent(context.Background(), AnalysisEvent{
		EventType:    AnalysisFailed,
		Model:        "pro",
		ErrorType:    "network",
		ErrorMessage: "quota exceeded",
	})

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Expected JSON log line, got %q", buf.String())
	}
	if line["level"] != "error" || line["msg"] != "Image analysis failed" {
		t.Errorf("Unexpected log line %v", line)
	}
	if line["error"] != "quota exceeded" || line["model"] != "pro" {
		t.Errorf("Expected error and model fields, got %v", line)
	}
}

func TestMetricsObserver(t *testing.T) {
	obs := NewMetricsObserver()
	ctx := context.Background()

	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisStarted, Model: "flash"})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisCompleted, Model: "flash", ProcessingTime: 2 * time.Second})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisStarted, Model: "flash"})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisFailed, Model: "flash", ErrorType: "network"})
	obs.OnEvent(ctx, AnalysisEvent{EventType: AnalysisRejected})

	metrics := obs.GetMetrics()
	if metrics["total_analyses"] != int64(2) || metrics["successful_analyses"] != int64(1) ||
		metrics["failed_analyses"] != int64(1) || metrics["rejected_analyses"] != int64(1) {
		t.Errorf("Unexpected summary %v", metrics)
	}
	if metrics["avg_processing_time"] != "2s" {
		t.Errorf("Expected 2s average, got %v", metrics["avg_processing_time"])
	}

	if got := testutil.ToFloat64(obs.events.WithLabelValues("analysis_failed", "network")); got != 1 {
		t.Errorf("Expected 1 failed network event, got %v", got)
	}
	if got := testutil.ToFloat64(obs.inFlight); got != 0 {
		t.Errorf("Expected no analyses in flight, got %v", got)
	}

	rec := httptest.NewRecorder()
	obs.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "vision_lens_analysis_events_total") {
		t.Error("Expected analysis metrics in exposition output")
	}
}
