// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/traylinx/bhasharouter/internal/hooks"
)

func TestNew(t *testing.T) {
	t.Run("creates metrics with specified max samples", func(t *testing.T) {
		m := New(500)
		if m.maxSamples != 500 {
			t.Errorf("expected maxSamples=500, got %d", m.maxSamples)
		}
	})

	t.Run("uses default max samples when not positive", func(t *testing.T) {
		for _, n := range []int{0, -10} {
			if m := New(n); m.maxSamples != 1000 {
				t.Errorf("New(%d): expected default maxSamples=1000, got %d", n, m.maxSamples)
			}
		}
	})
}

func TestRecord(t *testing.T) {
	m := New(10)

	m.Record(&hooks.EventContext{Event: hooks.EventRequestReceived})
	m.Record(&hooks.EventContext{Event: hooks.EventRoutingDecision, Handler: "nani_kahaniyan", Method: "classifier", Language: "english", Confidence: 0.9})
	m.Record(&hooks.EventContext{Event: hooks.EventRoutingDecision, Handler: "leftover_chef", Method: "similarity", Language: "hinglish", Confidence: 0.4})
	m.Record(&hooks.EventContext{Event: hooks.EventClarificationNeeded, Handler: "clarification_needed", Method: "fused", Language: "english", Confidence: 0.2})
	m.Record(&hooks.EventContext{Event: hooks.EventCapabilityUnavailable, Method: "classifier"})
	m.Record(&hooks.EventContext{Event: hooks.EventRoutingFailed})
	m.Record(&hooks.EventContext{Event: hooks.EventDispatchFailed, Handler: "vividh_bharti"})
	m.Record(&hooks.EventContext{Event: hooks.EventEvaluationCompleted, Confidence: 0.8})
	m.Record(nil)

	s := m.Snapshot()
	if s.Requests != 1 {
		t.Errorf("expected 1 request, got %d", s.Requests)
	}
	if s.Decisions != 3 {
		t.Errorf("expected 3 decisions, got %d", s.Decisions)
	}
	if s.Clarifications != 1 {
		t.Errorf("expected 1 clarification, got %d", s.Clarifications)
	}
	if s.ByLanguage["english"] != 2 || s.ByLanguage["hinglish"] != 1 {
		t.Errorf("unexpected language counts: %v", s.ByLanguage)
	}
	if s.ByMethod["fused"] != 1 {
		t.Errorf("unexpected method counts: %v", s.ByMethod)
	}
	if s.UnavailableBy["classifier"] != 1 {
		t.Errorf("unexpected unavailable counts: %v", s.UnavailableBy)
	}
	if s.RoutingFailures != 1 || s.DispatchFailures != 1 || s.Evaluations != 1 {
		t.Errorf("unexpected failure counts: %+v", s)
	}
	if s.LastAccuracy != 0.8 {
		t.Errorf("expected last accuracy 0.8, got %f", s.LastAccuracy)
	}

	rate := s.ClarificationRate()
	if rate < 33.3 || rate > 33.4 {
		t.Errorf("expected clarification rate ~33.3, got %f", rate)
	}

	if got := testutil.ToFloat64(m.promDecisions.WithLabelValues("nani_kahaniyan", "classifier", "english")); got != 1 {
		t.Errorf("expected 1 story decision, got %f", got)
	}
	if got := testutil.ToFloat64(m.promDispatch.WithLabelValues("vividh_bharti")); got != 1 {
		t.Errorf("expected 1 dispatch failure, got %f", got)
	}
	if got := testutil.ToFloat64(m.promAccuracy); got != 0.8 {
		t.Errorf("expected accuracy gauge 0.8, got %f", got)
	}
}

func TestSubscribe(t *testing.T) {
	bus := hooks.NewEventBus()
	m := New(10)
	m.Subscribe(bus)

	bus.Publish(&hooks.EventContext{Event: hooks.EventRoutingDecision, Handler: "poem_generator", Method: "classifier", Language: "hindi", Confidence: 0.7})
	bus.Shutdown()

	if got := m.Snapshot().ByHandler["poem_generator"]; got != 1 {
		t.Errorf("expected 1 poem decision, got %d", got)
	}
}

func TestLatencySamples(t *testing.T) {
	m := New(3)
	for _, ms := range []int{50, 10, 20, 30} {
		m.ObserveRequest("/v1/route", "200", time.Duration(ms)*time.Millisecond)
	}

	stats := m.Snapshot().LatencyStats
	if stats.Samples != 3 {
		t.Errorf("expected 3 samples, got %d", stats.Samples)
	}
	if stats.MinMs != 10 || stats.MaxMs != 30 || stats.AverageMs != 20 {
		t.Errorf("unexpected latency stats: %+v", stats)
	}

	if empty := New(3).Snapshot().LatencyStats; empty.Samples != 0 {
		t.Errorf("expected empty stats, got %+v", empty)
	}
}

func TestHandler(t *testing.T) {
	m := New(10)
	m.Record(&hooks.EventContext{Event: hooks.EventRoutingFailed})
	m.ObserveRequest("/v1/route", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		"bhasharouter_routing_failures_total 1",
		`bhasharouter_api_request_duration_seconds_count{path="/v1/route",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition is missing %q", want)
		}
	}
}

func TestConcurrentRecord(t *testing.T) {
	m := New(100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record(&hooks.EventContext{Event: hooks.EventRoutingDecision, Handler: "food_locator", Method: "similarity", Language: "english", Confidence: 0.5})
			m.ObserveRequest("/v1/route", "200", time.Millisecond)
		}()
	}
	wg.Wait()

	if got := m.Snapshot().Decisions; got != 50 {
		t.Errorf("expected 50 decisions, got %d", got)
	}
}
