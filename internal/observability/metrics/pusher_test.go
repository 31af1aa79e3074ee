package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewPushgatewayPusherDisabledWithoutURL(t *testing.T) {
	if p := NewPushgatewayPusher(Config{ServiceName: "lexcredit"}); p != nil {
		t.Fatalf("expected nil pusher, got %+v", p)
	}
	var p *PushgatewayPusher
	if err := p.Push(context.Background()); err != nil {
		t.Fatalf("nil pusher should be a no-op, got %v", err)
	}
}

func TestPushgatewayPusherSendsSchedulerMetrics(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	registry := prometheus.NewRegistry()
	sched := newSchedulerMetrics(registry, Config{ServiceName: "lexcredit", Environment: "test"})
	sched.IncJobRun("monthly_reset")

	pusher := NewPushgatewayPusher(Config{
		ServiceName:    "lexcredit",
		Environment:    "test",
		PushgatewayURL: srv.URL,
	})
	if err := pusher.Push(context.Background(), sched.Collectors()...); err != nil {
		t.Fatalf("push: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Fatalf("expected PUT, got %s", method)
	}
	if path != "/metrics/job/lexcredit_scheduler/env/test" {
		t.Fatalf("unexpected push path %s", path)
	}
	if !strings.Contains(body, "lexcredit_scheduler_job_runs_total") {
		t.Fatalf("expected scheduler metrics in push body")
	}
}
