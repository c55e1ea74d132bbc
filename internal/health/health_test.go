package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// HealthzHandler

func TestHealthzHandler_Healthy(t *testing.T) {
	h := HealthzHandler(Fixed(true, ""))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("body = %q, want 'ok'", rec.Body.String())
	}
}

func TestHealthzHandler_Unhealthy(t *testing.T) {
	h := HealthzHandler(Fixed(false, "store unreachable"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "store unreachable") {
		t.Fatalf("body = %q, want reason in response", rec.Body.String())
	}
}

func TestHealthzHandler_NilProbe(t *testing.T) {
	h := HealthzHandler(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (nil probe = healthy)", rec.Code)
	}
}

func TestHealthzHandler_DynamicProbe(t *testing.T) {
	healthy := true
	probe := CheckFunc(func(ctx context.Context) error {
		if !healthy {
			return fmt.Errorf("flipped unhealthy")
		}
		return nil
	})

	h := HealthzHandler(probe)

	// Initially healthy
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("initially: status = %d, want 200", rec.Code)
	}

	// Flip to unhealthy
	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("after flip: status = %d, want 503", rec.Code)
	}
}

func TestHealthzHandler_PassesRequestContext(t *testing.T) {
	type ctxKey string
	var gotCtx context.Context

	probe := CheckFunc(func(ctx context.Context) error {
		gotCtx = ctx
		return nil
	})

	h := HealthzHandler(probe)
	ctx := context.WithValue(context.Background(), ctxKey("test"), "value")
	req := httptest.NewRequest("GET", "/healthz", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotCtx.Value(ctxKey("test")) != "value" {
		t.Fatal("request context not passed to probe")
	}
}

// ReadyzHandler

func TestReadyzHandler_Ready(t *testing.T) {
	h := ReadyzHandler(Fixed(true, ""))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/readyz", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ready") {
		t.Fatalf("body = %q, want 'ready'", rec.Body.String())
	}
}

func TestReadyzHandler_NotReady(t *testing.T) {
	h := ReadyzHandler(Fixed(false, "catalog: not loaded"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/readyz", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "catalog: not loaded") {
		t.Fatalf("body = %q, want reason in response", rec.Body.String())
	}
}

func TestReadyzHandler_NilProbe(t *testing.T) {
	h := ReadyzHandler(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/readyz", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (nil probe = ready)", rec.Code)
	}
}

// probes

func TestAll_FirstFailureWins(t *testing.T) {
	p := All(nil, Fixed(true, ""), Fixed(false, "catalog not loaded"), Fixed(false, "second"))
	err := p.Check(context.Background())
	if err == nil || err.Error() != "catalog not loaded" {
		t.Fatalf("err = %v", err)
	}
	if err := All().Check(context.Background()); err != nil {
		t.Fatalf("empty All should pass: %v", err)
	}
}

func TestAny(t *testing.T) {
	if err := Any(Fixed(false, "a"), Fixed(true, "")).Check(context.Background()); err != nil {
		t.Fatalf("Any with one passing probe: %v", err)
	}
	err := Any(Fixed(false, "a"), Fixed(false, "b")).Check(context.Background())
	if err == nil || err.Error() != "b" {
		t.Fatalf("err = %v, want last failure", err)
	}
	if err := Any(nil).Check(context.Background()); err == nil {
		t.Fatal("Any with no probes should fail")
	}
}

func TestNamed_PrefixesReason(t *testing.T) {
	err := Named("mongo", Fixed(false, "server selection timeout")).Check(context.Background())
	if err == nil || err.Error() != "mongo: server selection timeout" {
		t.Fatalf("err = %v", err)
	}
	if err := Named("mongo", Fixed(true, "")).Check(context.Background()); err != nil {
		t.Fatalf("passing probe: %v", err)
	}
	if err := Named("nil", nil).Check(context.Background()); err != nil {
		t.Fatalf("nil probe: %v", err)
	}
}

func TestShutdownGate(t *testing.T) {
	var g ShutdownGate
	p := g.Probe()
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("open gate: %v", err)
	}
	g.Set("")
	if err := p.Check(context.Background()); err == nil || err.Error() != "draining" {
		t.Fatalf("closed gate err = %v", err)
	}
	g.Set("shutting down")
	if err := p.Check(context.Background()); err == nil || err.Error() != "shutting down" {
		t.Fatalf("closed gate err = %v", err)
	}
	g.Clear()
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("cleared gate: %v", err)
	}
}

func TestHandlers_AreHandlerFuncs(t *testing.T) {
	var _ http.HandlerFunc = HealthzHandler(nil)
	var _ http.HandlerFunc = ReadyzHandler(nil)
}
