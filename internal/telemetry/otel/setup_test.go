package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, Settings{Endpoint: endpoint, ServiceName: "test-service"})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatal("providers should all be set")
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("shutdown should be a no-op, got %v", err)
		}
	}
}

func TestNewProviders_InvalidURL(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"://invalid", "http://[invalid", "http://"} {
		if _, err := NewProviders(ctx, Settings{Endpoint: endpoint, ServiceName: "test-service"}); err == nil {
			t.Errorf("NewProviders(%q) should return error", endpoint)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
	}{
		{"localhost:4317", false, "localhost:4317", true},
		{"http://collector:4317/v1/traces", false, "collector:4317", true},
		{"https://collector:4317", false, "collector:4317", false},
		{"https://collector:4317", true, "collector:4317", true},
	}
	for _, tc := range cases {
		target, insecure, err := parseEndpoint(tc.endpoint, tc.override)
		if err != nil {
			t.Fatalf("parseEndpoint(%q): %v", tc.endpoint, err)
		}
		if target != tc.wantTarget || insecure != tc.wantInsecure {
			t.Errorf("parseEndpoint(%q, %v) = %q, %v; want %q, %v", tc.endpoint, tc.override, target, insecure, tc.wantTarget, tc.wantInsecure)
		}
	}
}

func TestSetGlobal_WithProviders(t *testing.T) {
	providers, err := NewProviders(context.Background(), Settings{ServiceName: "test-service"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	oldTP, oldMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(oldTP)
		otel.SetMeterProvider(oldMP)
	})
	providers.SetGlobal()
	if otel.GetTracerProvider() != providers.TracerProvider {
		t.Error("TracerProvider should be the global")
	}
	if otel.GetMeterProvider() != providers.MeterProvider {
		t.Error("MeterProvider should be the global")
	}
}

func TestNewProviders_RequiresServiceName(t *testing.T) {
	if _, err := NewProviders(context.Background(), Settings{ServiceName: "  "}); err == nil {
		t.Fatal("empty service name should be rejected")
	}
}

func TestNewProviders_ResourceAttributes(t *testing.T) {
	res, err := newResource(Settings{ServiceName: "truledgr-backend", ServiceVersion: "1.2.3", Environment: "staging"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	want := map[string]string{
		"service.name":                "truledgr-backend",
		"service.version":             "1.2.3",
		"deployment.environment.name": "staging",
	}
	got := map[string]string{}
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestShutdownStack_ReverseOrderJoinsErrors(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	var s shutdownStack
	s.push(func(context.Context) error { order = append(order, 1); return nil })
	s.push(func(context.Context) error { order = append(order, 2); return boom })
	s.push(func(context.Context) error { order = append(order, 3); return nil })

	err := s.shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("shutdown error = %v, want boom", err)
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Errorf("shutdown order = %v, want [3 2 1]", order)
	}
}
