package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Outcome values recorded on the auth counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthMetrics counts logins, refreshes and impersonation starts by outcome.
type AuthMetrics struct {
	logins         metric.Int64Counter
	refreshes      metric.Int64Counter
	impersonations metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on provider. A nil provider yields no-op counters.
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter("truledgr.auth")
	logins, err := meter.Int64Counter("auth.logins", metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, err
	}
	refreshes, err := meter.Int64Counter("auth.refreshes", metric.WithDescription("Token refreshes by outcome"))
	if err != nil {
		return nil, err
	}
	impersonations, err := meter.Int64Counter("auth.impersonations", metric.WithDescription("Impersonation starts by outcome"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{logins: logins, refreshes: refreshes, impersonations: impersonations}, nil
}

// RecordLogin counts one login attempt. reason is the error kind on failure, empty on success.
func (m *AuthMetrics) RecordLogin(ctx context.Context, outcome, reason string) {
	m.add(ctx, func(m *AuthMetrics) metric.Int64Counter { return m.logins }, outcome, reason)
}

// RecordRefresh counts one refresh attempt.
func (m *AuthMetrics) RecordRefresh(ctx context.Context, outcome, reason string) {
	m.add(ctx, func(m *AuthMetrics) metric.Int64Counter { return m.refreshes }, outcome, reason)
}

// RecordImpersonation counts one impersonation start attempt.
func (m *AuthMetrics) RecordImpersonation(ctx context.Context, outcome, reason string) {
	m.add(ctx, func(m *AuthMetrics) metric.Int64Counter { return m.impersonations }, outcome, reason)
}

func (m *AuthMetrics) add(ctx context.Context, counter func(*AuthMetrics) metric.Int64Counter, outcome, reason string) {
	if m == nil {
		return
	}
	c := counter(m)
	if c == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
