package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tenant_id", "123"),
		attribute.String("action", "add_credits"),
		attribute.String("provider", "gptmaker"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "tenant_id" {
			t.Fatalf("expected tenant_id to be dropped")
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordMeteringFetch(context.Background(), "gptmaker", "ok")
	m.RecordGatewayRequest(context.Background(), "create_charge", "ok", time.Millisecond)
	m.RecordCreditAdjustment(context.Background(), "add_credits")
	m.RecordPaymentTransaction(context.Background(), "credit_purchase", "pending")
}

func TestNopMetricsRecord(t *testing.T) {
	m := NewNop()
	if m == nil {
		t.Fatalf("expected nop metrics")
	}
	m.RecordCreditAdjustment(context.Background(), "reset_balance")
}
