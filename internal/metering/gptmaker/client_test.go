package gptmaker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/metering/domain"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/smallbiznis/lexcredit/internal/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.MeteringConfig{BaseURL: srv.URL, Token: "tok", Timeout: time.Second}, metrics.NewNop(), nil)
}

func TestCreditsSpentSendsPeriodAndToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/agent/agent-9/credits-spent", r.URL.Path)
		assert.Equal(t, "2024", r.URL.Query().Get("year"))
		assert.Equal(t, "5", r.URL.Query().Get("month"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"total":1300,"breakdown":{"chat":1300}}`))
	})

	usage, err := client.CreditsSpent(context.Background(), "agent-9", period.Period{Year: 2024, Month: time.May})
	require.NoError(t, err)
	assert.Equal(t, int64(1300), usage.Total)
	assert.Contains(t, usage.Raw, "breakdown")
}

func TestCreditsSpentDefaultsMissingTotalToZero(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	usage, err := client.CreditsSpent(context.Background(), "agent-9", period.Period{Year: 2024, Month: time.May})
	require.NoError(t, err)
	assert.Zero(t, usage.Total)
}

func TestCreditsSpentSurfacesProviderFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreditsSpent(context.Background(), "agent-9", period.Period{Year: 2024, Month: time.May})
	require.ErrorIs(t, err, domain.ErrMeteringUnavailable)

	var unavailable *domain.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, http.StatusBadGateway, unavailable.StatusCode)
}

func TestCreditsSpentTransportFailure(t *testing.T) {
	client := New(config.MeteringConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, nil, nil)
	_, err := client.CreditsSpent(context.Background(), "agent-9", period.Period{Year: 2024, Month: time.May})
	require.ErrorIs(t, err, domain.ErrMeteringUnavailable)
}

func TestCreditsSpentRequiresAgent(t *testing.T) {
	client := New(config.MeteringConfig{}, nil, nil)
	_, err := client.CreditsSpent(context.Background(), " ", period.Period{Year: 2024, Month: time.May})
	require.ErrorIs(t, err, domain.ErrAgentNotConfigured)
}

func TestTotalFrom(t *testing.T) {
	assert.Equal(t, int64(12), totalFrom("12"))
	assert.Equal(t, int64(3), totalFrom(2.6))
	assert.Equal(t, int64(0), totalFrom(nil))
	assert.Equal(t, int64(0), totalFrom("n/a"))
}
