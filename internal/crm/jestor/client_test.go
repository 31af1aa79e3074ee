package jestor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/crm/domain"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.CRMConfig{BaseURL: srv.URL, ObjectType: "o_leads", Timeout: time.Second}, metrics.NewNop(), nil)
}

func TestListLeadsSendsTokenAndObjectType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/object/list", r.URL.Path)
		assert.Equal(t, "Bearer tenant-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "o_leads", body["object_type"])
		assert.Equal(t, []any{"*"}, body["fields"])
		assert.Equal(t, float64(10000), body["limit"])

		_, _ = w.Write([]byte(`{"data":[{"criado_em":"2024-05-02","status":"ganho"}]}`))
	})

	leads, err := client.ListLeads(context.Background(), "tenant-token")
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "ganho", leads[0]["status"])
}

func TestListLeadsAcceptsNestedItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"items":[{"status":"a"},{"status":"b"}]}}`))
	})

	leads, err := client.ListLeads(context.Background(), "tok")
	require.NoError(t, err)
	assert.Len(t, leads, 2)
}

func TestListLeadsRequiresToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider must not be called without a token")
	})

	_, err := client.ListLeads(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrTokenNotConfigured)
}

func TestListLeadsReportsProviderFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListLeads(context.Background(), "tok")
	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	var unavailable *domain.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, http.StatusUnauthorized, unavailable.StatusCode)
}
