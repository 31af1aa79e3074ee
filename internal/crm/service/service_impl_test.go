package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/crm/domain"
	"github.com/smallbiznis/lexcredit/internal/crm/jestor"
	"github.com/smallbiznis/lexcredit/internal/crm/repository"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"github.com/smallbiznis/lexcredit/internal/period"
	tenantrepo "github.com/smallbiznis/lexcredit/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/lexcredit/internal/tenant/service"
	"github.com/smallbiznis/lexcredit/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var may2024 = period.Period{Year: 2024, Month: time.May}

const leadsBody = `{"data":[
	{"criado_em":"2024-05-02","reuniao_agendada":true,"status":"ganho","valor_da_proposta":"R$ 2.000,00"},
	{"criado_em":"2024-05-03","reuniao_agendada":false,"status":"novo"}
]}`

func newTestService(t *testing.T, handler http.HandlerFunc) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC))
	settings := config.DefaultCreditSettings()
	settings.ResetTimezone = "UTC"
	credits := config.NewStaticCreditConfigHolder(settings)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Credits: credits,
		Repo:    repository.Provide(),
		Client:  jestor.New(config.CRMConfig{BaseURL: srv.URL, ObjectType: "o_leads"}, metrics.NewNop(), zap.NewNop()),
		Tenants: tenantservice.New(tenantservice.Params{
			DB: db, Log: zap.NewNop(), Clock: clk, Repo: tenantrepo.Provide(), Credits: credits,
		}),
	})
	return svc, db, clk
}

func TestRefreshStoresKPIs(t *testing.T) {
	svc, db, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(leadsBody))
	})
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 1, CRMToken: "tok"})
	ctx := context.Background()

	kpi, err := svc.Refresh(ctx, 1, may2024)
	require.NoError(t, err)
	assert.Equal(t, int64(2), kpi.TotalLeads)
	assert.Equal(t, int64(1), kpi.Meetings)
	assert.Equal(t, int64(1), kpi.ClosedDeals)
	assert.Equal(t, int64(200000), kpi.PipelineCents)
	assert.Equal(t, 50.0, kpi.MeetingRate)
	assert.Equal(t, 100.0, kpi.DealRate)

	stored, err := svc.Get(ctx, 1, may2024)
	require.NoError(t, err)
	assert.Equal(t, kpi.ID, stored.ID)
}

func TestRefreshOverwritesSamePeriod(t *testing.T) {
	var calls atomic.Int32
	svc, db, clk := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(leadsBody))
	})
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 1, CRMToken: "tok"})
	ctx := context.Background()

	first, err := svc.Refresh(ctx, 1, may2024)
	require.NoError(t, err)
	assert.Zero(t, first.TotalLeads)

	clk.Advance(time.Hour)
	second, err := svc.Refresh(ctx, 1, may2024)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2), second.TotalLeads)
	dbtest.AssertCount(t, db, `SELECT COUNT(*) FROM crm_kpis`, 1)
}

func TestRefreshRequiresToken(t *testing.T) {
	svc, db, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider must not be called")
	})
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 1})

	_, err := svc.Refresh(context.Background(), 1, may2024)
	assert.ErrorIs(t, err, domain.ErrTokenNotConfigured)

	_, err = svc.Get(context.Background(), 1, may2024)
	assert.ErrorIs(t, err, domain.ErrKPINotFound)
}

func TestRefreshAllSkipsTenantsWithoutTokenAndCountsFailures(t *testing.T) {
	svc, db, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.Header.Get("Authorization"), "broken") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(leadsBody))
	})
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 1, CRMToken: "tok-a"})
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 2, CRMToken: "broken"})
	dbtest.InsertTenant(t, db, dbtest.TenantSeed{ID: 3})

	result, err := svc.RefreshAll(context.Background(), may2024)
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshResult{Period: "2024-05", Tenants: 2, Refreshed: 1, Failed: 1}, result)
	dbtest.AssertCount(t, db, `SELECT COUNT(*) FROM crm_kpis`, 1)
}
