package crm

import (
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/crm/domain"
	"github.com/smallbiznis/lexcredit/internal/crm/jestor"
	"github.com/smallbiznis/lexcredit/internal/crm/repository"
	"github.com/smallbiznis/lexcredit/internal/crm/service"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("crm.service",
	fx.Provide(provideClient),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

func provideClient(cfg config.Config, m *metrics.Metrics, log *zap.Logger) domain.Client {
	return jestor.New(cfg.CRM, m, log)
}
