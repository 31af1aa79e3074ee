package gateway

import (
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/gateway/asaas"
	"github.com/smallbiznis/lexcredit/internal/gateway/domain"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway",
	fx.Provide(provideClient),
)

func provideClient(cfg config.Config, m *metrics.Metrics, log *zap.Logger) domain.Client {
	return asaas.New(cfg.Gateway, m, log)
}
