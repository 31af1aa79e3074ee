package metering

import (
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/metering/domain"
	"github.com/smallbiznis/lexcredit/internal/metering/gptmaker"
	"github.com/smallbiznis/lexcredit/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("metering",
	fx.Provide(provideClient),
	fx.Provide(provideCachedClient),
)

func provideClient(cfg config.Config, m *metrics.Metrics, log *zap.Logger) domain.Client {
	return gptmaker.New(cfg.Metering, m, log)
}
