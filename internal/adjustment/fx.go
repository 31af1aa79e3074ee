package adjustment

import (
	"github.com/smallbiznis/lexcredit/internal/adjustment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("adjustment.service",
	fx.Provide(service.New),
)
