package provisioning

import (
	"github.com/smallbiznis/lexcredit/internal/provisioning/service"
	"go.uber.org/fx"
)

var Module = fx.Module("provisioning.service",
	fx.Provide(service.New),
)
