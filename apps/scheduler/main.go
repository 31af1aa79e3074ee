package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/audit"
	"github.com/smallbiznis/lexcredit/internal/authorization"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/consumption"
	"github.com/smallbiznis/lexcredit/internal/crm"
	"github.com/smallbiznis/lexcredit/internal/gateway"
	"github.com/smallbiznis/lexcredit/internal/observability"
	"github.com/smallbiznis/lexcredit/internal/provisioning"
	"github.com/smallbiznis/lexcredit/internal/ratelimit"
	"github.com/smallbiznis/lexcredit/internal/scheduler"
	"github.com/smallbiznis/lexcredit/internal/tenant"
	"github.com/smallbiznis/lexcredit/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by scheduler
		authorization.Module,
		audit.Module,
		tenant.Module,
		consumption.Module,
		gateway.Module,
		provisioning.Module,
		crm.Module,
		ratelimit.Module,

		// No server module!
		scheduler.Module,
		scheduler.Runner,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
