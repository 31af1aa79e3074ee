package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/observability"
	"github.com/smallbiznis/lexcredit/internal/server"
	"github.com/smallbiznis/lexcredit/pkg/db"
	"go.uber.org/fx"
)

// API only. Jobs can still be triggered through the admin routes; the cron
// loop runs in apps/scheduler.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
