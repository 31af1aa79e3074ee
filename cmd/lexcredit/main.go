package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexcredit/internal/clock"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/smallbiznis/lexcredit/internal/migration"
	"github.com/smallbiznis/lexcredit/internal/observability"
	"github.com/smallbiznis/lexcredit/internal/scheduler"
	"github.com/smallbiznis/lexcredit/internal/server"
	"github.com/smallbiznis/lexcredit/pkg/db"
	"go.uber.org/fx"
)

// Monolith: HTTP API plus the cron loop in one process.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// server.Module carries every domain module and the scheduler
		server.Module,
		scheduler.Runner,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
