package scheduler

import (
	"time"

	"github.com/smallbiznis/lexcredit/internal/config"
)

// Config controls cron specs, job toggles and lock leases. An empty
// GatewaySyncCron leaves the gateway sync to manual triggers.
type Config struct {
	MonthlyResetCron string
	CRMRefreshCron   string
	GatewaySyncCron  string
	EnabledJobs      []string
	LockTTL          time.Duration
	JobTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		MonthlyResetCron: "0 0 1 * *",
		CRMRefreshCron:   "30 3 * * *",
		LockTTL:          30 * time.Minute,
		JobTimeout:       30 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		MonthlyResetCron: cfg.Scheduler.MonthlyResetCron,
		CRMRefreshCron:   cfg.Scheduler.CRMRefreshCron,
		GatewaySyncCron:  cfg.Scheduler.GatewaySyncCron,
		EnabledJobs:      cfg.Scheduler.EnabledJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MonthlyResetCron == "" {
		c.MonthlyResetCron = defaults.MonthlyResetCron
	}
	if c.CRMRefreshCron == "" {
		c.CRMRefreshCron = defaults.CRMRefreshCron
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
