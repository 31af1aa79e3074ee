package metrics

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushgatewayPusher sends batch job metrics to a Prometheus Pushgateway.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

// NewPushgatewayPusher returns nil when no Pushgateway is configured.
func NewPushgatewayPusher(cfg Config) *PushgatewayPusher {
	endpoint := strings.TrimSpace(cfg.PushgatewayURL)
	if endpoint == "" {
		return nil
	}
	job := strings.TrimSpace(cfg.ServiceName)
	if job == "" {
		job = "lexcredit"
	}
	return &PushgatewayPusher{
		endpoint: endpoint,
		job:      job + "_scheduler",
		grouping: map[string]string{
			"env": strings.TrimSpace(cfg.Environment),
		},
	}
}

// Push replaces the job's metric group with the given collectors.
func (p *PushgatewayPusher) Push(ctx context.Context, collectors ...prometheus.Collector) error {
	if p == nil || len(collectors) == 0 {
		return nil
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job)
	for _, c := range collectors {
		pusher = pusher.Collector(c)
	}
	for key, value := range p.grouping {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	return pusher.PushContext(ctx)
}
