package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeAllowsOverage(t *testing.T) {
	cases := []struct {
		name                   string
		plan, extra, used      int64
		wantTotal, wantBalance int64
	}{
		{name: "within allowance", plan: 1000, extra: 0, used: 250, wantTotal: 1000, wantBalance: 750},
		{name: "overage", plan: 1000, extra: 200, used: 1300, wantTotal: 1200, wantBalance: -100},
		{name: "after reset compensation", plan: 1000, extra: 1500, used: 1300, wantTotal: 2500, wantBalance: 1200},
		{name: "negative pool", plan: 1000, extra: -300, used: 0, wantTotal: 700, wantBalance: 700},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total, balance := Compute(tc.plan, tc.extra, tc.used)
			assert.Equal(t, tc.wantTotal, total)
			assert.Equal(t, tc.wantBalance, balance)
			assert.Equal(t, tc.plan+tc.extra-tc.used, balance)
		})
	}
}
