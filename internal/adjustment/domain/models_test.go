package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func amount(v int64) *int64 { return &v }

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want error
	}{
		{name: "add ok", req: Request{TenantID: 1, Action: ActionAddCredits, Amount: amount(10), Reason: "promo"}},
		{name: "clear without amount", req: Request{TenantID: 1, Action: ActionClearExtraCredits, Reason: "abuse"}},
		{name: "reset without amount", req: Request{TenantID: 1, Action: ActionResetBalance, Reason: "support"}},
		{name: "missing tenant", req: Request{Action: ActionAddCredits, Amount: amount(10), Reason: "x"}, want: ErrInvalidTenant},
		{name: "unknown action", req: Request{TenantID: 1, Action: "double", Reason: "x"}, want: ErrInvalidAction},
		{name: "add without amount", req: Request{TenantID: 1, Action: ActionAddCredits, Reason: "x"}, want: ErrInvalidAmount},
		{name: "remove zero", req: Request{TenantID: 1, Action: ActionRemoveCredits, Amount: amount(0), Reason: "x"}, want: ErrInvalidAmount},
		{name: "negative amount", req: Request{TenantID: 1, Action: ActionAddCredits, Amount: amount(-5), Reason: "x"}, want: ErrInvalidAmount},
		{name: "missing reason", req: Request{TenantID: 1, Action: ActionAddCredits, Amount: amount(5)}, want: ErrMissingReason},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
