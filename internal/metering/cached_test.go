package metering

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/lexcredit/internal/metering/domain"
	"github.com/smallbiznis/lexcredit/internal/metering/mock"
	"github.com/smallbiznis/lexcredit/internal/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedClientServesRepeatReads(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mock.NewMockClient(ctrl)
	p := period.Period{Year: 2024, Month: time.May}

	next.EXPECT().CreditsSpent(gomock.Any(), "agent-1", p).Return(domain.Usage{Total: 40}, nil).Times(1)

	client := NewCachedClient(next, time.Minute)
	for i := 0; i < 3; i++ {
		usage, err := client.CreditsSpent(context.Background(), "agent-1", p)
		require.NoError(t, err)
		assert.Equal(t, int64(40), usage.Total)
	}
}

func TestCachedClientDoesNotCacheFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mock.NewMockClient(ctrl)
	p := period.Period{Year: 2024, Month: time.May}

	gomock.InOrder(
		next.EXPECT().CreditsSpent(gomock.Any(), "agent-1", p).Return(domain.Usage{}, &domain.UnavailableError{StatusCode: 503}),
		next.EXPECT().CreditsSpent(gomock.Any(), "agent-1", p).Return(domain.Usage{Total: 7}, nil),
	)

	client := NewCachedClient(next, time.Minute)
	_, err := client.CreditsSpent(context.Background(), "agent-1", p)
	require.ErrorIs(t, err, domain.ErrMeteringUnavailable)

	usage, err := client.CreditsSpent(context.Background(), "agent-1", p)
	require.NoError(t, err)
	assert.Equal(t, int64(7), usage.Total)
}

func TestCachedClientInvalidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mock.NewMockClient(ctrl)
	p := period.Period{Year: 2024, Month: time.May}

	next.EXPECT().CreditsSpent(gomock.Any(), "agent-1", p).Return(domain.Usage{Total: 1}, nil).Times(2)

	client := NewCachedClient(next, time.Minute)
	_, err := client.CreditsSpent(context.Background(), "agent-1", p)
	require.NoError(t, err)
	client.Invalidate("agent-1", p)
	_, err = client.CreditsSpent(context.Background(), "agent-1", p)
	require.NoError(t, err)
}
