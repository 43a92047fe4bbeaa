package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRetrier struct {
	calls atomic.Int32
	err   error
}

func (r *countingRetrier) RetryPending(ctx context.Context) (service.DispatchResult, error) {
	r.calls.Add(1)
	return service.DispatchResult{Done: 1}, r.err
}

func TestSchedulerRunsRetry(t *testing.T) {
	retrier := &countingRetrier{}
	s, err := NewScheduler("@every 1s", retrier, nil)
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return retrier.calls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerInvalidSpec(t *testing.T) {
	_, err := NewScheduler("every minute", &countingRetrier{}, nil)
	assert.Error(t, err)
}

func TestRetryErrorIsLogged(t *testing.T) {
	retrier := &countingRetrier{err: errors.New("db down")}
	s, err := NewScheduler("@every 1m", retrier, nil)
	require.NoError(t, err)

	s.retryOutbox(retrier)
	assert.EqualValues(t, 1, retrier.calls.Load())
}

func TestStopHonoursContext(t *testing.T) {
	s, err := NewScheduler("@every 1m", &countingRetrier{}, nil)
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
