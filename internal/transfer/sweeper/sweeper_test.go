package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/NogaLive/SNIUGB/internal/transfer/sweeper/mocks"
)

//go:generate mockgen -source=sweeper.go -destination=mocks/mocks.go -package=mocks Expirer,Locker

var fixedNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	t.Run("expires with the configured window", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		expirer := mocks.NewMockExpirer(ctrl)
		expirer.EXPECT().ExpireStale(gomock.Any(), fixedNow, 24*time.Hour).Return(3, nil)

		s := New(expirer, WithClock(func() time.Time { return fixedNow }), WithLogger(quietLogger()))
		n, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("propagates expirer errors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		expirer := mocks.NewMockExpirer(ctrl)
		dbDown := errors.New("connection refused")
		expirer.EXPECT().ExpireStale(gomock.Any(), gomock.Any(), 2*time.Hour).Return(0, dbDown)

		s := New(expirer, WithWindow(2*time.Hour), WithLogger(quietLogger()))
		_, err := s.RunOnce(context.Background())
		require.ErrorIs(t, err, dbDown)
	})

	t.Run("holds the lock around the sweep", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		expirer := mocks.NewMockExpirer(ctrl)
		locker := mocks.NewMockLocker(ctrl)
		gomock.InOrder(
			locker.EXPECT().Acquire(gomock.Any(), LockKey, 30*time.Minute).Return(true, nil),
			expirer.EXPECT().ExpireStale(gomock.Any(), gomock.Any(), gomock.Any()).Return(1, nil),
			locker.EXPECT().Release(gomock.Any(), LockKey).Return(nil),
		)

		s := New(expirer, WithLocker(locker), WithInterval(30*time.Minute), WithLogger(quietLogger()))
		n, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("skips when another replica holds the lock", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		expirer := mocks.NewMockExpirer(ctrl)
		locker := mocks.NewMockLocker(ctrl)
		locker.EXPECT().Acquire(gomock.Any(), LockKey, DefaultInterval).Return(false, nil)

		s := New(expirer, WithLocker(locker), WithLogger(quietLogger()))
		n, err := s.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("lock errors are returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		expirer := mocks.NewMockExpirer(ctrl)
		locker := mocks.NewMockLocker(ctrl)
		redisDown := errors.New("redis: connection refused")
		locker.EXPECT().Acquire(gomock.Any(), LockKey, gomock.Any()).Return(false, redisDown)

		s := New(expirer, WithLocker(locker), WithLogger(quietLogger()))
		_, err := s.RunOnce(context.Background())
		require.ErrorIs(t, err, redisDown)
	})
}

func TestRunKeepsGoingAfterErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	expirer := mocks.NewMockExpirer(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	expirer.EXPECT().ExpireStale(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, time.Time, time.Duration) (int, error) {
			if calls.Add(1) >= 3 {
				cancel()
			}
			return 0, errors.New("transient")
		}).MinTimes(3)

	s := New(expirer, WithInterval(5*time.Millisecond), WithLogger(quietLogger()))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}
