package models

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newPending(t *testing.T, code string) *Request {
	t.Helper()
	hash, err := HashVerificationCode(code, bcrypt.MinCost)
	require.NoError(t, err)
	r, err := NewRequest(uuid.New(), NewTransferCode(), "22222222", "11111111", "PRD-DEST01", []string{"11500000015"}, hash, now)
	require.NoError(t, err)
	return r
}

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusRejected, StatusExpired}
	for _, from := range all {
		for _, to := range all {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				want := from == StatusPending && to != StatusPending
				assert.Equal(t, want, from.CanTransitionTo(to))
			})
		}
	}
}

func TestNewRequest(t *testing.T) {
	t.Run("empty animal set", func(t *testing.T) {
		_, err := NewRequest(uuid.New(), "TRANS-1", "a", "b", "PRD-1", nil, "hash", now)
		assert.True(t, errors.Is(err, ErrEmptyAnimalSet))
	})

	t.Run("self transfer", func(t *testing.T) {
		_, err := NewRequest(uuid.New(), "TRANS-1", "a", "a", "PRD-1", []string{"11500000015"}, "hash", now)
		assert.True(t, errors.Is(err, ErrSelfTransfer))
	})

	t.Run("starts pending", func(t *testing.T) {
		r := newPending(t, "123456")
		assert.Equal(t, StatusPending, r.Status)
		assert.Equal(t, now, r.CreatedAt)
	})
}

func TestRequestTransitions(t *testing.T) {
	t.Run("approve once", func(t *testing.T) {
		r := newPending(t, "123456")
		require.NoError(t, r.Approve(now.Add(time.Minute)))
		assert.Equal(t, StatusApproved, r.Status)
		assert.Equal(t, now.Add(time.Minute), r.UpdatedAt)

		err := r.Approve(now)
		assert.True(t, errors.Is(err, ErrNotPending))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("expired cannot be approved or rejected", func(t *testing.T) {
		r := newPending(t, "123456")
		require.NoError(t, r.Expire(now))
		assert.ErrorIs(t, r.Approve(now), ErrNotPending)
		assert.ErrorIs(t, r.Reject(now), ErrNotPending)
		assert.ErrorIs(t, r.Expire(now), ErrNotPending)
	})

	t.Run("rejected is terminal", func(t *testing.T) {
		r := newPending(t, "123456")
		require.NoError(t, r.Reject(now))
		assert.True(t, r.Status.IsTerminal())
		assert.ErrorIs(t, r.SetVerificationHash("x", now), ErrNotPending)
	})
}

func TestIsStale(t *testing.T) {
	r := newPending(t, "123456")
	assert.False(t, r.IsStale(now.Add(24*time.Hour), 24*time.Hour))
	assert.True(t, r.IsStale(now.Add(24*time.Hour+time.Nanosecond), 24*time.Hour))
	assert.True(t, r.IsStale(now.Add(25*time.Hour), 24*time.Hour))
}

func TestVerificationCode(t *testing.T) {
	for range 50 {
		code, err := NewVerificationCode()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[1-9][0-9]{5}$`), code)
	}

	r := newPending(t, "482913")
	assert.True(t, r.MatchesVerificationCode("482913"))
	assert.False(t, r.MatchesVerificationCode("482914"))
	assert.False(t, r.MatchesVerificationCode(""))
}

func TestNewTransferCode(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^TRANS-[0-9A-F]{8}$`), NewTransferCode())
	assert.NotEqual(t, NewTransferCode(), NewTransferCode())
}

func TestPendingConflictError(t *testing.T) {
	err := fmt.Errorf("create: %w", &PendingConflictError{CUIs: []string{"11500000015", "11500000024"}})
	assert.True(t, errors.Is(err, ErrAnimalAlreadyPending))

	var conflict *PendingConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"11500000015", "11500000024"}, conflict.CUIs)
	assert.Contains(t, err.Error(), "11500000024")
}
