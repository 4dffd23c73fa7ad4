package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	require.False(t, Retryable(nil))
	require.False(t, Retryable(errors.New("boom")))
	require.False(t, Retryable(ErrNotFound))

	require.True(t, Retryable(context.DeadlineExceeded))
	require.True(t, Retryable(fmt.Errorf("resolve: %w", context.DeadlineExceeded)))

	lockErr := &pgconn.PgError{Code: "55P03"}
	require.True(t, Retryable(lockErr))
	require.True(t, Retryable(fmt.Errorf("slow path: %w", lockErr)))

	require.True(t, Retryable(&pgconn.PgError{Code: "40001"}))
	require.True(t, Retryable(&pgconn.PgError{Code: "40P01"}))
	require.False(t, Retryable(&pgconn.PgError{Code: "23505"}))
}
