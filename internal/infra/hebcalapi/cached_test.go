package hebcalapi

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"memorial_notification_service/internal/domain/hebcal"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	err   error
	calls atomic.Int32
}

func (s *stubSource) YearTable(ctx context.Context, hebrewYear int) (hebcal.YearTable, error) {
	s.calls.Add(1)
	if s.err != nil {
		return hebcal.YearTable{}, s.err
	}
	return hebcal.NewArithmeticSource().YearTable(ctx, hebrewYear)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCachedSourceServesFromPrimaryOnce(t *testing.T) {
	ctx := context.Background()
	primary := &stubSource{}
	fallback := &stubSource{}
	src := NewCachedSource(primary, fallback, quietLogger())

	first, err := src.YearTable(ctx, 5785)
	require.NoError(t, err)
	assert.Equal(t, 355, first.DaysInYear())

	// Year tables are immutable, so the second lookup is a pure cache hit.
	second, err := src.YearTable(ctx, 5785)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(0), fallback.calls.Load())
}

func TestCachedSourceFallsBack(t *testing.T) {
	ctx := context.Background()
	primary := &stubSource{err: errors.New("connection refused")}
	fallback := &stubSource{}
	src := NewCachedSource(primary, fallback, quietLogger())

	table, err := src.YearTable(ctx, 5785)
	require.NoError(t, err)
	assert.Equal(t, 355, table.DaysInYear())
	assert.Equal(t, int32(1), fallback.calls.Load())

	// The fallback result is cached like any other.
	_, err = src.YearTable(ctx, 5785)
	require.NoError(t, err)
	assert.Equal(t, int32(1), primary.calls.Load())
	assert.Equal(t, int32(1), fallback.calls.Load())
}

func TestCachedSourceWithoutFallbackPropagates(t *testing.T) {
	ctx := context.Background()
	primaryErr := errors.New("connection refused")
	src := NewCachedSource(&stubSource{err: primaryErr}, nil, quietLogger())

	_, err := src.YearTable(ctx, 5785)
	assert.ErrorIs(t, err, primaryErr)
}

func TestCachedSourceBothFailing(t *testing.T) {
	ctx := context.Background()
	fallbackErr := errors.New("fallback broken too")
	src := NewCachedSource(
		&stubSource{err: errors.New("connection refused")},
		&stubSource{err: fallbackErr},
		quietLogger(),
	)

	_, err := src.YearTable(ctx, 5785)
	assert.ErrorIs(t, err, fallbackErr)
}
