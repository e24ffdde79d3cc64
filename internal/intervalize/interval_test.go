package intervalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vblock/internal/errors"
	"vblock/pkg/exception"
)

func TestPhase(t *testing.T) {
	ts := time.Date(2024, 1, 2, 13, 47, 58, 0, time.UTC)
	testCases := []struct {
		interval time.Duration
		expected int
	}{
		{time.Minute, 58},
		{5 * time.Minute, 2},
		{15 * time.Minute, 2},
		{time.Hour, 47 % 60},
		{2 * time.Hour, 1},
		{4 * time.Hour, 1},
		{24 * time.Hour, 13},
	}

	for _, tc := range testCases {
		t.Run(tc.interval.String(), func(t *testing.T) {
			if got := phase(ts, tc.interval); got != tc.expected {
				t.Fatalf("phase mismatch! should be %d but got %d", tc.expected, got)
			}
		})
	}
}

func TestValidateInterval(t *testing.T) {
	testCases := []struct {
		desc     string
		interval time.Duration
		ok       bool
	}{
		{"minute", time.Minute, true},
		{"five minutes", 5 * time.Minute, true},
		{"hour", time.Hour, true},
		{"two hours", 2 * time.Hour, true},
		{"day", 24 * time.Hour, true},
		{"zero", 0, false},
		{"seconds", 90 * time.Second, false},
		{"seven minutes", 7 * time.Minute, false},
		{"ninety minutes", 90 * time.Minute, false},
		{"five hours", 5 * time.Hour, false},
		{"two days", 48 * time.Hour, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := ValidateInterval(tc.interval)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, exception.ErrInvalidInterval))
			assert.True(t, errors.Is(err, exception.ErrValidation))
		})
	}
}

func TestValidatePeriod(t *testing.T) {
	testCases := []struct {
		desc     string
		interval time.Duration
		period   time.Duration
		ok       bool
	}{
		{"half", time.Minute, 30 * time.Second, true},
		{"fifteen of five min", 5 * time.Minute, 15 * time.Second, true},
		{"sub second", time.Minute, 100 * time.Millisecond, true},
		{"over half", time.Minute, 40 * time.Second, false},
		{"not dividing", 5 * time.Minute, 7 * time.Second, false},
		{"zero", time.Minute, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := ValidatePeriod(tc.interval, tc.period)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, exception.ErrInvalidPeriod))
		})
	}
}

func TestParseInterval(t *testing.T) {
	d, err := ParseInterval("five_min")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	d, err = ParseInterval("HOUR")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	d, err = ParseInterval("15m")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	_, err = ParseInterval("fortnight")
	assert.True(t, errors.Is(err, exception.ErrInvalidInterval))

	_, err = ParseInterval("45s")
	assert.True(t, errors.Is(err, exception.ErrInvalidInterval))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("ohlcv")
	require.True(t, ok)
	assert.Equal(t, KindOHLCV, k)
	assert.True(t, k.HasVolume())
	assert.True(t, k.HasOHLC())

	_, ok = ParseKind("candle")
	assert.False(t, ok)
}
