package intervalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vblock/internal/block"
	"vblock/internal/errors"
	"vblock/internal/wire"
	"vblock/pkg/exception"
)

var base = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func pt(v float64, offset time.Duration) block.Point {
	return wire.FloatValue(v).At(base.Add(offset))
}

func collect(t *testing.T, r *Roller, points []block.Point) ([]Bar, []block.Point) {
	t.Helper()
	var bars []Bar
	carry, err := r.Roll(points, func(b Bar) error {
		bars = append(bars, b)
		return nil
	})
	require.NoError(t, err)
	return bars, carry
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestRollerOHLCBoundary(t *testing.T) {
	r := NewRoller(KindOHLC, time.Minute, nil, false)
	points := []block.Point{
		pt(10, 58*time.Second),
		pt(12, 59*time.Second),
		pt(11, 60*time.Second),
		pt(9, 61*time.Second),
		pt(13, 62*time.Second),
	}

	bars, carry := collect(t, r, points)
	require.Len(t, bars, 1)
	b := bars[0]
	assert.True(t, dec(10).Equal(b.Open), "open %s", b.Open)
	assert.True(t, dec(12).Equal(b.High), "high %s", b.High)
	assert.True(t, dec(10).Equal(b.Low), "low %s", b.Low)
	assert.True(t, dec(12).Equal(b.Close), "close %s", b.Close)
	assert.True(t, b.Time.Equal(base.Add(time.Minute)))
	assert.True(t, b.Older.Equal(points[1]))
	assert.True(t, b.Newer.Equal(points[2]))
	require.Len(t, carry, 3)
	assert.True(t, carry[0].Equal(points[2]))

	bars, carry = collect(t, r, append(carry, pt(14, 120*time.Second)))
	require.Len(t, bars, 1)
	b = bars[0]
	assert.True(t, dec(11).Equal(b.Open), "open %s", b.Open)
	assert.True(t, dec(13).Equal(b.High), "high %s", b.High)
	assert.True(t, dec(9).Equal(b.Low), "low %s", b.Low)
	assert.True(t, dec(13).Equal(b.Close), "close %s", b.Close)
	assert.True(t, b.Time.Equal(base.Add(2*time.Minute)))
	require.Len(t, carry, 1)
}

func TestRollerNoBoundaryCarriesEverything(t *testing.T) {
	r := NewRoller(KindOHLC, 5*time.Minute, nil, false)
	points := []block.Point{pt(1, 0), pt(2, time.Minute), pt(3, 4*time.Minute)}

	bars, carry := collect(t, r, points)
	assert.Empty(t, bars)
	assert.Len(t, carry, 3)
}

func TestRollerGap(t *testing.T) {
	testCases := []struct {
		desc     string
		interval time.Duration
		older    time.Duration
		newer    time.Duration
		boundary bool
	}{
		{"gap without wrap", time.Minute, 10 * time.Second, 130 * time.Second, true},
		{"five min gap", 5 * time.Minute, 0, 6 * time.Minute, true},
		{"exactly one interval apart", 5 * time.Minute, 0, 5 * time.Minute, false},
		{"within interval", 5 * time.Minute, time.Minute, 4 * time.Minute, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			r := NewRoller(KindClose, tc.interval, nil, false)
			bars, _ := collect(t, r, []block.Point{pt(1, tc.older), pt(2, tc.newer)})
			assert.Equal(t, tc.boundary, len(bars) == 1)
		})
	}
}

func TestRollerCloseOnly(t *testing.T) {
	points := []block.Point{pt(1, 30*time.Second), pt(2, 59*time.Second), pt(3, 61*time.Second)}

	bars, carry := collect(t, NewRoller(KindClose, time.Minute, nil, false), points)
	require.Len(t, bars, 1)
	assert.Equal(t, 3.0, bars[0].Value.Float)
	assert.True(t, dec(3).Equal(bars[0].Close))
	assert.Len(t, carry, 1)

	bars, _ = collect(t, NewRoller(KindClose, time.Minute, nil, true), points)
	require.Len(t, bars, 1)
	assert.Equal(t, 2.0, bars[0].Value.Float, "pre-roll reports the older point")
}

func TestRollerSplitBatchesMatchSingleBatch(t *testing.T) {
	var points []block.Point
	for i := range 300 {
		points = append(points, pt(float64(100+(i*7)%13), time.Duration(i*7)*time.Second))
	}

	whole, _ := collect(t, NewRoller(KindOHLC, time.Minute, nil, false), points)

	r := NewRoller(KindOHLC, time.Minute, nil, false)
	var (
		split []Bar
		carry []block.Point
	)
	for i := 0; i < len(points); i += 17 {
		end := min(i+17, len(points))
		batch := append(append([]block.Point(nil), carry...), points[i:end]...)
		var bars []Bar
		bars, carry = collect(t, r, batch)
		split = append(split, bars...)
	}

	require.Equal(t, len(whole), len(split))
	for i := range whole {
		assert.True(t, whole[i].Open.Equal(split[i].Open), "bar %d open", i)
		assert.True(t, whole[i].High.Equal(split[i].High), "bar %d high", i)
		assert.True(t, whole[i].Low.Equal(split[i].Low), "bar %d low", i)
		assert.True(t, whole[i].Close.Equal(split[i].Close), "bar %d close", i)
		assert.True(t, whole[i].Time.Equal(split[i].Time), "bar %d time", i)
		if i > 0 {
			assert.False(t, whole[i].Time.Before(whole[i-1].Time))
		}
	}
}

func TestRollerLocation(t *testing.T) {
	loc := time.FixedZone("half", 30*60)
	r := NewRoller(KindClose, time.Hour, loc, false)

	// 09:29 -> 09:31 UTC is 09:59 -> 10:01 in a +00:30 zone.
	bars, _ := collect(t, r, []block.Point{pt(1, -time.Minute), pt(2, time.Minute)})
	assert.Len(t, bars, 1)

	bars, _ = collect(t, NewRoller(KindClose, time.Hour, nil, false), []block.Point{pt(1, -time.Minute), pt(2, time.Minute)})
	assert.Empty(t, bars)
}

func TestRollerErrors(t *testing.T) {
	r := NewRoller(KindOHLC, time.Minute, nil, false)
	_, err := r.Roll([]block.Point{wire.StringValue("x").At(base)}, func(Bar) error { return nil })
	assert.True(t, errors.Is(err, exception.ErrNonNumericPoint))

	_, err = r.Roll([]block.Point{wire.FloatValue(1)}, func(Bar) error { return nil })
	assert.True(t, errors.Is(err, exception.ErrDateTimeDisabled))

	emitErr := errors.New("sink down")
	r = NewRoller(KindClose, time.Minute, nil, false)
	_, err = r.Roll([]block.Point{pt(1, 59*time.Second), pt(2, 60*time.Second)}, func(Bar) error { return emitErr })
	assert.True(t, errors.Is(err, emitErr))
}
