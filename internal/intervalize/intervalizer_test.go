package intervalize

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vblock/internal/block"
	"vblock/internal/errors"
	"vblock/internal/obs"
	"vblock/internal/wire"
	"vblock/pkg/exception"
)

func newBlock(t *testing.T, size int, opts ...block.Option) *block.Memory {
	t.Helper()
	m, err := block.NewMemory("intervalize", size, opts...)
	require.NoError(t, err)
	require.NoError(t, m.AddItems(t.Context(), "SPY"))
	require.NoError(t, m.AddTopics(t.Context(), block.TopicLast, block.TopicVolume))
	return m
}

type recorder struct {
	mu    sync.Mutex
	bars  []Bar
	ch    chan Bar
	stops atomic.Int32
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Bar, 16)}
}

func (r *recorder) onBar(b Bar) {
	r.mu.Lock()
	r.bars = append(r.bars, b)
	r.mu.Unlock()
	r.ch <- b
}

func (r *recorder) onStop() {
	r.stops.Add(1)
}

func (r *recorder) next(t *testing.T) Bar {
	t.Helper()
	select {
	case b := <-r.ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for bar")
		return Bar{}
	}
}

func fastConfig(kind Kind) Config {
	return Config{
		Item:         "spy",
		Kind:         kind,
		Interval:     time.Minute,
		UpdatePeriod: 10 * time.Millisecond,
	}
}

func TestIntervalizerOHLCV(t *testing.T) {
	m := newBlock(t, 100)
	rec := newRecorder()
	metrics := obs.NewMetrics()

	iv, err := New(t.Context(), m, fastConfig(KindOHLCV), rec.onBar, rec.onStop, WithMetrics(metrics))
	require.NoError(t, err)
	require.NoError(t, iv.Start(t.Context()))
	defer iv.Stop()
	assert.True(t, errors.Is(iv.Start(t.Context()), exception.ErrAlreadyStarted))

	require.True(t, m.Push("SPY", block.TopicVolume, wire.IntValue(1000)))
	for i, sec := range []int{58, 59, 60, 61, 62} {
		require.True(t, m.Push("SPY", block.TopicLast, pt(float64(10+i), time.Duration(sec)*time.Second)))
	}

	first := rec.next(t)
	assert.Equal(t, "SPY", first.Item)
	assert.Equal(t, block.TopicLast, first.Topic)
	assert.True(t, first.Time.Equal(base.Add(time.Minute)))
	assert.True(t, dec(11).Equal(first.Close))
	assert.False(t, first.HasVolume, "first bar has no volume baseline")

	require.True(t, m.Push("SPY", block.TopicVolume, wire.IntValue(1500)))
	require.True(t, m.Push("SPY", block.TopicLast, pt(20, 2*time.Minute)))

	second := rec.next(t)
	require.True(t, second.HasVolume)
	assert.True(t, dec(500).Equal(second.Volume), "volume %s", second.Volume)
	assert.True(t, dec(12).Equal(second.Open))
	assert.True(t, dec(14).Equal(second.Close))

	require.True(t, m.Push("SPY", block.TopicVolume, wire.IntValue(1500)))
	require.True(t, m.Push("SPY", block.TopicLast, pt(21, 3*time.Minute)))

	third := rec.next(t)
	require.True(t, third.HasVolume)
	assert.True(t, third.Volume.IsZero())
	assert.False(t, third.Time.Before(second.Time))

	iv.Stop()
	assert.Equal(t, uint64(3), metrics.Snapshot().BarsEmitted)
}

func TestIntervalizerStopTearsDownOnce(t *testing.T) {
	m := newBlock(t, 10)
	rec := newRecorder()

	cfg := fastConfig(KindClose)
	cfg.UpdatePeriod = 30 * time.Second
	iv, err := New(t.Context(), m, cfg, rec.onBar, rec.onStop)
	require.NoError(t, err)
	require.NoError(t, iv.Start(t.Context()))

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	iv.Stop()
	assert.Less(t, time.Since(start), time.Second, "stop must not wait for the poll period")
	iv.Stop()

	assert.Equal(t, int32(1), rec.stops.Load())
	require.NoError(t, iv.Wait())
}

func TestIntervalizerContextCancel(t *testing.T) {
	m := newBlock(t, 10)
	rec := newRecorder()

	iv, err := New(t.Context(), m, fastConfig(KindClose), rec.onBar, rec.onStop)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, iv.Start(ctx))
	cancel()

	select {
	case <-iv.Done():
	case <-time.After(time.Second):
		t.Fatal("intervalizer did not stop")
	}
	assert.Equal(t, int32(1), rec.stops.Load())
}

func TestIntervalizerStopBeforeStart(t *testing.T) {
	m := newBlock(t, 10)
	rec := newRecorder()

	iv, err := New(t.Context(), m, fastConfig(KindClose), rec.onBar, rec.onStop)
	require.NoError(t, err)
	iv.Stop()
	iv.Stop()
	assert.Equal(t, int32(1), rec.stops.Load())
	assert.True(t, errors.Is(iv.Start(t.Context()), exception.ErrAlreadyStarted))
}

func TestIntervalizerDataLossIsFatal(t *testing.T) {
	m := newBlock(t, 2)
	for i := range 5 {
		require.True(t, m.Push("SPY", block.TopicLast, pt(1, time.Duration(i)*time.Second)))
	}
	rec := newRecorder()

	cfg := fastConfig(KindClose)
	cfg.FailOnDataLoss = true
	iv, err := New(t.Context(), m, cfg, rec.onBar, rec.onStop)
	require.NoError(t, err)
	require.NoError(t, iv.Start(t.Context()))

	err = iv.Wait()
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrDataLost))
	assert.Equal(t, int32(1), rec.stops.Load())
}

func TestIntervalizerValidation(t *testing.T) {
	noop := func(Bar) {}
	stop := func() {}

	plain, err := block.NewMemory("plain", 10)
	require.NoError(t, err)
	require.NoError(t, plain.AddItems(t.Context(), "SPY"))
	require.NoError(t, plain.AddTopics(t.Context(), "LAST"))

	noDates := newBlock(t, 10, block.WithDateTime(false))

	testCases := []struct {
		desc   string
		block  block.Block
		mutate func(*Config)
		onBar  func(Bar)
		onStop func()
		err    error
	}{
		{"nil bar callback", newBlock(t, 10), nil, nil, stop, exception.ErrNilCallback},
		{"nil stop callback", newBlock(t, 10), nil, noop, nil, exception.ErrNilCallback},
		{"interval", newBlock(t, 10), func(c *Config) { c.Interval = 90 * time.Second }, noop, stop, exception.ErrInvalidInterval},
		{"period too long", newBlock(t, 10), func(c *Config) { c.UpdatePeriod = 40 * time.Second }, noop, stop, exception.ErrInvalidPeriod},
		{"period not dividing", newBlock(t, 10), func(c *Config) { c.UpdatePeriod = 7 * time.Second }, noop, stop, exception.ErrInvalidPeriod},
		{"missing item", newBlock(t, 10), func(c *Config) { c.Item = "QQQ" }, noop, stop, exception.ErrMissingItem},
		{"missing topic", newBlock(t, 10), func(c *Config) { c.Topic = "BID" }, noop, stop, exception.ErrMissingTopic},
		{"missing volume", plain, func(c *Config) { c.Kind = KindCloseVolume }, noop, stop, exception.ErrMissingTopic},
		{"date time disabled", noDates, nil, noop, stop, exception.ErrDateTimeDisabled},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := fastConfig(KindClose)
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			_, err := New(t.Context(), tc.block, cfg, tc.onBar, tc.onStop)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.err), "got %v", err)
			assert.True(t, errors.Is(err, exception.ErrValidation), "got %v", err)
		})
	}
}
