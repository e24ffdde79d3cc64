package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vblock/internal/block"
	"vblock/internal/errors"
	"vblock/pkg/exception"
)

func TestGenerator(t *testing.T) {
	g, err := NewGenerator([]string{"spy", "qqq"}, 100, 0.5, 0.01, 10, 7)
	require.NoError(t, err)

	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	var lastVolume = map[string]int64{}
	for i := range 20 {
		tick := g.Next(now.Add(time.Duration(i) * time.Second))
		want := []string{"SPY", "QQQ"}[i%2]
		if tick.Symbol != want {
			t.Fatalf("symbol mismatch! should be %s but got %s", want, tick.Symbol)
		}
		assert.Greater(t, tick.Last, 0.0)
		assert.InDelta(t, tick.Ask-tick.Bid, 0.02, 1e-9)
		assert.Greater(t, tick.Volume, lastVolume[tick.Symbol], "volume is cumulative")
		lastVolume[tick.Symbol] = tick.Volume
	}

	_, err = NewGenerator(nil, 100, 1, 0, 1, 1)
	assert.True(t, errors.Is(err, exception.ErrValidation))
}

func TestHubPublish(t *testing.T) {
	m, err := block.NewMemory("hub", 10)
	require.NoError(t, err)
	require.NoError(t, m.AddItems(t.Context(), "SPY"))
	require.NoError(t, m.AddTopics(t.Context(), block.TopicLast, block.TopicVolume))

	hub := NewHub()
	detach := hub.Attach(m)
	assert.Equal(t, 1, hub.Len())

	now := time.Now().UTC()
	assert.Equal(t, 2, hub.Publish(Tick{Symbol: "SPY", Last: 10, Bid: 9, Ask: 11, Volume: 5, Time: now}))
	assert.Equal(t, 0, hub.Publish(Tick{Symbol: "IWM", Last: 10, Time: now}))

	p, err := m.Get(t.Context(), "SPY", block.TopicVolume, 0, true)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Int)
	assert.True(t, p.Time.Equal(now))

	m.OnClose(detach)
	require.NoError(t, m.Close())
	assert.Zero(t, hub.Len())
}

func TestSimulatorRun(t *testing.T) {
	m, err := block.NewMemory("sim", 100)
	require.NoError(t, err)
	require.NoError(t, m.AddItems(t.Context(), "SPY"))
	require.NoError(t, m.AddTopics(t.Context(), block.TopicLast))

	g, err := NewGenerator([]string{"SPY"}, 50, 0.1, 0, 1, 1)
	require.NoError(t, err)
	hub := NewHub()
	hub.Attach(m)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, NewSimulator(g, hub, 100).Run(ctx))

	occ, err := m.StreamOccupancy(t.Context(), "SPY", block.TopicLast)
	require.NoError(t, err)
	assert.Greater(t, occ, 2)
}
