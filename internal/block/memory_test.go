package block

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vblock/internal/errors"
	"vblock/internal/wire"
	"vblock/pkg/exception"
)

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func newTestMemory(t *testing.T, size int, opts ...Option) *Memory {
	t.Helper()

	m, err := NewMemory("test", size, opts...)
	require.NoError(t, err)
	require.NoError(t, m.AddItems(t.Context(), "spy", "QQQ"))
	require.NoError(t, m.AddTopics(t.Context(), "last", TopicVolume))
	return m
}

func pushN(t *testing.T, m *Memory, from, to int) {
	t.Helper()
	for i := from; i < to; i++ {
		require.True(t, m.Push("SPY", "LAST", wire.IntValue(int64(i)).At(t0.Add(time.Duration(i)*time.Second))))
	}
}

func ints(points []Point) []int64 {
	out := make([]int64, 0, len(points))
	for _, p := range points {
		out = append(out, p.Int)
	}
	return out
}

func TestMemoryPendingItemsAndTopics(t *testing.T) {
	m, err := NewMemory("pending", 10)
	require.NoError(t, err)

	require.NoError(t, m.AddItems(t.Context(), "spy"))
	items, err := m.Items(t.Context())
	require.NoError(t, err)
	assert.Empty(t, items, "items without topics should stay pending")

	_, err = m.Get(t.Context(), "SPY", "LAST", 0, false)
	assert.True(t, errors.Is(err, exception.ErrUnknownItem))

	require.NoError(t, m.AddTopics(t.Context(), "last"))
	items, err = m.Items(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY"}, items)

	require.NoError(t, m.RemoveItems(t.Context(), "spy"))
	topics, err := m.Topics(t.Context())
	require.NoError(t, err)
	assert.Empty(t, topics)
	assert.False(t, m.Push("SPY", "LAST", wire.IntValue(1)))
}

func TestMemoryGet(t *testing.T) {
	m := newTestMemory(t, 5)
	pushN(t, m, 0, 3)

	testCases := []struct {
		desc       string
		index      int
		checkIndex bool
		want       Point
		err        error
	}{
		{"newest", 0, false, wire.IntValue(2).At(t0.Add(2 * time.Second)), nil},
		{"oldest occupied", 2, false, wire.IntValue(0).At(t0), nil},
		{"past occupancy", 3, false, wire.NilValue(), nil},
		{"past occupancy checked", 3, true, Point{}, exception.ErrIndexOutOfRange},
		{"negative past occupancy", -1, false, wire.NilValue(), nil},
		{"negative in range", -3, false, wire.IntValue(0).At(t0), nil},
		{"beyond size", 5, false, Point{}, exception.ErrIndexOutOfRange},
		{"beyond negative size", -6, false, Point{}, exception.ErrIndexOutOfRange},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := m.Get(t.Context(), "spy", "last", tc.index, tc.checkIndex)
			if tc.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "should be %s but got %s", tc.want, got)
		})
	}

	_, err := m.Get(t.Context(), "SPY", "BID", 0, false)
	assert.True(t, errors.Is(err, exception.ErrUnknownTopic))
}

func TestMemoryDateTimeDisabled(t *testing.T) {
	m := newTestMemory(t, 5, WithDateTime(false))
	pushN(t, m, 0, 1)

	p, err := m.Get(t.Context(), "SPY", "LAST", 0, true)
	require.NoError(t, err)
	assert.False(t, p.HasTime())
}

func TestMemoryStreamSnapshot(t *testing.T) {
	m := newTestMemory(t, 6)
	pushN(t, m, 0, 4)

	all, err := m.StreamSnapshot(t.Context(), "SPY", "LAST", -1, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1, 0}, ints(all))

	padded, err := m.StreamSnapshot(t.Context(), "SPY", "LAST", -1, 2, false)
	require.NoError(t, err)
	require.Len(t, padded, 4)
	assert.Equal(t, int64(1), padded[0].Int)
	assert.True(t, padded[2].IsNil())
	assert.True(t, padded[3].IsNil())

	_, err = m.StreamSnapshot(t.Context(), "SPY", "LAST", 1, 3, false)
	assert.True(t, errors.Is(err, exception.ErrInvalidRange))
}

func TestMemoryMarker(t *testing.T) {
	m := newTestMemory(t, 10)

	got, err := m.StreamSnapshotFromMarker(t.Context(), "SPY", "LAST", 0, true)
	require.NoError(t, err)
	assert.Nil(t, got, "fresh stream should have nothing past the marker")

	pushN(t, m, 0, 3)
	got, err = m.StreamSnapshotFromMarker(t.Context(), "SPY", "LAST", 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 0}, ints(got))

	got, err = m.StreamSnapshotFromMarker(t.Context(), "SPY", "LAST", 0, true)
	require.NoError(t, err)
	assert.Nil(t, got, "marker should not hand out points twice")

	pushN(t, m, 3, 6)
	got, err = m.StreamSnapshotFromMarker(t.Context(), "SPY", "LAST", 1, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3}, ints(got), "beg skips the newest points")

	got, err = m.StreamSnapshotFromMarker(t.Context(), "SPY", "LAST", 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ints(got), "skipped points stay unread")

	got, err = m.StreamSnapshotFromMarker(t.Context(), "SPY", "LAST", 5, true)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryMarkerDataLoss(t *testing.T) {
	m := newTestMemory(t, 4)
	pushN(t, m, 0, 6)

	_, err := m.StreamSnapshotFromMarker(t.Context(), "SPY", "LAST", 0, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrDataLost))

	pushN(t, m, 6, 12)
	got, err := m.StreamSnapshotFromMarker(t.Context(), "SPY", "LAST", 0, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 10, 9, 8}, ints(got), "loss tolerated returns what is left")
}

func TestMemorySetBlockSize(t *testing.T) {
	m := newTestMemory(t, 4)
	pushN(t, m, 0, 6)

	require.NoError(t, m.SetBlockSize(t.Context(), 8))
	occ, err := m.StreamOccupancy(t.Context(), "SPY", "LAST")
	require.NoError(t, err)
	assert.Equal(t, 4, occ)

	pushN(t, m, 6, 8)
	all, err := m.StreamSnapshot(t.Context(), "SPY", "LAST", -1, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 6, 5, 4, 3, 2}, ints(all))

	require.NoError(t, m.SetBlockSize(t.Context(), 2))
	all, err = m.StreamSnapshot(t.Context(), "SPY", "LAST", -1, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 6}, ints(all))

	err = m.SetBlockSize(t.Context(), 0)
	assert.True(t, errors.Is(err, exception.ErrInvalidBlockSize))
}

func TestMemoryFrames(t *testing.T) {
	m := newTestMemory(t, 4)
	pushN(t, m, 0, 2)
	require.True(t, m.Push("QQQ", TopicVolume, wire.IntValue(900)))

	frame, err := m.ItemFrame(t.Context(), "last")
	require.NoError(t, err)
	assert.Equal(t, "LAST", frame.Name)
	assert.Equal(t, []string{"SPY", "QQQ"}, frame.Fields)
	assert.Equal(t, int64(1), frame.Values[0].Int)
	assert.True(t, frame.Values[1].IsNil())

	frame, err = m.TopicFrame(t.Context(), "QQQ")
	require.NoError(t, err)
	v, ok := frame.Get(TopicVolume)
	require.True(t, ok)
	assert.Equal(t, int64(900), v.Int)

	_, err = m.TopicFrame(t.Context(), "IWM")
	assert.True(t, errors.Is(err, exception.ErrUnknownItem))
}

func TestMemoryInfoRecord(t *testing.T) {
	m := newTestMemory(t, 7, WithTimeout(1500*time.Millisecond))

	info, err := m.Info(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Info{Name: "test", Size: 7, DateTime: true, Timeout: 1500 * time.Millisecond, ItemCount: 2, TopicCount: 2}, info)

	back, err := InfoFromRecord(info.Record())
	require.NoError(t, err)
	assert.Equal(t, info, back)

	_, err = InfoFromRecord(wire.Record{Name: "Other"})
	assert.True(t, errors.Is(err, exception.ErrUnexpectedType))
}

func TestMemoryClose(t *testing.T) {
	calls := 0
	m := newTestMemory(t, 4, WithCloseHook(func() { calls++ }))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, calls)

	_, err := m.BlockSize(t.Context())
	assert.True(t, errors.Is(err, exception.ErrBlockClosed))
	assert.False(t, m.Push("SPY", "LAST", wire.IntValue(1)))
}
