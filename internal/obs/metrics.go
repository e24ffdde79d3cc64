package obs

import (
	"sync/atomic"
	"time"

	"vblock/internal/wire"
)

const messageTypes = int(wire.TypeSuccessTyped-wire.TypeCreate) + 1

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	requests    [messageTypes]uint64
	replies     [messageTypes]uint64
	malformed   uint64
	datagrams   uint64
	staleChunks uint64
	barsEmitted uint64
	emptyPolls  uint64
	queueDrops  uint64
	queueClosed uint64

	dispatchLatency LatencyStats
	pollLatency     LatencyStats
	sinkLatency     LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Requests        map[wire.MessageType]uint64
	Replies         map[wire.MessageType]uint64
	Malformed       uint64
	Datagrams       uint64
	StaleChunks     uint64
	BarsEmitted     uint64
	EmptyPolls      uint64
	QueueDrops      uint64
	QueueClosed     uint64
	DispatchLatency LatencySnapshot
	PollLatency     LatencySnapshot
	SinkLatency     LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func typeIndex(t wire.MessageType) int {
	if !t.IsValid() {
		return -1
	}
	return int(t - wire.TypeCreate)
}

// ObserveRequest counts a decoded request and how long it took to answer.
func (m *Metrics) ObserveRequest(t wire.MessageType, d time.Duration) {
	if m == nil {
		return
	}
	if idx := typeIndex(t); idx >= 0 {
		atomic.AddUint64(&m.requests[idx], 1)
	}
	m.dispatchLatency.Observe(d)
}

// IncReply counts a reply by its status.
func (m *Metrics) IncReply(t wire.MessageType) {
	if m == nil {
		return
	}
	if idx := typeIndex(t); idx >= 0 {
		atomic.AddUint64(&m.replies[idx], 1)
	}
}

func (m *Metrics) IncMalformed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.malformed, 1)
}

func (m *Metrics) AddDatagrams(n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.datagrams, uint64(n))
}

// IncStaleChunks records a partial message dropped because its sender went quiet.
func (m *Metrics) IncStaleChunks() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.staleChunks, 1)
}

// ObservePoll measures one marker read; empty polls are counted separately.
func (m *Metrics) ObservePoll(d time.Duration, points int) {
	if m == nil {
		return
	}
	if points == 0 {
		atomic.AddUint64(&m.emptyPolls, 1)
	}
	m.pollLatency.Observe(d)
}

func (m *Metrics) IncBars() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.barsEmitted, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveSink measures one bar write.
func (m *Metrics) ObserveSink(d time.Duration) {
	if m == nil {
		return
	}
	m.sinkLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	requests := make(map[wire.MessageType]uint64)
	replies := make(map[wire.MessageType]uint64)
	for i := range m.requests {
		if v := atomic.LoadUint64(&m.requests[i]); v > 0 {
			requests[wire.TypeCreate+wire.MessageType(i)] = v
		}
		if v := atomic.LoadUint64(&m.replies[i]); v > 0 {
			replies[wire.TypeCreate+wire.MessageType(i)] = v
		}
	}
	return Snapshot{
		Requests:        requests,
		Replies:         replies,
		Malformed:       atomic.LoadUint64(&m.malformed),
		Datagrams:       atomic.LoadUint64(&m.datagrams),
		StaleChunks:     atomic.LoadUint64(&m.staleChunks),
		BarsEmitted:     atomic.LoadUint64(&m.barsEmitted),
		EmptyPolls:      atomic.LoadUint64(&m.emptyPolls),
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		QueueClosed:     atomic.LoadUint64(&m.queueClosed),
		DispatchLatency: m.dispatchLatency.Snapshot(),
		PollLatency:     m.pollLatency.Snapshot(),
		SinkLatency:     m.sinkLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		lo := atomic.LoadUint64(&l.min)
		if lo != 0 && nanos >= lo {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, lo, nanos) {
			break
		}
	}

	for {
		hi := atomic.LoadUint64(&l.max)
		if nanos <= hi {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, hi, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(sum / count),
	}
}
