package feed

import (
	"sync"

	"vblock/internal/block"
	"vblock/internal/wire"
)

// Hub fans ticks out to every attached block. Blocks ignore items and topics they lack.
type Hub struct {
	mu     sync.RWMutex
	blocks map[*block.Memory]struct{}
}

func NewHub() *Hub {
	return &Hub{blocks: make(map[*block.Memory]struct{})}
}

// Attach starts feeding m. The returned func detaches it.
func (h *Hub) Attach(m *block.Memory) func() {
	h.mu.Lock()
	h.blocks[m] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.blocks, m)
		h.mu.Unlock()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.blocks)
}

// Publish pushes the tick's LAST, BID, ASK and VOLUME points. It returns how many points were accepted.
func (h *Hub) Publish(t Tick) int {
	points := [...]struct {
		topic string
		value wire.Value
	}{
		{block.TopicLast, wire.FloatValue(t.Last)},
		{block.TopicBid, wire.FloatValue(t.Bid)},
		{block.TopicAsk, wire.FloatValue(t.Ask)},
		{block.TopicVolume, wire.IntValue(t.Volume)},
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	accepted := 0
	for m := range h.blocks {
		for _, p := range points {
			if m.Push(t.Symbol, p.topic, p.value.At(t.Time)) {
				accepted++
			}
		}
	}
	return accepted
}
