package rpc

import (
	"context"
	"net"
	"time"

	"vblock/internal/block"
	"vblock/internal/wire"
)

// NewMemoryFactory builds in-process blocks from the CREATE arguments
// (size, date_time, timeout_ms), all optional. onCreate, when set, sees every new block and
// returns a func that runs when the block is released.
func NewMemoryFactory(onCreate func(*block.Memory) func()) Factory {
	return func(_ context.Context, caller net.Addr, args []wire.Value) (block.Block, error) {
		r := newArgReader(args)
		size := r.IntOr("size", block.DefaultSize)
		dateTime := r.BoolOr("date_time", true)
		timeoutMs := r.IntOr("timeout_ms", int(block.DefaultTimeout/time.Millisecond))
		if err := r.Done(); err != nil {
			return nil, err
		}

		m, err := block.NewMemory(caller.String(), size,
			block.WithDateTime(dateTime),
			block.WithTimeout(time.Duration(timeoutMs)*time.Millisecond),
		)
		if err != nil {
			return nil, err
		}
		if onCreate != nil {
			m.OnClose(onCreate(m))
		}
		return m, nil
	}
}
