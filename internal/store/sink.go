package store

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"vblock/internal/bus"
	"vblock/internal/errors"
	"vblock/internal/obs"
)

// Sink receives finished bars.
type Sink interface {
	Name() string
	Write(ctx context.Context, e bus.Event) error
	Close() error
}

// Fanout drains a queue into every sink. A failing sink is logged and does not stop the others.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration
	metrics *obs.Metrics
}

// NewFanout bounds each write by timeout. metrics may be nil.
func NewFanout(timeout time.Duration, metrics *obs.Metrics, sinks ...Sink) *Fanout {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Fanout{sinks: sinks, timeout: timeout, metrics: metrics}
}

// Run blocks until the queue is closed and drained or ctx is done, then closes every sink.
func (f *Fanout) Run(ctx context.Context, q *bus.Queue) error {
	q.Run(ctx, func(e bus.Event) {
		f.deliver(ctx, e)
	})
	return f.Close()
}

func (f *Fanout) deliver(ctx context.Context, e bus.Event) {
	start := time.Now()
	defer func() { f.metrics.ObserveSink(time.Since(start)) }()

	for _, s := range f.sinks {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		if err := s.Write(wctx, e); err != nil {
			logs.Errorf("sink %s: write bar %d (%s): %+v", s.Name(), e.ID, e.Bar, err)
		}
		cancel()
	}
}

func (f *Fanout) Close() error {
	var first error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close sink %s", s.Name())
		}
	}
	return first
}

// LogSink writes bars to the process log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Write(_ context.Context, e bus.Event) error {
	logs.Infof("bar #%d %s", e.ID, e.Bar)
	return nil
}

func (LogSink) Close() error { return nil }
