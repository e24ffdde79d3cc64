package feed

import (
	"context"
	"time"

	"github.com/yanun0323/logs"
	"golang.org/x/time/rate"
)

// Simulator paces a Generator into a Hub.
type Simulator struct {
	gen     *Generator
	hub     *Hub
	limiter *rate.Limiter
	now     func() time.Time
}

// NewSimulator emits ticksPerSecond ticks, spread across the generator's symbols.
func NewSimulator(gen *Generator, hub *Hub, ticksPerSecond float64) *Simulator {
	if ticksPerSecond <= 0 {
		ticksPerSecond = 1
	}
	return &Simulator{
		gen:     gen,
		hub:     hub,
		limiter: rate.NewLimiter(rate.Limit(ticksPerSecond), 1),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run publishes ticks until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	logs.Infof("feed simulator started for %v", s.gen.Symbols())
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.hub.Publish(s.gen.Next(s.now()))
	}
}
