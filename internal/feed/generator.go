package feed

import (
	"math/rand/v2"
	"strings"
	"time"

	"vblock/internal/errors"
	"vblock/pkg/exception"
)

// Tick is one synthetic quote-and-trade update for a symbol.
type Tick struct {
	Symbol string
	Last   float64
	Bid    float64
	Ask    float64
	Size   int64
	// Volume is cumulative for the session.
	Volume int64
	Time   time.Time
}

// Generator creates a random walk of ticks, cycling through its symbols.
type Generator struct {
	symbols  []string
	prices   []float64
	volumes  []int64
	step     float64
	spread   float64
	baseSize int64
	rnd      *rand.Rand
	index    int
}

// NewGenerator creates a generator starting every symbol at basePrice.
func NewGenerator(symbols []string, basePrice, step, spread float64, baseSize int64, seed uint64) (*Generator, error) {
	if len(symbols) == 0 {
		return nil, errors.Wrap(exception.ErrValidation, "generator has no symbols")
	}
	if basePrice <= 0 {
		return nil, errors.Wrapf(exception.ErrValidation, "base price %v", basePrice)
	}
	if baseSize <= 0 {
		baseSize = 1
	}
	if spread < 0 {
		spread = 0
	}

	g := &Generator{
		symbols:  make([]string, 0, len(symbols)),
		prices:   make([]float64, len(symbols)),
		volumes:  make([]int64, len(symbols)),
		step:     step,
		spread:   spread,
		baseSize: baseSize,
		rnd:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for i, s := range symbols {
		g.symbols = append(g.symbols, strings.ToUpper(s))
		g.prices[i] = basePrice
	}
	return g, nil
}

func (g *Generator) Symbols() []string {
	return append([]string(nil), g.symbols...)
}

// Next creates the next tick in sequence.
func (g *Generator) Next(now time.Time) Tick {
	i := g.index
	g.index = (g.index + 1) % len(g.symbols)

	price := g.prices[i] + (g.rnd.Float64()*2-1)*g.step
	if price <= g.step {
		price = g.prices[i]
	}
	g.prices[i] = price

	size := g.baseSize + g.rnd.Int64N(g.baseSize*4+1)
	g.volumes[i] += size

	return Tick{
		Symbol: g.symbols[i],
		Last:   price,
		Bid:    price - g.spread,
		Ask:    price + g.spread,
		Size:   size,
		Volume: g.volumes[i],
		Time:   now,
	}
}
