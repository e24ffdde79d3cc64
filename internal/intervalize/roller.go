package intervalize

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"vblock/internal/block"
	"vblock/internal/errors"
	"vblock/internal/wire"
	"vblock/pkg/exception"
)

// Roller finds interval boundaries in a stream of points and builds bars.
// Open, high and low survive between calls so a bar may span several polls.
type Roller struct {
	kind     Kind
	interval time.Duration
	loc      *time.Location
	preRoll  bool

	started bool
	open    decimal.Decimal
	high    decimal.Decimal
	low     decimal.Decimal
}

// NewRoller creates a roller. A nil loc means UTC.
func NewRoller(kind Kind, interval time.Duration, loc *time.Location, preRoll bool) *Roller {
	if loc == nil {
		loc = time.UTC
	}
	return &Roller{kind: kind, interval: interval, loc: loc, preRoll: preRoll}
}

// Roll scans points, oldest first, and calls emit for every boundary between adjacent points:
// a phase wrap, or a gap longer than the interval. It returns the points from the last
// boundary on, which must be passed back in front of the next batch.
func (r *Roller) Roll(points []block.Point, emit func(Bar) error) ([]block.Point, error) {
	if len(points) == 0 {
		return nil, nil
	}
	for _, p := range points {
		if !p.HasTime() {
			return nil, errors.Wrap(exception.ErrDateTimeDisabled, "point without timestamp")
		}
	}

	if r.kind.HasOHLC() && !r.started {
		v, err := price(points[0])
		if err != nil {
			return nil, err
		}
		r.open, r.high, r.low = v, v, v
		r.started = true
	}

	start := 0
	for i := 1; i < len(points); i++ {
		older, newer := points[i-1], points[i]
		if !r.boundary(older, newer) {
			if err := r.extend(newer); err != nil {
				return nil, err
			}
			continue
		}

		bar, err := r.bar(older, newer)
		if err != nil {
			return nil, err
		}
		if err := emit(bar); err != nil {
			return nil, err
		}
		if r.kind.HasOHLC() {
			v, err := price(newer)
			if err != nil {
				return nil, err
			}
			r.open, r.high, r.low = v, v, v
		}
		start = i
	}
	return slices.Clone(points[start:]), nil
}

func (r *Roller) boundary(older, newer block.Point) bool {
	if newer.Time.Sub(older.Time) > r.interval {
		return true
	}
	return phase(newer.Time.In(r.loc), r.interval) < phase(older.Time.In(r.loc), r.interval)
}

func (r *Roller) extend(p block.Point) error {
	if !r.kind.HasOHLC() {
		return nil
	}
	v, err := price(p)
	if err != nil {
		return err
	}
	if v.GreaterThan(r.high) {
		r.high = v
	}
	if v.LessThan(r.low) {
		r.low = v
	}
	return nil
}

func (r *Roller) bar(older, newer block.Point) (Bar, error) {
	bar := Bar{
		Kind:     r.kind,
		Interval: r.interval,
		Time:     newer.Time,
		Older:    older,
		Newer:    newer,
		Value:    newer,
	}
	if r.preRoll {
		bar.Value = older
	}

	if r.kind.HasOHLC() {
		c, err := price(older)
		if err != nil {
			return Bar{}, err
		}
		bar.Open, bar.High, bar.Low, bar.Close = r.open, r.high, r.low, c
		return bar, nil
	}
	if c, err := price(bar.Value); err == nil {
		bar.Close = c
	}
	return bar, nil
}

func price(p block.Point) (decimal.Decimal, error) {
	if p.Kind == wire.KindInt {
		return decimal.NewFromInt(p.Int), nil
	}
	f, ok := p.Float64()
	if !ok {
		return decimal.Decimal{}, errors.Wrapf(exception.ErrNonNumericPoint, "%s", p)
	}
	return decimal.NewFromFloat(f), nil
}
