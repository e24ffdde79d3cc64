package intervalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vblock/internal/block"
)

// Kind selects what a bar carries.
type Kind uint8

const (
	KindClose Kind = iota
	KindCloseVolume
	KindOHLC
	KindOHLCV
)

func (k Kind) String() string {
	switch k {
	case KindClose:
		return "C"
	case KindCloseVolume:
		return "CV"
	case KindOHLC:
		return "OHLC"
	case KindOHLCV:
		return "OHLCV"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String, case-insensitive.
func ParseKind(s string) (Kind, bool) {
	for _, k := range []Kind{KindClose, KindCloseVolume, KindOHLC, KindOHLCV} {
		if strings.EqualFold(s, k.String()) {
			return k, true
		}
	}
	return 0, false
}

func (k Kind) HasOHLC() bool {
	return k == KindOHLC || k == KindOHLCV
}

func (k Kind) HasVolume() bool {
	return k == KindCloseVolume || k == KindOHLCV
}

// Bar is one completed interval.
type Bar struct {
	Item     string
	Topic    string
	Kind     Kind
	Interval time.Duration

	// Time is the timestamp of the first point past the boundary.
	Time time.Time

	// Older and Newer are the two points the boundary falls between.
	Older block.Point
	Newer block.Point

	// Value is the close-only point: Newer, or Older with the pre-roll option.
	Value block.Point

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	// Volume is the traded volume since the previous bar. The first bar of a series has none.
	Volume    decimal.Decimal
	HasVolume bool
}

func (b Bar) String() string {
	s := fmt.Sprintf("%s %s %s %s", b.Time.Format(time.RFC3339), b.Item, b.Kind, b.Interval)
	if b.Kind.HasOHLC() {
		s += fmt.Sprintf(" o=%s h=%s l=%s c=%s", b.Open, b.High, b.Low, b.Close)
	} else {
		s += " c=" + b.Value.Literal()
	}
	if b.Kind.HasVolume() {
		if b.HasVolume {
			s += " v=" + b.Volume.String()
		} else {
			s += " v=N/A"
		}
	}
	return s
}
