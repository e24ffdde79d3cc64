package store

import (
	"time"

	"github.com/shopspring/decimal"

	"vblock/internal/bus"
)

// BarRecord is the persisted and published form of a bar.
type BarRecord struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Item      string           `gorm:"size:64;index:idx_bar_series,priority:1" json:"item"`
	Topic     string           `gorm:"size:64;index:idx_bar_series,priority:2" json:"topic"`
	Kind      string           `gorm:"size:8" json:"kind"`
	Interval  int64            `gorm:"index:idx_bar_series,priority:3" json:"interval_sec"`
	Time      time.Time        `gorm:"index:idx_bar_series,priority:4" json:"time"`
	Open      *decimal.Decimal `gorm:"type:numeric" json:"open,omitempty"`
	High      *decimal.Decimal `gorm:"type:numeric" json:"high,omitempty"`
	Low       *decimal.Decimal `gorm:"type:numeric" json:"low,omitempty"`
	Close     decimal.Decimal  `gorm:"type:numeric" json:"close"`
	Volume    *decimal.Decimal `gorm:"type:numeric" json:"volume,omitempty"`
	CreatedAt time.Time        `json:"-"`
}

func (BarRecord) TableName() string {
	return "bars"
}

// NewBarRecord flattens e. Fields the bar kind does not carry stay nil.
func NewBarRecord(e bus.Event) BarRecord {
	b := e.Bar
	r := BarRecord{
		ID:       e.ID,
		Item:     b.Item,
		Topic:    b.Topic,
		Kind:     b.Kind.String(),
		Interval: int64(b.Interval / time.Second),
		Time:     b.Time.UTC(),
		Close:    b.Close,
	}
	if b.Kind.HasOHLC() {
		r.Open, r.High, r.Low = ptr(b.Open), ptr(b.High), ptr(b.Low)
	}
	if b.Kind.HasVolume() && b.HasVolume {
		r.Volume = ptr(b.Volume)
	}
	return r
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
