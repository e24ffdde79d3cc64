package block

import (
	"context"
	"time"

	"vblock/internal/errors"
	"vblock/internal/wire"
	"vblock/pkg/exception"
)

// Point is one stream value, stamped with its arrival time when the block records date-times.
type Point = wire.Value

// Frame is a labeled cross-section of a block: one field per item or per topic.
type Frame = wire.Record

// Well-known topics.
const (
	TopicLast   = "LAST"
	TopicBid    = "BID"
	TopicAsk    = "ASK"
	TopicVolume = "VOLUME"
)

// Block is a live data block: a named set of item x topic streams of bounded length.
//
// Stream indexes count back from the most recent point (0). Negative indexes count
// forward from the block-size end, so -1 is the oldest slot.
type Block interface {
	Info(ctx context.Context) (Info, error)
	BlockSize(ctx context.Context) (int, error)
	SetBlockSize(ctx context.Context, size int) error
	StreamOccupancy(ctx context.Context, item, topic string) (int, error)

	Items(ctx context.Context) ([]string, error)
	Topics(ctx context.Context) ([]string, error)
	AddItems(ctx context.Context, items ...string) error
	AddTopics(ctx context.Context, topics ...string) error
	RemoveItems(ctx context.Context, items ...string) error
	RemoveTopics(ctx context.Context, topics ...string) error

	// Get returns the point at index. Past the occupied part of the stream it returns a nil
	// point, or ErrIndexOutOfRange when checkIndex is set.
	Get(ctx context.Context, item, topic string, index int, checkIndex bool) (Point, error)

	// StreamSnapshot returns points beg..end, newest first. end = -1 is the oldest slot.
	// With smartSize the result stops at the occupied part instead of padding with nil points.
	StreamSnapshot(ctx context.Context, item, topic string, end, beg int, smartSize bool) ([]Point, error)

	// StreamSnapshotFromMarker returns the points that arrived since the previous marker read,
	// newest first, skipping the newest beg of them, and moves the marker up to them.
	// It returns nil when nothing lies between beg and the marker. Points pushed out of the
	// stream before they were read are reported as ErrDataLost when failOnLoss is set.
	StreamSnapshotFromMarker(ctx context.Context, item, topic string, beg int, failOnLoss bool) ([]Point, error)

	ItemFrame(ctx context.Context, topic string) (Frame, error)
	TopicFrame(ctx context.Context, item string) (Frame, error)
}

// Info describes a block.
type Info struct {
	Name       string
	Size       int
	DateTime   bool
	Timeout    time.Duration
	ItemCount  int
	TopicCount int
}

const infoRecordName = "BlockInfo"

var infoFields = []string{"Name", "Size", "DateTime", "Timeout", "ItemCount", "TopicCount"}

// Record converts the info into its labeled form. Timeout travels in milliseconds.
func (i Info) Record() wire.Record {
	return wire.Record{
		Name:   infoRecordName,
		Fields: append([]string(nil), infoFields...),
		Values: []wire.Value{
			wire.StringValue(i.Name),
			wire.IntValue(int64(i.Size)),
			wire.BoolValue(i.DateTime),
			wire.IntValue(i.Timeout.Milliseconds()),
			wire.IntValue(int64(i.ItemCount)),
			wire.IntValue(int64(i.TopicCount)),
		},
	}
}

// InfoFromRecord is the inverse of Info.Record.
func InfoFromRecord(r wire.Record) (Info, error) {
	if r.Name != infoRecordName {
		return Info{}, errors.Wrapf(exception.ErrUnexpectedType, "record %s", r.Name)
	}

	var info Info
	for _, f := range infoFields {
		v, ok := r.Get(f)
		if !ok {
			return Info{}, errors.Wrapf(exception.ErrUnexpectedType, "record %s lacks %s", r.Name, f)
		}
		switch f {
		case "Name":
			info.Name = v.Str
		case "Size":
			info.Size = int(v.Int)
		case "DateTime":
			info.DateTime = v.Bool
		case "Timeout":
			info.Timeout = time.Duration(v.Int) * time.Millisecond
		case "ItemCount":
			info.ItemCount = int(v.Int)
		case "TopicCount":
			info.TopicCount = int(v.Int)
		}
	}
	return info, nil
}
