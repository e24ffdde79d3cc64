package rpc

import (
	"context"

	"vblock/internal/block"
	"vblock/internal/wire"
)

// Wire names of the block operations.
const (
	MethodInfo                     = "info"
	MethodBlockSize                = "get_block_size"
	MethodSetBlockSize             = "set_block_size"
	MethodStreamOccupancy          = "stream_occupancy"
	MethodItems                    = "items"
	MethodTopics                   = "topics"
	MethodAddItems                 = "add_items"
	MethodAddTopics                = "add_topics"
	MethodRemoveItems              = "remove_items"
	MethodRemoveTopics             = "remove_topics"
	MethodGet                      = "get"
	MethodStreamSnapshot           = "stream_snapshot"
	MethodStreamSnapshotFromMarker = "stream_snapshot_from_marker"
	MethodItemFrame                = "item_frame"
	MethodTopicFrame               = "topic_frame"
)

type method func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error)

// blockMethods is the closed set of operations a remote caller may invoke.
var blockMethods = map[string]method{
	MethodInfo: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		info, err := b.Info(ctx)
		if err != nil {
			return wire.Result{}, err
		}
		return wire.Labeled(info.Record()), nil
	},
	MethodBlockSize: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		size, err := b.BlockSize(ctx)
		return wire.Scalar(wire.IntValue(int64(size))), err
	},
	MethodSetBlockSize: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		size := args.Int("size")
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		return wire.None(), b.SetBlockSize(ctx, size)
	},
	MethodStreamOccupancy: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		item, topic := args.String("item"), args.String("topic")
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		n, err := b.StreamOccupancy(ctx, item, topic)
		return wire.Scalar(wire.IntValue(int64(n))), err
	},
	MethodItems: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		items, err := b.Items(ctx)
		return wire.Sequence(stringValues(items)), err
	},
	MethodTopics: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		topics, err := b.Topics(ctx)
		return wire.Sequence(stringValues(topics)), err
	},
	MethodAddItems:     namesMethod(block.Block.AddItems),
	MethodAddTopics:    namesMethod(block.Block.AddTopics),
	MethodRemoveItems:  namesMethod(block.Block.RemoveItems),
	MethodRemoveTopics: namesMethod(block.Block.RemoveTopics),
	MethodGet: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		item, topic := args.String("item"), args.String("topic")
		index, checkIndex := args.IntOr("index", 0), args.BoolOr("check_index", true)
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		p, err := b.Get(ctx, item, topic, index, checkIndex)
		return wire.Scalar(p), err
	},
	MethodStreamSnapshot: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		item, topic := args.String("item"), args.String("topic")
		end, beg := args.IntOr("end", -1), args.IntOr("beg", 0)
		smartSize := args.BoolOr("smart_size", true)
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		points, err := b.StreamSnapshot(ctx, item, topic, end, beg, smartSize)
		return wire.Sequence(points), err
	},
	MethodStreamSnapshotFromMarker: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		item, topic := args.String("item"), args.String("topic")
		beg, failOnLoss := args.IntOr("beg", 0), args.BoolOr("fail_on_loss", true)
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		points, err := b.StreamSnapshotFromMarker(ctx, item, topic, beg, failOnLoss)
		return wire.Sequence(points), err
	},
	MethodItemFrame: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		topic := args.String("topic")
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		frame, err := b.ItemFrame(ctx, topic)
		return wire.Labeled(frame), err
	},
	MethodTopicFrame: func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		item := args.String("item")
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		frame, err := b.TopicFrame(ctx, item)
		return wire.Labeled(frame), err
	},
}

func namesMethod(fn func(block.Block, context.Context, ...string) error) method {
	return func(ctx context.Context, b block.Block, args *argReader) (wire.Result, error) {
		names := args.Strings("name")
		if err := args.Done(); err != nil {
			return wire.Result{}, err
		}
		return wire.None(), fn(b, ctx, names...)
	}
}

func stringValues(strs []string) []wire.Value {
	values := make([]wire.Value, 0, len(strs))
	for _, s := range strs {
		values = append(values, wire.StringValue(s))
	}
	return values
}
