package rpc

import (
	"context"

	"vblock/internal/block"
	"vblock/internal/errors"
	"vblock/internal/wire"
	"vblock/pkg/exception"
)

var _ block.Block = (*Proxy)(nil)

// CreateBlock asks the server for a new block of the given size.
func (p *Proxy) CreateBlock(ctx context.Context, size int, dateTime bool, timeoutMs int) error {
	return p.Create(ctx, wire.IntArg(int64(size)), wire.BoolArg(dateTime), wire.IntArg(int64(timeoutMs)))
}

func (p *Proxy) Info(ctx context.Context) (block.Info, error) {
	res, _, err := p.call(ctx, MethodInfo)
	if err != nil {
		return block.Info{}, err
	}
	if res.Shape != wire.ShapeRecord {
		return block.Info{}, errors.Wrap(exception.ErrUnexpectedType, MethodInfo)
	}
	return block.InfoFromRecord(res.Record)
}

func (p *Proxy) BlockSize(ctx context.Context) (int, error) {
	v, err := p.scalar(ctx, MethodBlockSize, wire.KindInt)
	return int(v.Int), err
}

func (p *Proxy) SetBlockSize(ctx context.Context, size int) error {
	_, _, err := p.call(ctx, MethodSetBlockSize, wire.IntArg(int64(size)))
	return err
}

func (p *Proxy) StreamOccupancy(ctx context.Context, item, topic string) (int, error) {
	v, err := p.scalar(ctx, MethodStreamOccupancy, wire.KindInt, wire.StringArg(item), wire.StringArg(topic))
	return int(v.Int), err
}

func (p *Proxy) Items(ctx context.Context) ([]string, error) {
	return p.strings(ctx, MethodItems)
}

func (p *Proxy) Topics(ctx context.Context) ([]string, error) {
	return p.strings(ctx, MethodTopics)
}

func (p *Proxy) AddItems(ctx context.Context, items ...string) error {
	_, _, err := p.call(ctx, MethodAddItems, stringArgs(items)...)
	return err
}

func (p *Proxy) AddTopics(ctx context.Context, topics ...string) error {
	_, _, err := p.call(ctx, MethodAddTopics, stringArgs(topics)...)
	return err
}

func (p *Proxy) RemoveItems(ctx context.Context, items ...string) error {
	_, _, err := p.call(ctx, MethodRemoveItems, stringArgs(items)...)
	return err
}

func (p *Proxy) RemoveTopics(ctx context.Context, topics ...string) error {
	_, _, err := p.call(ctx, MethodRemoveTopics, stringArgs(topics)...)
	return err
}

func (p *Proxy) Get(ctx context.Context, item, topic string, index int, checkIndex bool) (block.Point, error) {
	res, bare, err := p.call(ctx, MethodGet,
		wire.StringArg(item), wire.StringArg(topic), wire.IntArg(int64(index)), wire.BoolArg(checkIndex))
	if err != nil {
		return block.Point{}, err
	}
	if bare {
		return wire.NilValue(), nil
	}
	if res.Shape != wire.ShapeScalar {
		return block.Point{}, errors.Wrap(exception.ErrUnexpectedType, MethodGet)
	}
	return res.Scalar, nil
}

func (p *Proxy) StreamSnapshot(ctx context.Context, item, topic string, end, beg int, smartSize bool) ([]block.Point, error) {
	return p.sequence(ctx, MethodStreamSnapshot,
		wire.StringArg(item), wire.StringArg(topic), wire.IntArg(int64(end)), wire.IntArg(int64(beg)), wire.BoolArg(smartSize))
}

func (p *Proxy) StreamSnapshotFromMarker(ctx context.Context, item, topic string, beg int, failOnLoss bool) ([]block.Point, error) {
	return p.sequence(ctx, MethodStreamSnapshotFromMarker,
		wire.StringArg(item), wire.StringArg(topic), wire.IntArg(int64(beg)), wire.BoolArg(failOnLoss))
}

func (p *Proxy) ItemFrame(ctx context.Context, topic string) (block.Frame, error) {
	return p.frame(ctx, MethodItemFrame, wire.StringArg(topic))
}

func (p *Proxy) TopicFrame(ctx context.Context, item string) (block.Frame, error) {
	return p.frame(ctx, MethodTopicFrame, wire.StringArg(item))
}

func (p *Proxy) scalar(ctx context.Context, method string, kind wire.Kind, args ...wire.Arg) (wire.Value, error) {
	res, _, err := p.call(ctx, method, args...)
	if err != nil {
		return wire.Value{}, err
	}
	if res.Shape != wire.ShapeScalar || res.Scalar.Kind != kind {
		return wire.Value{}, errors.Wrapf(exception.ErrUnexpectedType, "%s should return %s", method, kind)
	}
	return res.Scalar, nil
}

// sequence maps a bare SUCCESS to an empty (nil) result.
func (p *Proxy) sequence(ctx context.Context, method string, args ...wire.Arg) ([]wire.Value, error) {
	res, bare, err := p.call(ctx, method, args...)
	if err != nil || bare {
		return nil, err
	}
	if res.Shape != wire.ShapeSequence {
		return nil, errors.Wrapf(exception.ErrUnexpectedType, "%s should return a sequence", method)
	}
	return res.Items, nil
}

func (p *Proxy) strings(ctx context.Context, method string) ([]string, error) {
	items, err := p.sequence(ctx, method)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, v := range items {
		if v.Kind != wire.KindString {
			return nil, errors.Wrapf(exception.ErrUnexpectedType, "%s returned %s", method, v.Kind)
		}
		out = append(out, v.Str)
	}
	return out, nil
}

func (p *Proxy) frame(ctx context.Context, method string, args ...wire.Arg) (block.Frame, error) {
	res, _, err := p.call(ctx, method, args...)
	if err != nil {
		return block.Frame{}, err
	}
	if res.Shape != wire.ShapeRecord {
		return block.Frame{}, errors.Wrapf(exception.ErrUnexpectedType, "%s should return a record", method)
	}
	return res.Record, nil
}

func stringArgs(strs []string) []wire.Arg {
	args := make([]wire.Arg, 0, len(strs))
	for _, s := range strs {
		args = append(args, wire.StringArg(s))
	}
	return args
}
