package rpc

import (
	"vblock/internal/errors"
	"vblock/internal/wire"
	"vblock/pkg/exception"
)

// argReader walks coerced positional arguments. The first mismatch sticks and is
// reported by Done, so handlers read everything first and check once.
type argReader struct {
	args []wire.Value
	pos  int
	err  error
}

func newArgReader(args []wire.Value) *argReader {
	return &argReader{args: args}
}

func (r *argReader) next(kind wire.Kind, name string, required bool) (wire.Value, bool) {
	if r.err != nil {
		return wire.Value{}, false
	}
	if r.pos >= len(r.args) {
		if required {
			r.err = errors.Wrapf(exception.ErrArgument, "missing %s", name)
		}
		return wire.Value{}, false
	}
	v := r.args[r.pos]
	if v.Kind != kind {
		r.err = errors.Wrapf(exception.ErrArgument, "%s should be %s but got %s", name, kind, v.Kind)
		return wire.Value{}, false
	}
	r.pos++
	return v, true
}

func (r *argReader) String(name string) string {
	v, _ := r.next(wire.KindString, name, true)
	return v.Str
}

func (r *argReader) Int(name string) int {
	v, _ := r.next(wire.KindInt, name, true)
	return int(v.Int)
}

func (r *argReader) IntOr(name string, def int) int {
	v, ok := r.next(wire.KindInt, name, false)
	if !ok {
		return def
	}
	return int(v.Int)
}

func (r *argReader) BoolOr(name string, def bool) bool {
	v, ok := r.next(wire.KindBool, name, false)
	if !ok {
		return def
	}
	return v.Bool
}

// Strings consumes every remaining argument; each must be a string.
func (r *argReader) Strings(name string) []string {
	var out []string
	for r.err == nil && r.pos < len(r.args) {
		out = append(out, r.String(name))
	}
	return out
}

// Done reports the first mismatch, or leftover arguments.
func (r *argReader) Done() error {
	if r.err != nil {
		return r.err
	}
	if r.pos < len(r.args) {
		return errors.Wrapf(exception.ErrArgument, "%d unexpected arguments", len(r.args)-r.pos)
	}
	return nil
}
