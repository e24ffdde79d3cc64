package wire

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"vblock/internal/errors"
	"vblock/pkg/exception"
)

// ArgsVersion is the current argument list encoding version.
const ArgsVersion byte = 1

// ArgType tags the declared type of a positional argument.
type ArgType byte

const (
	ArgInt    ArgType = 'i'
	ArgString ArgType = 's'
	ArgBool   ArgType = 'b'
)

func (t ArgType) IsValid() bool {
	return t == ArgInt || t == ArgString || t == ArgBool
}

// Arg is a positional argument as it travels: a type tag plus a literal.
type Arg struct {
	Type    ArgType
	Literal string
}

func IntArg(n int64) Arg {
	return Arg{Type: ArgInt, Literal: strconv.FormatInt(n, 10)}
}

func StringArg(s string) Arg {
	return Arg{Type: ArgString, Literal: s}
}

func BoolArg(b bool) Arg {
	return Arg{Type: ArgBool, Literal: strconv.FormatBool(b)}
}

// Coerce converts the literal to its declared type.
func (a Arg) Coerce() (Value, error) {
	switch a.Type {
	case ArgInt:
		n, err := strconv.ParseInt(a.Literal, 10, 64)
		if err != nil {
			return Value{}, errors.Wrapf(exception.ErrArgument, "int literal %q", a.Literal)
		}
		return IntValue(n), nil
	case ArgBool:
		b, err := strconv.ParseBool(a.Literal)
		if err != nil {
			return Value{}, errors.Wrapf(exception.ErrArgument, "bool literal %q", a.Literal)
		}
		return BoolValue(b), nil
	case ArgString:
		return StringValue(a.Literal), nil
	default:
		return Value{}, errors.Wrapf(exception.ErrUnknownArgumentType, "tag %q", byte(a.Type))
	}
}

func (a Arg) String() string {
	return string(a.Type) + ":" + a.Literal
}

// CheckDelimiter rejects any string containing the reserved delimiter.
func CheckDelimiter(strs ...string) error {
	for _, s := range strs {
		if bytes.IndexByte([]byte(s), Delimiter) >= 0 {
			return errors.Wrapf(exception.ErrDelimiter, "%q", s)
		}
	}
	return nil
}

// CheckArgs rejects any argument whose literal contains the reserved delimiter.
func CheckArgs(args []Arg) error {
	for _, a := range args {
		if err := CheckDelimiter(a.Literal); err != nil {
			return err
		}
	}
	return nil
}

// EncodeArgs serializes args. An empty list encodes to nil so the message carries no payload.
func EncodeArgs(args []Arg) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	dst := []byte{ArgsVersion}
	dst = binary.AppendUvarint(dst, uint64(len(args)))
	for i, a := range args {
		if !a.Type.IsValid() {
			return nil, errors.Wrapf(exception.ErrUnknownArgumentType, "argument %d tag %q", i, byte(a.Type))
		}
		dst = append(dst, byte(a.Type))
		dst = appendString(dst, a.Literal)
	}
	return dst, nil
}

// DecodeArgs is the inverse of EncodeArgs.
func DecodeArgs(src []byte) ([]Arg, error) {
	if len(src) == 0 {
		return nil, nil
	}
	if src[0] != ArgsVersion {
		return nil, errors.Wrapf(exception.ErrUnsupportedVersion, "argument version %d", src[0])
	}
	d := decoder{src: src[1:]}
	n := d.count()
	args := make([]Arg, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		t := ArgType(d.readByte())
		lit := d.readString()
		if d.err == nil && !t.IsValid() {
			return nil, errors.Wrapf(exception.ErrUnknownArgumentType, "argument %d tag %q", i, byte(t))
		}
		args = append(args, Arg{Type: t, Literal: lit})
	}
	if d.err != nil {
		return nil, d.err
	}
	if len(d.src) != 0 {
		return nil, errors.Wrapf(exception.ErrMalformedMessage, "%d trailing bytes", len(d.src))
	}
	return args, nil
}

// CoerceArgs decodes and coerces every argument.
func CoerceArgs(src []byte) ([]Value, error) {
	args, err := DecodeArgs(src)
	if err != nil {
		return nil, err
	}
	values := make([]Value, 0, len(args))
	for i, a := range args {
		v, err := a.Coerce()
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		values = append(values, v)
	}
	return values, nil
}
