package wire

import (
	"encoding/binary"
	"math"
	"time"

	"vblock/internal/errors"
	"vblock/pkg/exception"
)

// EnvelopeVersion is the current result envelope version.
const EnvelopeVersion byte = 1

const timeFlag byte = 0x80

// Shape discriminates a Result.
type Shape uint8

const (
	ShapeNone Shape = iota
	ShapeScalar
	ShapeSequence
	ShapeRecord
)

// Record is a labeled record: a type name plus parallel field-name and value lists.
type Record struct {
	Name   string
	Fields []string
	Values []Value
}

// Get returns the value of the named field.
func (r Record) Get(field string) (Value, bool) {
	for i, f := range r.Fields {
		if f == field && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

func (r Record) Len() int {
	return len(r.Fields)
}

// Result is the reply envelope of an operation.
type Result struct {
	Shape  Shape
	Scalar Value
	Items  []Value
	Record Record
}

// None is the result of an operation with nothing to report.
func None() Result {
	return Result{Shape: ShapeNone}
}

func Scalar(v Value) Result {
	return Result{Shape: ShapeScalar, Scalar: v}
}

func Sequence(items []Value) Result {
	return Result{Shape: ShapeSequence, Items: items}
}

func Labeled(rec Record) Result {
	return Result{Shape: ShapeRecord, Record: rec}
}

// IsEmpty reports whether the result carries nothing worth sending back;
// such results are answered with a bare SUCCESS.
func (r Result) IsEmpty() bool {
	switch r.Shape {
	case ShapeNone:
		return true
	case ShapeScalar:
		return r.Scalar.IsNil() && !r.Scalar.HasTime()
	case ShapeSequence:
		return len(r.Items) == 0
	default:
		return false
	}
}

// EncodeResult appends the binary envelope of r to dst.
func EncodeResult(dst []byte, r Result) ([]byte, error) {
	dst = append(dst, EnvelopeVersion, byte(r.Shape))
	switch r.Shape {
	case ShapeNone:
		return dst, nil
	case ShapeScalar:
		return appendValue(dst, r.Scalar)
	case ShapeSequence:
		dst = binary.AppendUvarint(dst, uint64(len(r.Items)))
		var err error
		for _, v := range r.Items {
			if dst, err = appendValue(dst, v); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case ShapeRecord:
		if len(r.Record.Fields) != len(r.Record.Values) {
			return nil, errors.Wrapf(exception.ErrMalformedMessage, "record %s has %d fields and %d values",
				r.Record.Name, len(r.Record.Fields), len(r.Record.Values))
		}
		dst = appendString(dst, r.Record.Name)
		dst = binary.AppendUvarint(dst, uint64(len(r.Record.Fields)))
		for _, f := range r.Record.Fields {
			dst = appendString(dst, f)
		}
		var err error
		for _, v := range r.Record.Values {
			if dst, err = appendValue(dst, v); err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		return nil, errors.Wrapf(exception.ErrMalformedMessage, "cannot encode shape %d", r.Shape)
	}
}

// DecodeResult parses an envelope produced by EncodeResult.
func DecodeResult(src []byte) (Result, error) {
	if len(src) < 2 {
		return Result{}, errors.Wrap(exception.ErrMalformedMessage, "short envelope")
	}
	if src[0] != EnvelopeVersion {
		return Result{}, errors.Wrapf(exception.ErrUnsupportedVersion, "version %d", src[0])
	}
	d := decoder{src: src[2:]}
	r := Result{Shape: Shape(src[1])}
	switch r.Shape {
	case ShapeNone:
	case ShapeScalar:
		r.Scalar = d.value()
	case ShapeSequence:
		n := d.count()
		r.Items = make([]Value, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			r.Items = append(r.Items, d.value())
		}
	case ShapeRecord:
		r.Record.Name = d.readString()
		n := d.count()
		r.Record.Fields = make([]string, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			r.Record.Fields = append(r.Record.Fields, d.readString())
		}
		r.Record.Values = make([]Value, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			r.Record.Values = append(r.Record.Values, d.value())
		}
	default:
		return Result{}, errors.Wrapf(exception.ErrMalformedMessage, "unknown shape %d", r.Shape)
	}
	if d.err != nil {
		return Result{}, d.err
	}
	if len(d.src) != 0 {
		return Result{}, errors.Wrapf(exception.ErrMalformedMessage, "%d trailing bytes", len(d.src))
	}
	return r, nil
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendValue(dst []byte, v Value) ([]byte, error) {
	tag := byte(v.Kind)
	if v.HasTime() {
		tag |= timeFlag
	}
	dst = append(dst, tag)
	switch v.Kind {
	case KindNil:
	case KindBool:
		if v.Bool {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case KindInt:
		dst = binary.AppendVarint(dst, v.Int)
	case KindFloat:
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.Float))
	case KindString:
		dst = appendString(dst, v.Str)
	default:
		return nil, errors.Wrapf(exception.ErrMalformedMessage, "cannot encode %s", v.Kind)
	}
	if v.HasTime() {
		dst = binary.AppendVarint(dst, v.Time.UnixNano())
	}
	return dst, nil
}

// decoder reads envelope fields; the first failure sticks and later reads return zero values.
type decoder struct {
	src []byte
	err error
}

func (d *decoder) fail(msg string) {
	if d.err == nil {
		d.err = errors.Wrap(exception.ErrMalformedMessage, msg)
	}
}

func (d *decoder) readByte() byte {
	if d.err != nil {
		return 0
	}
	if len(d.src) < 1 {
		d.fail("truncated envelope")
		return 0
	}
	b := d.src[0]
	d.src = d.src[1:]
	return b
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.src)
	if n <= 0 {
		d.fail("bad uvarint")
		return 0
	}
	d.src = d.src[n:]
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.src)
	if n <= 0 {
		d.fail("bad varint")
		return 0
	}
	d.src = d.src[n:]
	return v
}

// count reads an element count, bounded by the bytes left so a corrupt
// length cannot force a huge allocation.
func (d *decoder) count() int {
	n := d.uvarint()
	if n > uint64(len(d.src)) {
		d.fail("count exceeds envelope")
		return 0
	}
	return int(n)
}

func (d *decoder) readString() string {
	n := d.uvarint()
	if d.err != nil {
		return ""
	}
	if n > uint64(len(d.src)) {
		d.fail("string exceeds envelope")
		return ""
	}
	s := string(d.src[:n])
	d.src = d.src[n:]
	return s
}

func (d *decoder) value() Value {
	tag := d.readByte()
	v := Value{Kind: Kind(tag &^ timeFlag)}
	switch v.Kind {
	case KindNil:
	case KindBool:
		v.Bool = d.readByte() != 0
	case KindInt:
		v.Int = d.varint()
	case KindFloat:
		if d.err == nil && len(d.src) < 8 {
			d.fail("truncated float")
		}
		if d.err == nil {
			v.Float = math.Float64frombits(binary.LittleEndian.Uint64(d.src[:8]))
			d.src = d.src[8:]
		}
	case KindString:
		v.Str = d.readString()
	default:
		d.fail("unknown value kind")
	}
	if tag&timeFlag != 0 {
		v.Time = time.Unix(0, d.varint()).UTC()
	}
	return v
}
