package wire

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vblock/internal/errors"
	"vblock/pkg/exception"
)

func TestResultRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 15, 250, time.UTC)
	testCases := []struct {
		desc   string
		result Result
	}{
		{"none", None()},
		{"int", Scalar(IntValue(-42))},
		{"float", Scalar(FloatValue(math.Pi))},
		{"string", Scalar(StringValue("a*b"))},
		{"bool", Scalar(BoolValue(true))},
		{"timed", Scalar(FloatValue(1.5).At(ts))},
		{"timed nil", Scalar(NilValue().At(ts))},
		{"sequence", Sequence([]Value{IntValue(1), NilValue(), StringValue("x").At(ts)})},
		{"record", Labeled(Record{
			Name:   "BlockInfo",
			Fields: []string{"Name", "Size"},
			Values: []Value{StringValue("b1"), IntValue(100)},
		})},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			b, err := EncodeResult(nil, tc.result)
			require.NoError(t, err)

			got, err := DecodeResult(b)
			require.NoError(t, err)
			require.Equal(t, tc.result.Shape, got.Shape)
			assert.True(t, tc.result.Scalar.Equal(got.Scalar), "scalar %s != %s", tc.result.Scalar, got.Scalar)
			require.Len(t, got.Items, len(tc.result.Items))
			for i := range tc.result.Items {
				assert.True(t, tc.result.Items[i].Equal(got.Items[i]), "item %d", i)
			}
			assert.Equal(t, tc.result.Record.Name, got.Record.Name)
			assert.Equal(t, len(tc.result.Record.Fields), len(got.Record.Fields))
			for i, f := range tc.result.Record.Fields {
				v, ok := got.Record.Get(f)
				require.True(t, ok)
				assert.True(t, tc.result.Record.Values[i].Equal(v))
			}
		})
	}
}

func TestResultIsEmpty(t *testing.T) {
	assert.True(t, None().IsEmpty())
	assert.True(t, Scalar(NilValue()).IsEmpty())
	assert.True(t, Sequence(nil).IsEmpty())
	assert.False(t, Scalar(NilValue().At(time.Now())).IsEmpty())
	assert.False(t, Scalar(IntValue(0)).IsEmpty())
	assert.False(t, Scalar(BoolValue(false)).IsEmpty())
	assert.False(t, Labeled(Record{Name: "R"}).IsEmpty())
}

func TestDecodeResultErrors(t *testing.T) {
	good, err := EncodeResult(nil, Sequence([]Value{StringValue("abc")}))
	require.NoError(t, err)

	testCases := []struct {
		desc  string
		input []byte
		err   error
	}{
		{"short", []byte{EnvelopeVersion}, exception.ErrMalformedMessage},
		{"version", []byte{9, byte(ShapeNone)}, exception.ErrUnsupportedVersion},
		{"shape", []byte{EnvelopeVersion, 9}, exception.ErrMalformedMessage},
		{"truncated", good[:len(good)-1], exception.ErrMalformedMessage},
		{"trailing", append(append([]byte(nil), good...), 0), exception.ErrMalformedMessage},
		{"huge count", []byte{EnvelopeVersion, byte(ShapeSequence), 0xff, 0xff, 0x03}, exception.ErrMalformedMessage},
		{"bad kind", []byte{EnvelopeVersion, byte(ShapeScalar), 0x7f}, exception.ErrMalformedMessage},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := DecodeResult(tc.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.err), "got %v", err)
		})
	}
}

func TestEncodeResultRejectsUnevenRecord(t *testing.T) {
	_, err := EncodeResult(nil, Labeled(Record{Name: "R", Fields: []string{"a"}}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrMalformedMessage))
}
