package wire

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragment(t *testing.T) {
	const d = DatagramSize
	testCases := []struct {
		desc   string
		length int
		chunks int
	}{
		{"empty", 0, 1},
		{"one short", d - 1, 1},
		{"exact", d, 2},
		{"exact plus one", d + 1, 2},
		{"five exact", 5 * d, 6},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			payload := make([]byte, tc.length)
			for i := range payload {
				payload[i] = byte(rand.IntN(256))
			}

			chunks := Fragment(payload, d)
			require.Len(t, chunks, tc.chunks)
			for i, c := range chunks[:len(chunks)-1] {
				if len(c) != d {
					t.Fatalf("chunk %d should be %d bytes but got %d", i, d, len(c))
				}
			}
			require.Less(t, len(chunks[len(chunks)-1]), d)

			r := NewReassembler(d)
			var (
				msg  []byte
				done bool
			)
			for i, c := range chunks {
				msg, done = r.Feed(c)
				if i < len(chunks)-1 {
					require.False(t, done, "chunk %d should not complete", i)
				}
			}
			require.True(t, done)
			require.NotNil(t, msg)
			if !bytes.Equal(payload, msg) {
				t.Fatalf("reassembled payload mismatch for length %d", tc.length)
			}
			assert.Zero(t, r.Pending())
		})
	}
}

func TestSendCountsDatagrams(t *testing.T) {
	var got [][]byte
	n, err := Send(func(c []byte) error {
		got = append(got, append([]byte(nil), c...))
		return nil
	}, make([]byte, 2*16), 16)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, got, 3)
	assert.Empty(t, got[2])
}

func TestReassemblerReset(t *testing.T) {
	r := NewReassembler(4)
	_, done := r.Feed([]byte("abcd"))
	require.False(t, done)
	require.Equal(t, 4, r.Pending())

	r.Reset()
	msg, done := r.Feed([]byte("xy"))
	require.True(t, done)
	assert.Equal(t, []byte("xy"), msg)
}
