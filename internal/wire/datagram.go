package wire

// DatagramSize is the fixed chunk size of a fragmented message.
const DatagramSize = 512

// Fragment splits payload into chunks of exactly size bytes followed by one shorter chunk.
// When len(payload) is a multiple of size the final chunk is empty, so a receiver always
// sees a short chunk last. The chunk count is len(payload)/size + 1.
func Fragment(payload []byte, size int) [][]byte {
	if size <= 0 {
		size = DatagramSize
	}
	n := len(payload)/size + 1
	chunks := make([][]byte, n)
	for i := range chunks {
		start := i * size
		end := min(start+size, len(payload))
		chunks[i] = payload[start:end]
	}
	return chunks
}

// Send fragments payload and hands every chunk to write, in order.
// It returns the number of datagrams written.
func Send(write func(chunk []byte) error, payload []byte, size int) (int, error) {
	sent := 0
	for _, chunk := range Fragment(payload, size) {
		if err := write(chunk); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Reassembler concatenates chunks until one shorter than the datagram size arrives.
type Reassembler struct {
	size int
	buf  []byte
}

// NewReassembler creates a reassembler for the given datagram size.
func NewReassembler(size int) *Reassembler {
	if size <= 0 {
		size = DatagramSize
	}
	return &Reassembler{size: size}
}

// Feed appends chunk. It returns the complete message once a terminal chunk is fed.
func (r *Reassembler) Feed(chunk []byte) ([]byte, bool) {
	r.buf = append(r.buf, chunk...)
	if len(chunk) >= r.size {
		return nil, false
	}
	msg := r.buf
	if msg == nil {
		msg = []byte{}
	}
	r.buf = nil
	return msg, true
}

// Pending reports how many bytes are waiting for a terminal chunk.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}

// Reset drops any partial message.
func (r *Reassembler) Reset() {
	r.buf = nil
}
