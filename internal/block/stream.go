package block

// stream is a fixed-capacity ring of points. seq counts every point ever pushed and
// marker is the seq value the last marker read ended at.
type stream struct {
	buf    []Point
	head   int
	count  int
	seq    int64
	marker int64
}

func newStream(size int) *stream {
	return &stream{buf: make([]Point, size)}
}

func (s *stream) push(p Point) {
	s.buf[s.head] = p
	s.head = (s.head + 1) % len(s.buf)
	s.count = min(s.count+1, len(s.buf))
	s.seq++
}

func (s *stream) occupancy() int {
	return s.count
}

// at returns the point i steps back from the most recent one. i must be below occupancy.
func (s *stream) at(i int) Point {
	return s.buf[(s.head-1-i+2*len(s.buf))%len(s.buf)]
}

// unread is the number of points pushed since the marker, including any already overwritten.
func (s *stream) unread() int64 {
	return s.seq - s.marker
}

// resize keeps the most recent points that still fit.
func (s *stream) resize(size int) {
	n := min(s.count, size)
	buf := make([]Point, size)
	for i := range n {
		buf[n-1-i] = s.at(i)
	}
	s.buf = buf
	s.head = n % size
	s.count = n
}
