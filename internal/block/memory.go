package block

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"vblock/internal/errors"
	"vblock/internal/wire"
	"vblock/pkg/exception"
)

const (
	DefaultSize    = 1000
	DefaultTimeout = 2 * time.Second
	MaxSize        = 1 << 20
)

var _ Block = (*Memory)(nil)

// Option customizes a Memory block.
type Option func(*Memory)

// WithDateTime controls whether points keep their timestamps.
func WithDateTime(enabled bool) Option {
	return func(m *Memory) { m.dateTime = enabled }
}

func WithTimeout(d time.Duration) Option {
	return func(m *Memory) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithCloseHook registers fn to run once when the block is closed.
func WithCloseHook(fn func()) Option {
	return func(m *Memory) {
		if fn != nil {
			m.hooks = append(m.hooks, fn)
		}
	}
}

type streamKey struct {
	item, topic string
}

// Memory is an in-process Block. Items and topics are case-insensitive and stored upper-case.
// Streams exist only for item x topic pairs, so items added before any topic (and topics
// before any item) stay pending and are not reported until the other side is non-empty.
type Memory struct {
	mu       sync.Mutex
	name     string
	size     int
	dateTime bool
	timeout  time.Duration
	items    []string
	topics   []string
	streams  map[streamKey]*stream
	hooks    []func()
	closed   bool
}

// NewMemory creates an empty block holding up to size points per stream.
func NewMemory(name string, size int, opts ...Option) (*Memory, error) {
	if size <= 0 || size > MaxSize {
		return nil, errors.Wrapf(exception.ErrInvalidBlockSize, "size %d", size)
	}

	m := &Memory{
		name:     name,
		size:     size,
		dateTime: true,
		timeout:  DefaultTimeout,
		streams:  make(map[streamKey]*stream),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Memory) Name() string {
	return m.name
}

// OnClose registers fn to run once when the block is closed. On a closed block fn runs at once.
func (m *Memory) OnClose(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	if !m.closed {
		m.hooks = append(m.hooks, fn)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	fn()
}

// Close releases the streams and runs the close hooks. It is safe to call more than once.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.streams = nil
	hooks := m.hooks
	m.hooks = nil
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// Push appends p to the (item, topic) stream and reports whether such a stream exists.
func (m *Memory) Push(item, topic string, p Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	s, ok := m.streams[streamKey{normalize(item), normalize(topic)}]
	if !ok {
		return false
	}
	s.push(p)
	return true
}

func (m *Memory) Info(context.Context) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Info{}, exception.ErrBlockClosed
	}
	return Info{
		Name:       m.name,
		Size:       m.size,
		DateTime:   m.dateTime,
		Timeout:    m.timeout,
		ItemCount:  len(m.visibleItems()),
		TopicCount: len(m.visibleTopics()),
	}, nil
}

func (m *Memory) BlockSize(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, exception.ErrBlockClosed
	}
	return m.size, nil
}

func (m *Memory) SetBlockSize(_ context.Context, size int) error {
	if size <= 0 || size > MaxSize {
		return errors.Wrapf(exception.ErrInvalidBlockSize, "size %d", size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return exception.ErrBlockClosed
	}
	if size == m.size {
		return nil
	}
	for _, s := range m.streams {
		s.resize(size)
	}
	m.size = size
	return nil
}

func (m *Memory) StreamOccupancy(_ context.Context, item, topic string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.stream(item, topic)
	if err != nil {
		return 0, err
	}
	return s.occupancy(), nil
}

func (m *Memory) Items(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, exception.ErrBlockClosed
	}
	return slices.Clone(m.visibleItems()), nil
}

func (m *Memory) Topics(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, exception.ErrBlockClosed
	}
	return slices.Clone(m.visibleTopics()), nil
}

func (m *Memory) AddItems(_ context.Context, items ...string) error {
	return m.add(items, true)
}

func (m *Memory) AddTopics(_ context.Context, topics ...string) error {
	return m.add(topics, false)
}

func (m *Memory) RemoveItems(_ context.Context, items ...string) error {
	return m.remove(items, true)
}

func (m *Memory) RemoveTopics(_ context.Context, topics ...string) error {
	return m.remove(topics, false)
}

func (m *Memory) Get(_ context.Context, item, topic string, index int, checkIndex bool) (Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.stream(item, topic)
	if err != nil {
		return Point{}, err
	}

	idx, err := m.index(index)
	if err != nil {
		return Point{}, err
	}
	if idx >= s.occupancy() {
		if checkIndex {
			return Point{}, errors.Wrapf(exception.ErrIndexOutOfRange, "index %d, occupancy %d", index, s.occupancy())
		}
		return wire.NilValue(), nil
	}
	return m.point(s.at(idx)), nil
}

func (m *Memory) StreamSnapshot(_ context.Context, item, topic string, end, beg int, smartSize bool) ([]Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.stream(item, topic)
	if err != nil {
		return nil, err
	}

	b, err := m.index(beg)
	if err != nil {
		return nil, err
	}
	e, err := m.index(end)
	if err != nil {
		return nil, err
	}
	if e < b {
		return nil, errors.Wrapf(exception.ErrInvalidRange, "end %d before beg %d", end, beg)
	}
	if smartSize {
		e = min(e, s.occupancy()-1)
	}

	points := make([]Point, 0, max(e-b+1, 0))
	for i := b; i <= e; i++ {
		if i < s.occupancy() {
			points = append(points, m.point(s.at(i)))
		} else {
			points = append(points, wire.NilValue())
		}
	}
	return points, nil
}

func (m *Memory) StreamSnapshotFromMarker(_ context.Context, item, topic string, beg int, failOnLoss bool) ([]Point, error) {
	if beg < 0 {
		return nil, errors.Wrapf(exception.ErrInvalidRange, "beg %d", beg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.stream(item, topic)
	if err != nil {
		return nil, err
	}

	unread := s.unread()
	if unread > int64(s.occupancy()) {
		if failOnLoss {
			lost := unread - int64(s.occupancy())
			s.marker = s.seq
			return nil, errors.Wrapf(exception.ErrDataLost, "%d points of %s %s", lost, item, topic)
		}
		unread = int64(s.occupancy())
	}
	if int64(beg) >= unread {
		return nil, nil
	}

	points := make([]Point, 0, int(unread)-beg)
	for i := beg; i < int(unread); i++ {
		points = append(points, m.point(s.at(i)))
	}
	s.marker = s.seq - int64(beg)
	return points, nil
}

func (m *Memory) ItemFrame(_ context.Context, topic string) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Frame{}, exception.ErrBlockClosed
	}
	topic = normalize(topic)
	if !slices.Contains(m.visibleTopics(), topic) {
		return Frame{}, errors.Wrapf(exception.ErrUnknownTopic, "%s", topic)
	}

	items := m.visibleItems()
	frame := Frame{Name: topic, Fields: slices.Clone(items), Values: make([]Point, 0, len(items))}
	for _, item := range items {
		frame.Values = append(frame.Values, m.latest(m.streams[streamKey{item, topic}]))
	}
	return frame, nil
}

func (m *Memory) TopicFrame(_ context.Context, item string) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Frame{}, exception.ErrBlockClosed
	}
	item = normalize(item)
	if !slices.Contains(m.visibleItems(), item) {
		return Frame{}, errors.Wrapf(exception.ErrUnknownItem, "%s", item)
	}

	topics := m.visibleTopics()
	frame := Frame{Name: item, Fields: slices.Clone(topics), Values: make([]Point, 0, len(topics))}
	for _, topic := range topics {
		frame.Values = append(frame.Values, m.latest(m.streams[streamKey{item, topic}]))
	}
	return frame, nil
}

func (m *Memory) add(names []string, isItem bool) error {
	normalized := make([]string, 0, len(names))
	for _, n := range names {
		n = normalize(n)
		if n == "" {
			return errors.Wrap(exception.ErrArgument, "empty name")
		}
		if err := wire.CheckDelimiter(n); err != nil {
			return err
		}
		normalized = append(normalized, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return exception.ErrBlockClosed
	}
	for _, n := range normalized {
		if isItem {
			if slices.Contains(m.items, n) {
				continue
			}
			m.items = append(m.items, n)
			for _, topic := range m.topics {
				m.streams[streamKey{n, topic}] = newStream(m.size)
			}
			continue
		}
		if slices.Contains(m.topics, n) {
			continue
		}
		m.topics = append(m.topics, n)
		for _, item := range m.items {
			m.streams[streamKey{item, n}] = newStream(m.size)
		}
	}
	return nil
}

func (m *Memory) remove(names []string, isItem bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return exception.ErrBlockClosed
	}
	for _, n := range names {
		n = normalize(n)
		if isItem {
			m.items = slices.DeleteFunc(m.items, func(s string) bool { return s == n })
		} else {
			m.topics = slices.DeleteFunc(m.topics, func(s string) bool { return s == n })
		}
		for key := range m.streams {
			if (isItem && key.item == n) || (!isItem && key.topic == n) {
				delete(m.streams, key)
			}
		}
	}
	return nil
}

func (m *Memory) stream(item, topic string) (*stream, error) {
	if m.closed {
		return nil, exception.ErrBlockClosed
	}
	item, topic = normalize(item), normalize(topic)
	s, ok := m.streams[streamKey{item, topic}]
	if ok {
		return s, nil
	}
	if !slices.Contains(m.visibleItems(), item) {
		return nil, errors.Wrapf(exception.ErrUnknownItem, "%s", item)
	}
	return nil, errors.Wrapf(exception.ErrUnknownTopic, "%s", topic)
}

// index maps a possibly negative index into [0, size).
func (m *Memory) index(i int) (int, error) {
	idx := i
	if idx < 0 {
		idx += m.size
	}
	if idx < 0 || idx >= m.size {
		return 0, errors.Wrapf(exception.ErrIndexOutOfRange, "index %d, size %d", i, m.size)
	}
	return idx, nil
}

func (m *Memory) point(p Point) Point {
	if !m.dateTime {
		p.Time = time.Time{}
	}
	return p
}

func (m *Memory) latest(s *stream) Point {
	if s == nil || s.occupancy() == 0 {
		return wire.NilValue()
	}
	return m.point(s.at(0))
}

func (m *Memory) visibleItems() []string {
	if len(m.topics) == 0 {
		return nil
	}
	return m.items
}

func (m *Memory) visibleTopics() []string {
	if len(m.items) == 0 {
		return nil
	}
	return m.topics
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
