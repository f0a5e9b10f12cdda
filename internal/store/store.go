// Package store provides the in-memory keyspace with expiry support.
package store

import (
	"errors"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"
)

var (
	// ErrNotInteger is returned when a value cannot be read as a base-10 int64.
	ErrNotInteger = errors.New("value is not an integer or out of range")
	// ErrOverflow is returned when an increment would leave the int64 range.
	ErrOverflow = errors.New("increment or decrement would overflow")
	// ErrWrongType is returned when an operation meets a value of another kind.
	ErrWrongType = errors.New("operation against a key holding the wrong kind of value")
)

// Value is a stored value. String is the only variant today; list, set,
// hash and sorted set kinds plug in by implementing Type.
type Value interface {
	// Type returns the name reported by the TYPE command.
	Type() string
}

// String is a binary-safe string value.
type String []byte

// Type implements Value.
func (String) Type() string { return "string" }

// Condition gates a write on the current presence of the key.
type Condition int

const (
	// Always writes unconditionally.
	Always Condition = iota
	// IfAbsent writes only when the key does not exist (NX).
	IfAbsent
	// IfPresent writes only when the key exists (XX).
	IfPresent
)

// SetArgs controls a write.
type SetArgs struct {
	Condition Condition
	// ExpireAt is an absolute instant in unix milliseconds; it is only
	// honoured when HasExpire is set. A write without it clears any
	// previous expiry.
	ExpireAt  int64
	HasExpire bool
}

// Matcher reports whether candidate matches a glob pattern.
type Matcher func(pattern, candidate string) bool

// Store holds the keyspace and its expiry table under a single mutex.
// It is safe for concurrent use by multiple goroutines.
//
// Every key in expires is present in data. A key whose expiry instant is at
// or before now is treated as absent by every read, whether or not the
// sweeper has removed it yet.
type Store struct {
	mu      sync.Mutex
	data    map[string]Value
	expires map[string]int64

	now           func() int64
	sweepInterval time.Duration
	onSweep       func(removed int)
	logger        *slog.Logger

	stopOnce sync.Once
	stopGC   chan struct{}
	gcDone   chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock. now must return unix milliseconds.
func WithClock(now func() int64) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSweepInterval sets how often the sweeper runs. Zero or negative
// disables the sweeper; lazy expiry still applies.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		s.sweepInterval = d
	}
}

// WithSweepHook registers fn to be called after every sweep that removed keys.
func WithSweepHook(fn func(removed int)) Option {
	return func(s *Store) {
		s.onSweep = fn
	}
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// DefaultSweepInterval is the period of the background sweeper.
const DefaultSweepInterval = time.Second

// New creates a new empty Store and starts the background expiration goroutine.
func New(opts ...Option) *Store {
	s := &Store{
		data:          make(map[string]Value),
		expires:       make(map[string]int64),
		now:           func() int64 { return time.Now().UnixMilli() },
		sweepInterval: DefaultSweepInterval,
		stopGC:        make(chan struct{}),
		gcDone:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.sweepInterval > 0 {
		go s.gcLoop()
	} else {
		close(s.gcDone)
	}
	return s
}

// Close stops the background sweeper and waits for it to exit.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stopGC)
	})
	<-s.gcDone
}

// Now returns the store's current time in unix milliseconds.
func (s *Store) Now() int64 {
	return s.now()
}

// live returns the value stored at key if it has not expired.
// Expired keys found on the way are removed. Must hold lock.
func (s *Store) live(key string, now int64) (Value, bool) {
	v, ok := s.data[key]
	if !ok {
		if _, orphan := s.expires[key]; orphan {
			delete(s.expires, key)
		}
		return nil, false
	}
	if at, ok := s.expires[key]; ok && at <= now {
		delete(s.data, key)
		delete(s.expires, key)
		return nil, false
	}
	return v, true
}

// Set writes value at key according to args and reports whether the write
// happened. The presence check and the write are one critical section.
// A write with an expiry instant already in the past removes the key.
func (s *Store) Set(key string, value Value, args SetArgs) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	_, exists := s.live(key, now)
	switch args.Condition {
	case IfAbsent:
		if exists {
			return false
		}
	case IfPresent:
		if !exists {
			return false
		}
	}

	if args.HasExpire && args.ExpireAt <= now {
		delete(s.data, key)
		delete(s.expires, key)
		return true
	}

	s.data[key] = cloneValue(value)
	if args.HasExpire {
		s.expires[key] = args.ExpireAt
	} else {
		delete(s.expires, key)
	}
	return true
}

// Get retrieves the live value at key.
func (s *Store) Get(key string) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.live(key, s.now())
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Delete removes a key and its expiry.
// Returns true if the key was live, false otherwise.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.live(key, s.now())
	if !ok {
		return false
	}
	delete(s.data, key)
	delete(s.expires, key)
	return true
}

// Exists counts how many of keys are live. Duplicates count every time.
func (s *Store) Exists(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for _, key := range keys {
		if _, ok := s.live(key, now); ok {
			count++
		}
	}
	return count
}

// Keys returns the live keys accepted by match, sorted.
func (s *Store) Keys(pattern string, match Matcher) []string {
	s.mu.Lock()
	now := s.now()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if at, ok := s.expires[k]; ok && at <= now {
			continue
		}
		keys = append(keys, k)
	}
	s.mu.Unlock()

	matched := keys[:0]
	for _, k := range keys {
		if match(pattern, k) {
			matched = append(matched, k)
		}
	}
	sort.Strings(matched)
	return matched
}

// Size returns the number of live keys.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := len(s.data)
	for _, at := range s.expires {
		if at <= now {
			count--
		}
	}
	return count
}

// TypeOf returns the type name of the value at key, or "none".
func (s *Store) TypeOf(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.live(key, s.now())
	if !ok {
		return "none"
	}
	return v.Type()
}

// TTL returns the remaining lifetime of a key in milliseconds.
// Returns -2 if the key doesn't exist and -1 if it has no expiry.
func (s *Store) TTL(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, ok := s.live(key, now); !ok {
		return -2
	}
	at, ok := s.expires[key]
	if !ok {
		return -1
	}
	return at - now
}

// IncrBy increments the integer value of key by delta.
// A missing key counts as 0. The read and the write are one critical
// section, and the stored value is untouched on error.
func (s *Store) IncrBy(key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if v, ok := s.live(key, s.now()); ok {
		str, isString := v.(String)
		if !isString {
			return 0, ErrWrongType
		}
		n, err := parseInt64(str)
		if err != nil {
			return 0, err
		}
		current = n
	}

	if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
		return 0, ErrOverflow
	}

	next := current + delta
	s.data[key] = String(strconv.AppendInt(nil, next, 10))
	return next, nil
}

func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 || b[0] == '+' {
		return 0, ErrNotInteger
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}

func cloneValue(v Value) Value {
	if s, ok := v.(String); ok {
		return append(String(nil), s...)
	}
	return v
}
