package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// constCalculator returns the same value on every tick
type constCalculator struct {
	value    Value
	defaults Layer
}

func (c constCalculator) Defaults() Layer { return c.defaults }

func (c constCalculator) Usage(context.Context, Options) (Value, error) {
	return c.value, nil
}

// funcCalculator delegates Usage to fn
type funcCalculator func(ctx context.Context, opts Options) (Value, error)

func (funcCalculator) Defaults() Layer { return Layer{} }

func (f funcCalculator) Usage(ctx context.Context, opts Options) (Value, error) {
	return f(ctx, opts)
}

type record struct {
	collection string
	value      Value
}

// recordingSink remembers every stored value
type recordingSink struct {
	mutex   sync.Mutex
	records []record
}

func (s *recordingSink) Store(_ context.Context, collection string, value Value) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records = append(s.records, record{collection, value})
	return nil
}

func (s *recordingSink) count(collection string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	n := 0
	for _, r := range s.records {
		if r.collection == collection {
			n++
		}
	}
	return n
}

func (s *recordingSink) last(collection string) (Value, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].collection == collection {
			return s.records[i].value, true
		}
	}
	return nil, false
}

// memoryStore is an in-memory Store
type memoryStore struct {
	mutex  sync.Mutex
	docs   map[string][]Document
	closed atomic.Bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: make(map[string][]Document)}
}

func (s *memoryStore) Insert(_ context.Context, collection string, doc Document) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.docs[collection] = append(s.docs[collection], doc)
	return nil
}

func (s *memoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *memoryStore) documents(collection string) []Document {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]Document(nil), s.docs[collection]...)
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fastLayer() Layer {
	return Layer{Interval: Duration(5 * time.Millisecond)}
}
