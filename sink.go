package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrStoreNotReady is returned by a StoreSink before a store is attached
var ErrStoreNotReady = errors.New("store is not ready")

// Document is the unit appended to a collection
type Document struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Value     Value     `json:"value"`
}

// Store is an append-only backend shared by all monitors
type Store interface {
	Insert(ctx context.Context, collection string, doc Document) error
	Close() error
}

type storeRef struct {
	Store
}

// StoreSink appends timestamped documents to a Store. The store may be
// attached after monitors have started; until then every sample is refused
// with ErrStoreNotReady.
type StoreSink struct {
	store atomic.Pointer[storeRef]
	now   func() time.Time
}

// NewStoreSink creates a sink, attached to store when it is not nil
func NewStoreSink(store Store) *StoreSink {
	s := &StoreSink{now: time.Now}
	if store != nil {
		s.Attach(store)
	}
	return s
}

// Attach sets the backing store
func (s *StoreSink) Attach(store Store) {
	s.store.Store(&storeRef{Store: store})
}

// Store implements Sink
func (s *StoreSink) Store(ctx context.Context, collection string, value Value) error {
	ref := s.store.Load()
	if ref == nil {
		return ErrStoreNotReady
	}
	return ref.Insert(ctx, collection, Document{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Value:     value,
	})
}
