package podcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hexflood/switchboard/internal/storage"
)

// ObjectStore is the slice of the storage bucket this package needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	PutFile(ctx context.Context, key, path string) error
	Get(ctx context.Context, key string) ([]byte, error)
	PublicURL(key string) string
}

// Store persists per-user episode lists as serialized blobs in the bucket.
// The whole list is rewritten on every append; order is strictly by
// insertion, newest first, and re-submitting a source creates a second entry.
type Store struct {
	bucket ObjectStore

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewStore creates a Store backed by the given bucket.
func NewStore(bucket ObjectStore) (*Store, error) {
	if bucket == nil {
		return nil, fmt.Errorf("podcast: bucket is required")
	}
	return &Store{bucket: bucket, users: make(map[string]*sync.Mutex)}, nil
}

// userLock returns the mutex serializing updates to one user's list.
// Different users update independently.
func (s *Store) userLock(user string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.users[user]
	if !ok {
		lock = &sync.Mutex{}
		s.users[user] = lock
	}
	return lock
}

// Load reads a user's episode list. An absent blob means an empty list.
func (s *Store) Load(ctx context.Context, user string) ([]Episode, error) {
	data, err := s.bucket.Get(ctx, metadataKey(user))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEpisodes(data)
}

// Append prepends ep to the user's list and writes the full list back,
// holding the user's lock for the whole load-modify-store sequence so
// concurrent ingestions for the same user cannot lose an update. The
// optional publish callback runs under the same lock with the new list,
// so derived documents (the feed) are regenerated atomically with it.
func (s *Store) Append(ctx context.Context, user string, ep Episode, publish func([]Episode) error) ([]Episode, error) {
	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	list, err := s.Load(ctx, user)
	if err != nil {
		return nil, err
	}
	list = append([]Episode{ep}, list...)

	data, err := encodeEpisodes(list)
	if err != nil {
		return nil, err
	}
	if err := s.bucket.Put(ctx, metadataKey(user), data); err != nil {
		return nil, err
	}
	if publish != nil {
		if err := publish(list); err != nil {
			return nil, err
		}
	}
	return list, nil
}
