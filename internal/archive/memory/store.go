// Package memory provides an in-memory archive store for tests and ephemeral
// deployments.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"virolink/internal/archive"
)

type object struct {
	info archive.Info
	data []byte
}

// Store keeps archived objects in a map.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	nowFn   func() time.Time
}

// New returns an empty in-memory archive store.
func New() *Store {
	return &Store{
		objects: make(map[string]object),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Driver implements archive.Store.
func (s *Store) Driver() archive.Driver { return archive.DriverMemory }

// Put stores a new object. Existing keys are rejected so a re-archived report
// gets a fresh timestamped key instead of silently replacing history.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts archive.PutOptions) (archive.Info, error) {
	if strings.TrimSpace(key) == "" {
		return archive.Info{}, fmt.Errorf("archive: empty key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return archive.Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return archive.Info{}, fmt.Errorf("archive: object %s already exists", key)
	}
	md := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		md[k] = v
	}
	info := archive.Info{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		Metadata:     md,
		LastModified: s.nowFn(),
	}
	s.objects[key] = object{info: info, data: data}
	return info, nil
}

// Get returns an object's info and content.
func (s *Store) Get(ctx context.Context, key string) (archive.Info, io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return archive.Info{}, nil, archive.ErrNotFound
	}
	return obj.info, io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Head returns an object's info without its content.
func (s *Store) Head(ctx context.Context, key string) (archive.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return archive.Info{}, archive.ErrNotFound
	}
	return obj.info, nil
}

// List returns objects under a key prefix in key order.
func (s *Store) List(ctx context.Context, prefix string) ([]archive.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var infos []archive.Info
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, obj.info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete removes an object, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return false, nil
	}
	delete(s.objects, key)
	return true, nil
}

var _ archive.Store = (*Store)(nil)
