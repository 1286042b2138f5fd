// Package fs provides a filesystem-backed archive store. Keys map to file
// paths under the root; a sidecar file (key + ".meta") holds content type and
// user metadata.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"virolink/internal/archive"
)

// Store implements archive.Store on the local filesystem.
type Store struct {
	root string
}

// New returns a filesystem archive rooted at path, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./reportdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Driver implements archive.Store.
func (s *Store) Driver() archive.Driver { return archive.DriverFilesystem }

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// sanitizeKey forbids traversal and absolute paths.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("archive: empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("archive: invalid key %q", key)
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("archive: absolute key %q", key)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Put writes a new object; existing keys are rejected.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts archive.PutOptions) (archive.Info, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return archive.Info{}, err
	}
	path := s.path(clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return archive.Info{}, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return archive.Info{}, fmt.Errorf("archive: object %s already exists", clean)
		}
		return archive.Info{}, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return archive.Info{}, err
	}
	if err := f.Close(); err != nil {
		return archive.Info{}, err
	}
	meta := sidecar{ContentType: opts.ContentType, Metadata: opts.Metadata}
	raw, err := json.Marshal(meta)
	if err != nil {
		return archive.Info{}, err
	}
	if err := os.WriteFile(path+".meta", raw, 0o644); err != nil {
		return archive.Info{}, err
	}
	return s.Head(ctx, clean)
}

// Get opens an object for reading.
func (s *Store) Get(ctx context.Context, key string) (archive.Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return archive.Info{}, nil, err
	}
	f, err := os.Open(s.path(info.Key))
	if err != nil {
		return archive.Info{}, nil, err
	}
	return info, f, nil
}

// Head stats an object.
func (s *Store) Head(ctx context.Context, key string) (archive.Info, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return archive.Info{}, err
	}
	st, err := os.Stat(s.path(clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return archive.Info{}, archive.ErrNotFound
		}
		return archive.Info{}, err
	}
	info := archive.Info{
		Key:          clean,
		Size:         st.Size(),
		LastModified: st.ModTime().UTC(),
	}
	if raw, err := os.ReadFile(s.path(clean) + ".meta"); err == nil {
		var meta sidecar
		if json.Unmarshal(raw, &meta) == nil {
			info.ContentType = meta.ContentType
			info.Metadata = meta.Metadata
		}
	}
	return info, nil
}

// List walks the root collecting objects under the prefix in key order.
func (s *Store) List(ctx context.Context, prefix string) ([]archive.Info, error) {
	var infos []archive.Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".meta") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.Head(ctx, key)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete removes an object and its sidecar, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return false, err
	}
	path := s.path(clean)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	os.Remove(path + ".meta")
	return true, nil
}

var _ archive.Store = (*Store)(nil)
