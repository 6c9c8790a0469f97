// Package kv defines the persistent key-value contract spec.md §9 treats as
// an external collaborator, plus a concrete file-backed implementation so
// the rest of the tree has something real to run and test against.
//
// The store is deliberately built on the standard library only: spec.md
// §1 scopes "the persistent key-value store" out of this core's
// responsibility, and none of the example repos in the retrieval pack ship
// an embedded KV library (no bbolt/badger/sqlite dependency anywhere in the
// pack) to ground a third-party choice on. See DESIGN.md.
package kv

import (
	"os"
	"path/filepath"
	"sync"

	"pin/internal/perr"
)

// Store is the typed KV contract every subsystem depends on, namespaced per
// spec §5 ("pin_wifi", "plugins", "pin_canvas", "pin_images", "ota_config",
// per-plugin "plugin_<name>_*").
type Store interface {
	GetBlob(ns, key string) ([]byte, error)
	SetBlob(ns, key string, value []byte) error
	Erase(ns, key string) error
	Keys(ns string) ([]string, error)
	Commit(ns string) error
}

// FileStore persists each namespace as its own directory of one file per
// key, written atomically via the teacher's temp-file-then-rename pattern
// (internal/config.Save).
type FileStore struct {
	mu   sync.Mutex
	root string
}

// Open returns a FileStore rooted at dir, creating it if necessary.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, perr.Wrap(perr.StorageFail, "kv.open", "failed to create store root", err)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) nsDir(ns string) string {
	return filepath.Join(s.root, sanitize(ns))
}

func (s *FileStore) keyPath(ns, key string) string {
	return filepath.Join(s.nsDir(ns), sanitize(key)+".blob")
}

// GetBlob returns perr.NotFound if the key is absent.
func (s *FileStore) GetBlob(ns, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.keyPath(ns, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.New(perr.NotFound, "kv.get_blob", ns+"/"+key)
		}
		return nil, perr.Wrap(perr.StorageFail, "kv.get_blob", ns+"/"+key, err)
	}
	return data, nil
}

// SetBlob writes value atomically, creating the namespace directory if needed.
func (s *FileStore) SetBlob(ns, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.nsDir(ns)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return perr.Wrap(perr.StorageFail, "kv.set_blob", ns, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return perr.Wrap(perr.StorageFail, "kv.set_blob", ns+"/"+key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return perr.Wrap(perr.StorageFail, "kv.set_blob", ns+"/"+key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return perr.Wrap(perr.StorageFail, "kv.set_blob", ns+"/"+key, err)
	}
	if err := tmp.Close(); err != nil {
		return perr.Wrap(perr.StorageFail, "kv.set_blob", ns+"/"+key, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return perr.Wrap(perr.StorageFail, "kv.set_blob", ns+"/"+key, err)
	}
	if err := os.Rename(tmpName, s.keyPath(ns, key)); err != nil {
		return perr.Wrap(perr.StorageFail, "kv.set_blob", ns+"/"+key, err)
	}
	return nil
}

// Erase removes a key. Erasing an absent key is not an error.
func (s *FileStore) Erase(ns, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.keyPath(ns, key)); err != nil && !os.IsNotExist(err) {
		return perr.Wrap(perr.StorageFail, "kv.erase", ns+"/"+key, err)
	}
	return nil
}

// Keys lists every key currently stored under ns.
func (s *FileStore) Keys(ns string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.nsDir(ns))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, perr.Wrap(perr.StorageFail, "kv.keys", ns, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if len(name) > 0 && name[0] == '.' {
			continue
		}
		keys = append(keys, unsanitizeBlobName(name))
	}
	return keys, nil
}

// Commit is a no-op for FileStore: every write is already durable on
// return from SetBlob. It exists to satisfy Store for backends that batch.
func (s *FileStore) Commit(ns string) error { return nil }

// sanitize keeps namespace/key strings safe as path components; the KV
// contract allows arbitrary caller-chosen strings but the filesystem does
// not, so "/" and ".." are neutralized.
func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '/', '\\', 0:
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	switch string(out) {
	case "", ".", "..":
		return "_"
	}
	return string(out)
}

func unsanitizeBlobName(fileName string) string {
	const suffix = ".blob"
	if len(fileName) > len(suffix) && fileName[len(fileName)-len(suffix):] == suffix {
		return fileName[:len(fileName)-len(suffix)]
	}
	return fileName
}
