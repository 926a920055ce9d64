package securestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keyFileName  = ".store.key"
	recordSuffix = ".rec"
	hkdfInfo     = "tabapp securestore v1"
	dirPerm      = 0o700
	filePerm     = 0o600
)

// File stores each record in its own file under dir, sealed with
// XChaCha20-Poly1305. The key is derived from secret when one is given;
// otherwise a random key is generated once and kept next to the records.
type File struct {
	dir  string
	aead cipher.AEAD
	mu   sync.Mutex
}

// NewFile opens (creating if needed) a file-backed store rooted at dir.
func NewFile(dir, secret string) (*File, error) {
	if dir == "" {
		return nil, errors.New("secure store directory is required")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, wrap("create directory", err)
	}

	var master []byte
	if secret != "" {
		master = []byte(secret)
	} else {
		var err error
		if master, err = loadOrCreateKey(filepath.Join(dir, keyFileName)); err != nil {
			return nil, err
		}
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, wrap("derive key", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, wrap("init cipher", err)
	}
	return &File{dir: dir, aead: aead}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		// A damaged key is reported, never regenerated.
		if len(b) != chacha20poly1305.KeySize {
			return nil, wrap("read key", fmt.Errorf("%s holds %d bytes, want %d", path, len(b), chacha20poly1305.KeySize))
		}
		return b, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, wrap("read key", err)
	}
	b = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(b); err != nil {
		return nil, wrap("generate key", err)
	}
	if err := writeAtomic(path, b); err != nil {
		return nil, wrap("write key", err)
	}
	return b, nil
}

// Put implements Store.
func (s *File) Put(_ context.Context, key string, value any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	payload, err := encode(value)
	if err != nil {
		return err
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return wrap("nonce", err)
	}
	sealed := s.aead.Seal(nonce, nonce, payload, []byte(key))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.path(key), sealed); err != nil {
		return wrap("write", err)
	}
	return nil
}

// Get implements Store.
func (s *File) Get(_ context.Context, key string, dst any) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}

	s.mu.Lock()
	sealed, err := os.ReadFile(s.path(key))
	s.mu.Unlock()
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, wrap("read", err)
	}

	n := s.aead.NonceSize()
	if len(sealed) < n {
		return false, fmt.Errorf("%w: record %q truncated", ErrStorage, key)
	}
	payload, err := s.aead.Open(nil, sealed[:n], sealed[n:], []byte(key))
	if err != nil {
		return false, wrap("open", err)
	}
	if err := decode(payload, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s *File) path(key string) string {
	return filepath.Join(s.dir, key+recordSuffix)
}

// writeAtomic replaces path through a synced temp file and a rename, so a
// crash never leaves a partially written record behind.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".securestore-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
