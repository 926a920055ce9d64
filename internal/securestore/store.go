// Package securestore persists small sensitive records, such as the last
// logged-in identity, as JSON text under a fixed key.
package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrStorage marks a failure of the underlying persistence layer: the
// backend is unreachable, or a stored payload is corrupt. A missing key is
// never an ErrStorage.
var ErrStorage = errors.New("secure storage failure")

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Store is durable key/value persistence for JSON-serializable records.
type Store interface {
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value any) error
	// Get decodes the value stored under key into dst. It reports false
	// with a nil error when the key was never put.
	Get(ctx context.Context, key string, dst any) (bool, error)
}

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("%w: invalid key %q", ErrStorage, key)
	}
	return nil
}

func encode(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrStorage, err)
	}
	return b, nil
}

func decode(b []byte, dst any) error {
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrStorage, err)
	}
	return nil
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
