// Package cache stores raw backend responses keyed by request fingerprint.
package cache

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Store is a byte cache safe for concurrent use. Writes of the same key are
// idempotent; the last writer wins.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendDisk = "disk"
	BackendBolt = "bolt"
	BackendNone = "none"
)

// Open selects a store by backend name.
func Open(backend, dir, boltPath string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendDisk:
		return NewDiskStore(dir)
	case BackendBolt:
		return OpenBoltStore(boltPath)
	case BackendNone:
		logger.Named("cache").Info("response cache disabled")
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// NopStore never hits.
type NopStore struct{}

func (NopStore) Get(string) ([]byte, bool, error) { return nil, false, nil }
func (NopStore) Put(string, []byte) error         { return nil }
func (NopStore) Close() error                     { return nil }
