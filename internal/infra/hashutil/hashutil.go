package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"nhlagent/internal/domain"
)

// Digest returns the hex sha256 of key.
func Digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CatalogETag returns a content hash for a set of endpoint entries and logs
// on failure.
func CatalogETag(logger *zap.Logger, entries []domain.EndpointEntry) string {
	return hashWithLogger(logger, "catalog", func() (string, error) {
		data, err := json.Marshal(entries)
		if err != nil {
			return "", err
		}
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	})
}

func hashWithLogger(logger *zap.Logger, label string, fn func() (string, error)) string {
	etag, err := fn()
	if err != nil {
		if logger != nil {
			logger.Warn(fmt.Sprintf("%s hash failed", label), zap.Error(err))
		}
		return ""
	}
	return etag
}
