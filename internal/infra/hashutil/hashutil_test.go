package hashutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nhlagent/internal/domain"
)

func TestDigestIsStable(t *testing.T) {
	require.Equal(t, Digest("https://api-web.nhle.com/v1/schedule/2024-01-15"), Digest("https://api-web.nhle.com/v1/schedule/2024-01-15"))
	require.NotEqual(t, Digest("a"), Digest("b"))
	require.Len(t, Digest("a"), 64)
}

func TestCatalogETagChangesWithContent(t *testing.T) {
	entries := []domain.EndpointEntry{{Name: "x", Path: "x/{id}", Base: domain.BasePrimary, Cost: 1}}
	first := CatalogETag(zap.NewNop(), entries)
	require.NotEmpty(t, first)

	entries[0].Cost = 3
	require.NotEqual(t, first, CatalogETag(zap.NewNop(), entries))
}
