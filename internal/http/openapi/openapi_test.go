package openapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)
	for _, path := range []string{"/api/products", "/api/products/{id}"} {
		require.NotNil(t, doc.Paths.Value(path), path)
	}
	item := doc.Paths.Value("/api/products/{id}")
	require.NotNil(t, item.Patch)
	require.NotNil(t, item.Delete)
	require.Equal(t, "createProduct", doc.Paths.Value("/api/products").Post.OperationID)
}
