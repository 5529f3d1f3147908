package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratorNextIsUniqueAndPrefixed(t *testing.T) {
	gen, err := NewGenerator(1, "pr_")
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		value := gen.Next()
		require.True(t, strings.HasPrefix(value, "pr_"))
		_, dup := seen[value]
		require.False(t, dup, "duplicate id %s", value)
		seen[value] = struct{}{}
	}
}

func TestNewGeneratorRejectsInvalidNode(t *testing.T) {
	_, err := NewGenerator(-1, "pr_")
	require.Error(t, err)

	_, err = NewGenerator(1024, "pr_")
	require.Error(t, err)
}
