package nutrition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanTermStripsPreparationWords(t *testing.T) {
	t.Parallel()

	require.Equal(t, "onion", CleanTerm("finely chopped onion"))
	require.Equal(t, "butter salted", CleanTerm("melted butter"))
	require.Equal(t, "garlic", CleanTerm("minced garlic, crushed"))
}

func TestCleanTermAppliesCanonicalMappings(t *testing.T) {
	t.Parallel()

	require.Equal(t, "egg whole", CleanTerm("egg"))
	require.Equal(t, "egg whole", CleanTerm("Eggs"))
	require.Equal(t, "flour wheat all-purpose", CleanTerm("all-purpose flour"))
	require.Equal(t, "sugar granulated", CleanTerm("granulated sugar"))
	require.Equal(t, "oats rolled raw", CleanTerm("rolled oats"))
}

func TestCleanTermRemovesPunctuation(t *testing.T) {
	t.Parallel()

	require.Equal(t, "sun tomatoes", CleanTerm("sun-dried tomatoes!"))
	require.Equal(t, "", CleanTerm(""))
}
