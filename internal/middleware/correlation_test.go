package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcceptCorrelationFiltersClientIDs(t *testing.T) {
	require.Equal(t, "req-1.a_b", acceptCorrelation(" req-1.a_b "))
	require.Empty(t, acceptCorrelation("has space"))
	require.Empty(t, acceptCorrelation("<script>"))
	require.Empty(t, acceptCorrelation(strings.Repeat("a", maxCorrelationLength+1)))
}
