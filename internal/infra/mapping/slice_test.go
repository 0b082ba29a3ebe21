package mapping

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapSlice(t *testing.T) {
	require.Equal(t, []string{"1", "2", "3"}, MapSlice([]int{1, 2, 3}, strconv.Itoa))

	empty := MapSlice(nil, func(v int) int { return v })
	require.NotNil(t, empty)
	require.Empty(t, empty)
}
