package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	even := Filter([]int{1, 2, 3, 4, 5}, func(n int) bool { return n%2 == 0 })
	assert.Equal(t, []int{2, 4}, even)

	none := Filter([]int{1, 3}, func(n int) bool { return n%2 == 0 })
	assert.Empty(t, none)
}
