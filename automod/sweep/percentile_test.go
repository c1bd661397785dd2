package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	assert := assert.New(t)
	xs := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	v, ok := Percentile(0, xs)
	assert.True(ok)
	assert.Equal(0, v)

	v, ok = Percentile(100, xs)
	assert.True(ok)
	assert.Equal(9, v)

	v, ok = Percentile(50, xs)
	assert.True(ok)
	assert.Equal(5, v)

	v, ok = Percentile(84, xs)
	assert.True(ok)
	assert.Equal(8, v)
}

func TestPercentileUnsortedInput(t *testing.T) {
	assert := assert.New(t)
	xs := []int{9, 3, 7, 1, 5}
	v, ok := Percentile(100, xs)
	assert.True(ok)
	assert.Equal(9, v)
	// input is not mutated
	assert.Equal([]int{9, 3, 7, 1, 5}, xs)
}

func TestPercentileEmpty(t *testing.T) {
	_, ok := Percentile(50, nil)
	assert.False(t, ok)
}

func TestPercentileOutOfRange(t *testing.T) {
	assert.Panics(t, func() { Percentile(101, []int{1}) })
	assert.Panics(t, func() { Percentile(-1, []int{1}) })
}
