package bloom_test

import (
	"fmt"
	"testing"

	"github.com/fwojciec/fetchq/bloom"
	"github.com/stretchr/testify/assert"
)

func TestFilter_Mark(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(1000, 0.01)

	assert.False(t, f.Seen("a1b2"))
	assert.True(t, f.Mark("a1b2"), "first mark reports new")
	assert.True(t, f.Seen("a1b2"))
	assert.False(t, f.Mark("a1b2"), "second mark reports seen")
	assert.False(t, f.Seen("c3d4"))
}

func TestFilter_EstimatedCount(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(1000, 0.01)
	assert.Equal(t, uint(0), f.EstimatedCount())

	f.Mark("one")
	f.Mark("two")
	f.Mark("three")
	f.Mark("three")

	count := f.EstimatedCount()
	assert.True(t, count >= 2 && count <= 4, "expected count near 3, got %d", count)
}

func TestFilter_LowFalsePositiveRate(t *testing.T) {
	t.Parallel()

	f := bloom.NewFilter(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.Mark(fmt.Sprintf("item-%d", i))
	}

	falsePositives := 0
	for i := 1000; i < 2000; i++ {
		if f.Seen(fmt.Sprintf("item-%d", i)) {
			falsePositives++
		}
	}
	assert.Less(t, falsePositives, 50, "false positive rate should be near 1%%")
}
