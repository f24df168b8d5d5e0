package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func del(indices ...int) []PageOperation {
	ops := make([]PageOperation, 0, len(indices))
	for _, i := range indices {
		ops = append(ops, PageOperation{Type: OpDelete, PageIndex: i})
	}
	return ops
}

func TestComputePageMapNoDeletes(t *testing.T) {
	m, err := ComputePageMap(4, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())
	for i := 0; i < 4; i++ {
		n, ok := m.Lookup(i)
		require.True(t, ok)
		assert.Equal(t, i, n)
	}
}

func TestComputePageMapDeleteMiddlePages(t *testing.T) {
	// 5 pages, delete 0-based {1,3}: survivors are 0,2,4.
	m, err := ComputePageMap(5, del(1, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []int{0, 2, 4}, m.Survivors())

	want := map[int]int{0: 0, 2: 1, 4: 2}
	for old, newIdx := range want {
		n, ok := m.Lookup(old)
		require.True(t, ok, "old index %d should survive", old)
		assert.Equal(t, newIdx, n)
	}
	for _, gone := range []int{1, 3} {
		_, ok := m.Lookup(gone)
		assert.False(t, ok, "old index %d should be deleted", gone)
	}
}

func TestComputePageMapMonotonic(t *testing.T) {
	m, err := ComputePageMap(10, del(0, 4, 7, 9))
	require.NoError(t, err)
	surv := m.Survivors()
	for i := 1; i < len(surv); i++ {
		a, _ := m.Lookup(surv[i-1])
		b, _ := m.Lookup(surv[i])
		assert.Less(t, a, b)
	}
}

func TestComputePageMapIdempotentDelete(t *testing.T) {
	once, err := ComputePageMap(5, del(2))
	require.NoError(t, err)
	twice, err := ComputePageMap(5, del(2, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, once.Survivors(), twice.Survivors())
	assert.Equal(t, once.Len(), twice.Len())
}

func TestComputePageMapOutOfRangeIgnored(t *testing.T) {
	m, err := ComputePageMap(3, del(-1, 3, 99))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
}

func TestComputePageMapUnknownOpIgnored(t *testing.T) {
	m, err := ComputePageMap(3, []PageOperation{{Type: "rotate", PageIndex: 1}})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
}

func TestComputePageMapAllDeleted(t *testing.T) {
	_, err := ComputePageMap(3, del(0, 1, 2))
	require.Error(t, err)
	var all *AllPagesDeletedError
	require.True(t, errors.As(err, &all))
	assert.Equal(t, 3, all.PageCount)
}

func TestComputePageMapZeroPages(t *testing.T) {
	_, err := ComputePageMap(0, nil)
	var all *AllPagesDeletedError
	require.True(t, errors.As(err, &all))
}
