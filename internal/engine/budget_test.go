package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudgetTake(t *testing.T) {
	b := NewBudget(2)
	assert.True(t, b.Take())
	assert.True(t, b.Take())
	assert.False(t, b.Take())
	assert.False(t, b.Take())
	assert.True(t, b.Exhausted())
	assert.Equal(t, 0, b.Remaining())
}

func TestBudgetNegative(t *testing.T) {
	b := NewBudget(-5)
	assert.False(t, b.Take())
	assert.True(t, b.Exhausted())
}
