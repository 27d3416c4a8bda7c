package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack_lifo(t *testing.T) {
	var s stack[int]
	_, ok := s.pop()
	require.False(t, ok)

	for i := range 5 {
		s.push(i)
	}
	assert.Equal(t, 5, s.len())
	for i := 4; i >= 0; i-- {
		v, ok := s.pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok = s.pop()
	assert.False(t, ok)
	assert.Zero(t, s.len())
}

func TestStack_popClearsSlot(t *testing.T) {
	s := stack[*int]{new(int), new(int)}
	_, ok := s.pop()
	require.True(t, ok)
	assert.Nil(t, s[:2][1])
}
