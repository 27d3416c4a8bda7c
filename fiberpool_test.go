package jobs

import (
	"testing"

	"github.com/joeycumines/go-jobs/internal/fiber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiberPool(t *testing.T) {
	var created []int
	pool := newFiberPool(3, func(slot *fiberSlot) *fiber.Context {
		created = append(created, slot.index)
		return fiber.New(func() { t.Error(`should not run`) })
	})
	assert.Equal(t, 3, pool.capacity())
	assert.Equal(t, 3, pool.available())
	assert.Zero(t, pool.created)

	a, ok := pool.tryAcquire()
	require.True(t, ok)
	b, ok := pool.tryAcquire()
	require.True(t, ok)
	assert.Equal(t, 0, a.index)
	assert.Equal(t, 1, b.index)
	assert.Equal(t, []int{0, 1}, created)

	pool.release(a)
	c, ok := pool.tryAcquire()
	require.True(t, ok)
	assert.Same(t, a, c)
	// contexts are created once per slot
	assert.Equal(t, []int{0, 1}, created)
	assert.Equal(t, 2, pool.created)

	d, ok := pool.tryAcquire()
	require.True(t, ok)
	assert.Equal(t, 2, d.index)
	_, ok = pool.tryAcquire()
	assert.False(t, ok)
	assert.Zero(t, pool.available())

	var destroyed []int
	pool.destroy(func(slot *fiberSlot) { destroyed = append(destroyed, slot.index) })
	assert.Equal(t, []int{0, 1, 2}, destroyed)
	for _, slot := range []*fiberSlot{a, b, d} {
		<-slot.ctx.Done()
	}
}

func TestFiberPool_zeroCapacity(t *testing.T) {
	pool := newFiberPool(0, func(*fiberSlot) *fiber.Context {
		t.Error(`unexpected`)
		return nil
	})
	_, ok := pool.tryAcquire()
	assert.False(t, ok)
	pool.destroy(nil)
}
