package fiber

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_nilEntry(t *testing.T) {
	assert.PanicsWithValue(t, `fiber: nil entry`, func() { New(nil) })
}

func TestContext_SwitchTo_pingPong(t *testing.T) {
	var (
		trace []string
		a, b  *Context
	)
	done := make(chan struct{})

	a = New(func() {
		trace = append(trace, `a1`)
		a.SwitchTo(b)
		trace = append(trace, `a2`)
		a.SwitchTo(b)
		trace = append(trace, `a3`)
		close(done)
		a.park()
	})
	b = New(func() {
		trace = append(trace, `b1`)
		b.SwitchTo(a)
		trace = append(trace, `b2`)
		b.SwitchTo(a)
		t.Error(`unreachable`)
	})
	defer a.Destroy()
	defer b.Destroy()

	a.Resume()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out`)
	}

	assert.Equal(t, []string{`a1`, `b1`, `a2`, `b2`, `a3`}, trace)
}

func TestContext_Destroy_neverStarted(t *testing.T) {
	c := New(func() { t.Error(`should not run`) })
	c.Destroy()
	c.Destroy()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out`)
	}
	assert.Zero(t, c.GoroutineID())
}

func TestContext_Destroy_suspendedRunsDefers(t *testing.T) {
	var deferred bool
	primary := make(chan struct{})
	var c2 *Context
	c2 = New(func() {
		defer func() { deferred = true }()
		close(primary)
		c2.park()
		t.Error(`unreachable`)
	})
	c2.Resume()
	<-primary
	c2.Destroy()
	select {
	case <-c2.Done():
	case <-time.After(5 * time.Second):
		t.Fatal(`timed out`)
	}
	assert.True(t, deferred)
}

func TestContext_resumedTwice(t *testing.T) {
	c := Current()
	c.Resume()
	assert.PanicsWithValue(t, `fiber: context resumed twice`, c.Resume)
	assert.Nil(t, c.Done())
}

func TestContext_switchToSelf(t *testing.T) {
	c := Current()
	assert.PanicsWithValue(t, `fiber: switch to self`, func() { c.SwitchTo(c) })
}

// a primary context (the test goroutine) drives N fibers round-robin, each
// incrementing a shared counter without synchronisation, which is only
// correct because the token is exclusive
func TestContext_exclusiveToken(t *testing.T) {
	const (
		fibers = 8
		rounds = 100
	)
	primary := Current()
	ctxs := make([]*Context, fibers)
	var counter int
	for i := range ctxs {
		ctxs[i] = New(func() {
			for range rounds {
				counter++
				next := primary
				if i+1 < fibers {
					next = ctxs[i+1]
				}
				ctxs[i].SwitchTo(next)
			}
			ctxs[i].park()
		})
	}
	for range rounds {
		primary.SwitchTo(ctxs[0])
	}
	require.Equal(t, fibers*rounds, counter)

	var wg sync.WaitGroup
	for _, c := range ctxs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Destroy()
			<-c.Done()
		}()
	}
	wg.Wait()
}

func TestGoroutineID(t *testing.T) {
	id := GoroutineID()
	require.NotZero(t, id)
	assert.Equal(t, id, GoroutineID())
	other := make(chan uint64)
	go func() { other <- GoroutineID() }()
	assert.NotEqual(t, id, <-other)
	assert.Equal(t, id, Current().GoroutineID())
}
