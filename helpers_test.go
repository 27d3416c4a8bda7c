package jobs

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

const testTimeout = 10 * time.Second

// syncBuffer is a bytes.Buffer that may be written by multiple workers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func (x *syncBuffer) Contains(s string) bool {
	return strings.Contains(x.String(), s)
}

func newTestLogger(w *syncBuffer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// newTestScheduler starts an unpinned scheduler, shut down on cleanup.
func newTestScheduler(t *testing.T, workers uint8, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(workers, append([]Option{WithCPUPinning(false)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil && err != ErrClosed {
			t.Errorf(`shutdown: %v`, err)
		}
	})
	return s
}

// waitTimeout waits on the signal from outside the scheduler (busy-polling),
// failing the test if it takes too long.
func waitTimeout(t *testing.T, s *Scheduler, signal *Signal) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Wait(signal)
	}()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatalf(`timed out waiting for signal, counter %d`, signal.Counter())
	}
}
