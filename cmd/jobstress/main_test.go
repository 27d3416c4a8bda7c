package main

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *lockedBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *lockedBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func TestRun(t *testing.T) {
	var stderr lockedBuffer
	code := run([]string{
		`-workers`, `2`,
		`-pinning=false`,
		`-jobs`, `200`,
		`-backups`, `1`,
	}, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	for _, name := range []string{`fan_out`, `tree`, `mutex`, `backup`} {
		assert.Contains(t, stderr.String(), `"scenario":"`+name+`"`)
	}
	assert.Contains(t, stderr.String(), `"msg":"jobs: scheduler stopped"`)
}

func TestRun_invalidFlags(t *testing.T) {
	var stderr lockedBuffer
	assert.Equal(t, 2, run([]string{`-workers`, `-1`}, &stderr))
}
