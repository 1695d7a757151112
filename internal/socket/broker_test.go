package socket

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moosync/moosyncd/internal/sandbox"
)

// startEchoUnixListener starts a unix socket echo server at a temp path and
// returns that path plus a cleanup func.
func startEchoUnixListener(t *testing.T) string {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if err != nil {
						return
					}
					if _, err := c.Write(buf[:n]); err != nil {
						return
					}
				}
			}(c)
		}
	}()
	return sockPath
}

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	sockPath := startEchoUnixListener(t)
	policy := sandbox.New("test", map[string]string{"/sock": sockPath}, nil, t.TempDir())
	return New("test", policy)
}

func TestBroker_OpenAndReadWrite(t *testing.T) {
	b := newTestBroker(t)
	h := b.Open("/sock")
	require.GreaterOrEqual(t, h, 0)

	require.True(t, b.Write(h, []byte("hello")))
	got := b.Read(h, 64)
	assert.Equal(t, "hello", string(got))
}

func TestBroker_OpenDeniedForUnknownPath(t *testing.T) {
	b := newTestBroker(t)
	h := b.Open("/not-a-declared-prefix")
	assert.Equal(t, -1, h)
}

func TestBroker_MaxHandlesPerPlugin(t *testing.T) {
	b := newTestBroker(t)
	for i := 0; i < MaxHandlesPerPlugin; i++ {
		h := b.Open("/sock")
		require.GreaterOrEqualf(t, h, 0, "handle %d should have been admitted", i)
	}

	overflow := b.Open("/sock")
	assert.Equal(t, -1, overflow, "the (MaxHandlesPerPlugin+1)th concurrent socket must be refused")
}

func TestBroker_ReadClampsToMaxReadLen(t *testing.T) {
	b := newTestBroker(t)
	h := b.Open("/sock")
	require.GreaterOrEqual(t, h, 0)

	payload := make([]byte, MaxReadLen*4)
	require.True(t, b.Write(h, payload))

	got := b.Read(h, 1_000_000)
	assert.LessOrEqual(t, len(got), MaxReadLen)

	got = b.Read(h, 0)
	assert.LessOrEqual(t, len(got), MaxReadLen)
}

func TestBroker_InvalidHandle(t *testing.T) {
	b := newTestBroker(t)
	assert.False(t, b.Write(5, []byte("x")))
	assert.Nil(t, b.Read(5, 10))
}

func TestBroker_CloseFreesSlotForReuse(t *testing.T) {
	b := newTestBroker(t)
	h1 := b.Open("/sock")
	require.GreaterOrEqual(t, h1, 0)
	b.Close(h1)

	h2 := b.Open("/sock")
	assert.Equal(t, h1, h2, "Close must free its slot for the next Open to reuse")
}
