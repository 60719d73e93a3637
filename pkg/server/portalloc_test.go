package server

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPortAllocatorBindsRequestedAddress(t *testing.T) {
	var alloc defaultPortAllocator
	listener, err := alloc.Allocate("127.0.0.1", 0)
	require.NoError(t, err)
	defer listener.Close()

	assert.NotEmpty(t, listener.Addr().String())
}

// fakePortAllocator records whether it was consulted, delegating the actual
// bind to the default allocator.
type fakePortAllocator struct {
	called *bool
}

func (f fakePortAllocator) Allocate(address string, port int) (net.Listener, error) {
	*f.called = true
	return defaultPortAllocator{}.Allocate(address, port)
}

func TestSetPortAllocatorOverridesDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0

	srv, err := New(newTestHandler(), cfg)
	require.NoError(t, err)

	called := false
	srv.SetPortAllocator(fakePortAllocator{called: &called})

	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())

	assert.True(t, called)
}
