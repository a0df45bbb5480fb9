//go:build linux

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServeStopsOnContextCancel(t *testing.T) {
	root := newRootCmd(mapEnv(nil))
	root.SetArgs([]string{"--port", "0", "--admin-addr", "127.0.0.1:0", "--log-level", "error"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeFailsOnBadPort(t *testing.T) {
	root := newRootCmd(mapEnv(nil))
	root.SetArgs([]string{"--port", "70000", "--admin-addr", ""})
	require.Error(t, root.Execute())
}
