//go:build linux

package server_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/momentics/hioload-relay/server"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, mutate func(*server.Config)) *server.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Port = 0
	if mutate != nil {
		mutate(cfg)
	}
	s, err := server.New(cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	t.Cleanup(func() {
		s.Shutdown()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("relay did not stop")
		}
	})
	return s
}

func dial(t *testing.T, s *server.Server) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/", nil)
	require.NoError(t, err)
	require.Equal(t, 101, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	typ, p, err := c.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, typ)
	return string(p)
}

func writeText(t *testing.T, c *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func TestRelayTwoClientScenario(t *testing.T) {
	s := startRelay(t, nil)
	a := dial(t, s)
	b := dial(t, s)
	require.Eventually(t, func() bool { return s.Established() == 2 }, 5*time.Second, 5*time.Millisecond)

	writeText(t, a, "hello")
	require.Equal(t, "hello", readText(t, a))
	require.Equal(t, "hello", readText(t, b))

	// An empty message closes only its sender.
	writeText(t, b, "")
	require.NoError(t, b.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := b.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	require.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	require.Eventually(t, func() bool { return s.Connections() == 1 }, 5*time.Second, 5*time.Millisecond)

	writeText(t, a, "still here")
	require.Equal(t, "still here", readText(t, a))
}

func TestRelayHundredClients(t *testing.T) {
	s := startRelay(t, nil)

	const n = 100
	clients := make([]*websocket.Conn, n)
	for i := range clients {
		clients[i] = dial(t, s)
	}
	require.Eventually(t, func() bool { return s.Established() == n }, 10*time.Second, 10*time.Millisecond)

	for i, c := range clients {
		writeText(t, c, fmt.Sprintf("msg-%03d", i))
	}

	want := make([]string, n)
	for i := range want {
		want[i] = fmt.Sprintf("msg-%03d", i)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *websocket.Conn) {
			defer wg.Done()
			got := make([]string, 0, n)
			_ = c.SetReadDeadline(time.Now().Add(10 * time.Second))
			for len(got) < n {
				_, p, err := c.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("client %d after %d messages: %w", i, len(got), err)
					return
				}
				got = append(got, string(p))
			}
			sort.Strings(got)
			for j := range got {
				if got[j] != want[j] {
					errs <- fmt.Errorf("client %d: message set differs at %d: %q", i, j, got[j])
					return
				}
			}
		}(i, c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRelayPerSenderOrder(t *testing.T) {
	s := startRelay(t, nil)
	a := dial(t, s)
	b := dial(t, s)
	require.Eventually(t, func() bool { return s.Established() == 2 }, 5*time.Second, 5*time.Millisecond)

	for i := 0; i < 50; i++ {
		writeText(t, a, fmt.Sprint(i))
	}
	for i := 0; i < 50; i++ {
		require.Equal(t, fmt.Sprint(i), readText(t, b))
	}
}

func TestRelayNoReflect(t *testing.T) {
	s := startRelay(t, func(c *server.Config) { c.ReflectToSender = false })
	a := dial(t, s)
	b := dial(t, s)
	require.Eventually(t, func() bool { return s.Established() == 2 }, 5*time.Second, 5*time.Millisecond)

	writeText(t, a, "from a")
	writeText(t, b, "from b")
	require.Equal(t, "from b", readText(t, a))
	require.Equal(t, "from a", readText(t, b))
}

func TestRelaySurvivesAbruptDisconnect(t *testing.T) {
	s := startRelay(t, nil)
	a := dial(t, s)
	b := dial(t, s)
	c := dial(t, s)
	require.Eventually(t, func() bool { return s.Established() == 3 }, 5*time.Second, 5*time.Millisecond)

	// Drop b without a close handshake.
	require.NoError(t, b.UnderlyingConn().Close())

	for i := 0; i < 20; i++ {
		msg := fmt.Sprint("m", i)
		writeText(t, a, msg)
		require.Equal(t, msg, readText(t, a))
		require.Equal(t, msg, readText(t, c))
	}
	require.Eventually(t, func() bool { return s.Connections() == 2 }, 5*time.Second, 5*time.Millisecond)
}

func TestRelayRejectsBadUpgrade(t *testing.T) {
	s := startRelay(t, nil)

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: relay\r\n\r\n"))
	require.NoError(t, err)

	resp, err := io.ReadAll(conn)
	require.NoError(t, err, "relay closes the connection after rejecting")
	require.True(t, strings.HasPrefix(string(resp), "HTTP/1.1 400 "), "got %q", resp)
	require.Eventually(t, func() bool { return s.Connections() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestRelayShutdownSendsGoingAway(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.Port = 0
	s, err := server.New(cfg)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	a := dial(t, s)
	require.Eventually(t, func() bool { return s.Established() == 1 }, 5*time.Second, 5*time.Millisecond)

	s.Shutdown()
	require.NoError(t, <-done)

	require.NoError(t, a.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = a.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	require.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}

func TestRelayPortInUse(t *testing.T) {
	s := startRelay(t, nil)
	cfg := server.DefaultConfig()
	cfg.Port = s.Addr().(*net.TCPAddr).Port
	_, err := server.New(cfg)
	require.Error(t, err)
}
