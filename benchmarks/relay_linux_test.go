//go:build linux

package benchmarks

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/momentics/hioload-relay/server"
)

// BenchmarkRelayFanout measures one message delivered to every client over
// loopback.
func BenchmarkRelayFanout(b *testing.B) {
	for _, clients := range []int{1, 16, 64} {
		b.Run(strconv.Itoa(clients), func(b *testing.B) {
			benchmarkFanout(b, clients)
		})
	}
}

func benchmarkFanout(b *testing.B, n int) {
	cfg := server.DefaultConfig()
	cfg.Port = 0
	s, err := server.New(cfg)
	if err != nil {
		b.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	defer func() {
		s.Shutdown()
		<-done
	}()

	conns := make([]*websocket.Conn, n)
	for i := range conns {
		c, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/", nil)
		if err != nil {
			b.Fatal(err)
		}
		defer c.Close()
		conns[i] = c
	}
	deadline := time.Now().Add(5 * time.Second)
	for s.Established() < n {
		if time.Now().After(deadline) {
			b.Fatal("clients did not establish")
		}
		time.Sleep(time.Millisecond)
	}

	msg := []byte("benchmark payload")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := conns[0].WriteMessage(websocket.TextMessage, msg); err != nil {
			b.Fatal(err)
		}
		for _, c := range conns {
			if _, _, err := c.ReadMessage(); err != nil {
				b.Fatal(err)
			}
		}
	}
}
