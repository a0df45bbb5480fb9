package protocol_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gobwas/ws"
	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/protocol"
)

const sampleKey = "dGhlIHNhbXBsZSBub25jZQ=="

func upgradeRequest(extra ...string) string {
	lines := []string{
		"GET /chat HTTP/1.1",
		"Host: localhost:9001",
		"Upgrade: websocket",
		"Connection: keep-alive, Upgrade",
		"Sec-WebSocket-Key: " + sampleKey,
		"Sec-WebSocket-Version: 13",
	}
	lines = append(lines, extra...)
	return strings.Join(lines, "\r\n") + "\r\n\r\n"
}

func TestComputeAcceptKeyRFCSample(t *testing.T) {
	if got := protocol.ComputeAcceptKey(sampleKey); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("ComputeAcceptKey = %q", got)
	}
}

func TestHandshakeEstablished(t *testing.T) {
	h := protocol.NewHandshaker(protocol.Limits{})
	res := h.TryCompleteHandshake([]byte(upgradeRequest()))
	if res.Status != api.HandshakeEstablished {
		t.Fatalf("status = %v, err = %v", res.Status, res.Err)
	}
	if res.Session == nil {
		t.Fatal("established handshake without session")
	}
	resp := string(res.Response)
	if !strings.HasPrefix(resp, "HTTP/1.1 101 Switching Protocols\r\n") {
		t.Errorf("unexpected status line: %q", resp)
	}
	if !strings.Contains(resp, "Sec-Websocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n") {
		t.Errorf("missing accept header: %q", resp)
	}
	if !strings.HasSuffix(resp, "\r\n\r\n") {
		t.Errorf("response not terminated: %q", resp)
	}
}

func TestHandshakeNeedsMoreUntilComplete(t *testing.T) {
	h := protocol.NewHandshaker(protocol.Limits{})
	req := []byte(upgradeRequest())

	for i := 0; i < len(req); i++ {
		if res := h.TryCompleteHandshake(req[:i]); res.Status != api.HandshakeNeedMore {
			t.Fatalf("prefix of %d bytes: status %v, want need_more", i, res.Status)
		}
	}
	if res := h.TryCompleteHandshake(req); res.Status != api.HandshakeEstablished {
		t.Fatalf("full request: status %v, err %v", res.Status, res.Err)
	}
}

func TestHandshakeKeepsPipelinedFrame(t *testing.T) {
	frame := ws.MustCompileFrame(ws.MaskFrame(ws.NewTextFrame([]byte("early"))))
	buf := append([]byte(upgradeRequest()), frame...)

	res := protocol.NewHandshaker(protocol.Limits{}).TryCompleteHandshake(buf)
	if res.Status != api.HandshakeEstablished {
		t.Fatalf("status %v err %v", res.Status, res.Err)
	}
	if got := res.Session.Buffered(); got != len(frame) {
		t.Fatalf("session buffered %d bytes, want %d", got, len(frame))
	}
	d := res.Session.DecodeNext()
	if d.Kind != api.DecodeText || d.Text != "early" {
		t.Errorf("decoded %+v", d)
	}
}

func TestHandshakeRejections(t *testing.T) {
	tests := []struct {
		name       string
		req        string
		wantErr    error
		wantStatus string
	}{
		{
			name:       "wrong version",
			req:        strings.Replace(upgradeRequest(), "Version: 13", "Version: 8", 1),
			wantErr:    protocol.ErrBadWebSocketVersion,
			wantStatus: "HTTP/1.1 426 ",
		},
		{
			name:       "missing key",
			req:        strings.Replace(upgradeRequest(), "Sec-WebSocket-Key: "+sampleKey+"\r\n", "", 1),
			wantErr:    protocol.ErrMissingWebSocketKey,
			wantStatus: "HTTP/1.1 400 ",
		},
		{
			name:       "short key",
			req:        strings.Replace(upgradeRequest(), sampleKey, "c2hvcnQ=", 1),
			wantErr:    protocol.ErrMissingWebSocketKey,
			wantStatus: "HTTP/1.1 400 ",
		},
		{
			name:       "no upgrade token",
			req:        strings.Replace(upgradeRequest(), "keep-alive, Upgrade", "keep-alive", 1),
			wantErr:    protocol.ErrInvalidUpgradeHeaders,
			wantStatus: "HTTP/1.1 400 ",
		},
		{
			name:       "post",
			req:        strings.Replace(upgradeRequest(), "GET", "POST", 1),
			wantErr:    protocol.ErrBadMethod,
			wantStatus: "HTTP/1.1 400 ",
		},
	}

	h := protocol.NewHandshaker(protocol.Limits{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.TryCompleteHandshake([]byte(tt.req))
			if res.Status != api.HandshakeRejected {
				t.Fatalf("status %v, want rejected", res.Status)
			}
			if !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("err = %v, want %v", res.Err, tt.wantErr)
			}
			if !bytes.HasPrefix(res.Response, []byte(tt.wantStatus)) {
				t.Errorf("response %q, want prefix %q", res.Response, tt.wantStatus)
			}
		})
	}
}

func TestHandshakeVersionRejectAdvertisesVersion(t *testing.T) {
	req := strings.Replace(upgradeRequest(), "Version: 13", "Version: 8", 1)
	res := protocol.NewHandshaker(protocol.Limits{}).TryCompleteHandshake([]byte(req))
	if !bytes.Contains(res.Response, []byte("Sec-WebSocket-Version: 13\r\n")) {
		t.Errorf("426 response must list the supported version: %q", res.Response)
	}
}

func TestHandshakeTooLarge(t *testing.T) {
	h := protocol.NewHandshaker(protocol.Limits{MaxHandshakeBytes: 64})

	partial := bytes.Repeat([]byte("a"), 65)
	res := h.TryCompleteHandshake(partial)
	if res.Status != api.HandshakeRejected || !errors.Is(res.Err, api.ErrHandshakeTooLong) {
		t.Fatalf("oversize partial request: status %v err %v", res.Status, res.Err)
	}

	res = h.TryCompleteHandshake([]byte(upgradeRequest()))
	if res.Status != api.HandshakeRejected || !errors.Is(res.Err, api.ErrHandshakeTooLong) {
		t.Fatalf("oversize complete request: status %v err %v", res.Status, res.Err)
	}
}

func TestHandshakeGarbage(t *testing.T) {
	res := protocol.NewHandshaker(protocol.Limits{}).TryCompleteHandshake([]byte("\x16\x03\x01 not http\r\n\r\n"))
	if res.Status != api.HandshakeRejected {
		t.Fatalf("status %v, want rejected", res.Status)
	}
}
