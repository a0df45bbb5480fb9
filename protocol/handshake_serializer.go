// File: protocol/handshake_serializer.go
// Package protocol
// Helper functions serializing WebSocket handshake responses.
package protocol

import (
	"fmt"
	"io"
	"net/http"
	"sort"
)

// WriteHandshakeResponse writes the 101 status line and hdr to w.
func WriteHandshakeResponse(w io.Writer, hdr http.Header) error {
	if _, err := fmt.Fprintf(w, "HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return err
	}
	keys := make([]string, 0, len(hdr))
	for k := range hdr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range hdr[k] {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", k, v); err != nil {
				return err
			}
		}
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	return nil
}

// errorResponse renders the reply sent before dropping a rejected upgrade.
func errorResponse(status int) []byte {
	extra := ""
	if status == http.StatusUpgradeRequired {
		extra = HeaderSecWebSocketVer + ": " + RequiredWebSocketVersion + "\r\n"
	}
	return []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\nConnection: close\r\n%sContent-Length: 0\r\n\r\n",
		status, http.StatusText(status), extra))
}
