package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "json", "info")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("conn.accepted", "id", 1)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not one JSON record: %q", buf.String())
	}
	if rec["msg"] != "conn.accepted" || rec["id"] != float64(1) {
		t.Errorf("record = %v", rec)
	}
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "TEXT", "debug")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("conn.closed", "reason", "peer_closed")
	if !strings.Contains(buf.String(), "msg=conn.closed reason=peer_closed") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	if _, err := newLogger(&bytes.Buffer{}, "xml", "info"); err == nil {
		t.Error("unknown format accepted")
	}
	if _, err := newLogger(&bytes.Buffer{}, "json", "loud"); err == nil {
		t.Error("unknown level accepted")
	}
}
