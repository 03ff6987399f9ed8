package httpapi

import (
	"bufio"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAuditLogRingCap(t *testing.T) {
	l := newAuditLog(3, nil)
	for i := 0; i < 5; i++ {
		l.add(auditEntry{Status: 200 + i})
	}

	entries := l.list()
	if len(entries) != 3 {
		t.Fatalf("ring length: got %d want 3", len(entries))
	}
	if entries[0].Status != 202 || entries[2].Status != 204 {
		t.Fatalf("ring kept wrong entries: %+v", entries)
	}

	limited := l.listLimit(2)
	if len(limited) != 2 || limited[1].Status != 204 {
		t.Fatalf("listLimit: got %+v", limited)
	}
}

func TestFileAuditSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := newFileAuditSink(path)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	want := auditEntry{
		Time:   time.Now().UTC(),
		User:   "u1",
		Path:   "/api/articles",
		Method: http.MethodPost,
		Status: http.StatusCreated,
	}
	if err := sink.Write(want); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("sink wrote no lines")
	}
	var got auditEntry
	if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if got.User != want.User || got.Path != want.Path || got.Status != want.Status {
		t.Fatalf("entry round trip: got %+v want %+v", got, want)
	}
}
