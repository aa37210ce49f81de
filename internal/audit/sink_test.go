package audit

import (
	"path/filepath"
	"testing"
)

func TestJSONLSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("NewJSONLSink failed: %v", err)
	}
	defer sink.Close()

	chain, _ := NewChain(sink)
	appendN(t, chain, 3)

	reopened, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("want 3 events, got %d", len(events))
	}
	if err := Verify(events); err != nil {
		t.Fatalf("round-tripped chain failed verification: %v", err)
	}
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer sink.Close()

	chain, _ := NewChain(sink)
	appendN(t, chain, 4)

	events, err := sink.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("want 4 events, got %d", len(events))
	}
	if err := Verify(events); err != nil {
		t.Fatalf("sqlite chain failed verification: %v", err)
	}

	// A fresh chain over the same database must resume, not restart.
	resumed, err := NewChain(sink)
	if err != nil {
		t.Fatalf("NewChain over sqlite failed: %v", err)
	}
	if resumed.Head() != events[3].Hash {
		t.Error("resumed head does not match last stored hash")
	}
}
