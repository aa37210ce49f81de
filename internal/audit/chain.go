// Package audit implements the tamper-evident, hash-chained decision log.
// Every event's hash covers the previous event's hash, so any mutation,
// removal, or reordering of history is detectable by Verify.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"solari/internal/logging"
)

// Event kinds appended by the executor and orchestrator.
const (
	KindIntentDetected = "intent_detected"
	KindAllowed        = "allowed"
	KindBlocked        = "blocked"
	KindExecuted       = "executed"
	KindAsk            = "ask"
	KindConfirmPending = "confirm_pending"
	KindConfirmed      = "confirmed"
	KindCompleted      = "completed"
	KindFailed         = "failed"
	KindExplained      = "explained"
)

// Event is one hash-linked audit record. Request and Result are opaque
// snapshots of what was decided; the chain does not interpret them.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"ts"`
	Kind      string          `json:"kind"`
	Actor     string          `json:"actor"`
	Request   json.RawMessage `json:"request"`
	Result    json.RawMessage `json:"result"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// ComputeHash derives the chain hash over every linked field of an event.
// Kind and Actor are covered so attribution cannot be rewritten in stored
// history without breaking verification. The first event of a chain uses an
// empty prevHash.
func ComputeHash(prevHash string, ts time.Time, kind, actor string, request, result []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte{'|'})
	h.Write([]byte(ts.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{'|'})
	h.Write([]byte(kind))
	h.Write([]byte{'|'})
	h.Write([]byte(actor))
	h.Write([]byte{'|'})
	h.Write(request)
	h.Write([]byte{'|'})
	h.Write(result)
	return hex.EncodeToString(h.Sum(nil))
}

// Sink is durable storage for events. The chain only needs append and
// sequential read-back, not query capability.
type Sink interface {
	Append(ev Event) error
	ReadAll() ([]Event, error)
}

// Chain is the single serialization point of the core. Append is guarded by
// one mutex so two concurrent appends can never observe the same prevHash
// and fork the chain.
type Chain struct {
	mu    sync.Mutex
	head  string
	count int
	sink  Sink
}

// NewChain creates a chain over the given sink. If the sink already holds
// events, the chain resumes from the last event's hash.
func NewChain(sink Sink) (*Chain, error) {
	c := &Chain{sink: sink}
	existing, err := sink.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read back audit sink: %w", err)
	}
	if n := len(existing); n > 0 {
		c.head = existing[n-1].Hash
		c.count = n
	}
	return c, nil
}

// Append marshals request and result, links the event to the current head,
// and writes it to the sink. On sink failure the head is left untouched.
func (c *Chain) Append(kind, actor string, request, result any) (Event, error) {
	reqJSON, err := json.Marshal(request)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal audit request: %w", err)
	}
	resJSON, err := json.Marshal(result)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal audit result: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ev := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Actor:     actor,
		Request:   reqJSON,
		Result:    resJSON,
		PrevHash:  c.head,
	}
	ev.Hash = ComputeHash(ev.PrevHash, ev.Timestamp, ev.Kind, ev.Actor, ev.Request, ev.Result)

	if err := c.sink.Append(ev); err != nil {
		return Event{}, fmt.Errorf("failed to append audit event: %w", err)
	}
	c.head = ev.Hash
	c.count++

	logging.AuditDebug("append kind=%s actor=%s id=%s hash=%s", kind, actor, ev.ID, ev.Hash[:12])
	return ev, nil
}

// Head returns the hash of the most recent event, or "" for an empty chain.
func (c *Chain) Head() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

// Len returns the number of appended events.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// ErrChainCorrupt reports a broken linkage or recomputed-hash mismatch.
// Corruption is fatal to verification only; it never blocks new appends.
var ErrChainCorrupt = errors.New("audit chain corrupt")

// Verify recomputes every hash over the sink's full history and confirms
// linkage. Read-only; safe to run while appends continue (it sees a prefix).
func (c *Chain) Verify() error {
	events, err := c.sink.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read audit sink: %w", err)
	}
	return Verify(events)
}

// Verify checks an explicit event sequence for gaps, reordered records, and
// field tampering. The first failing index is reported.
func Verify(events []Event) error {
	prev := ""
	for i, ev := range events {
		if ev.PrevHash != prev {
			return fmt.Errorf("%w: event %d (%s) prev_hash mismatch: have %q, want %q",
				ErrChainCorrupt, i, ev.ID, ev.PrevHash, prev)
		}
		want := ComputeHash(ev.PrevHash, ev.Timestamp, ev.Kind, ev.Actor, ev.Request, ev.Result)
		if ev.Hash != want {
			return fmt.Errorf("%w: event %d (%s) hash mismatch", ErrChainCorrupt, i, ev.ID)
		}
		prev = ev.Hash
	}
	return nil
}
