// Package flow interprets compiled step lists as a state machine, enforcing
// confirmation tokens and policy decisions, and appending every transition
// to the audit chain.
package flow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"solari/internal/types"
)

// Signature fingerprints one compiled flow: the actor, the intent, and the
// resolved entities. Confirmation tokens are scoped to exactly this value,
// so a token issued for "refund $45 to Anna" can never confirm a different
// flow.
func Signature(actor types.Actor, intent types.Intent, extraction types.ExtractionResult) string {
	// json.Marshal sorts map keys, so identical entity sets produce
	// identical bytes.
	entities, _ := json.Marshal(extraction.Entities)

	h := sha256.New()
	h.Write([]byte(actor.ID))
	h.Write([]byte{'|'})
	h.Write([]byte(intent.Qualified()))
	h.Write([]byte{'|'})
	h.Write(entities)
	return hex.EncodeToString(h.Sum(nil))
}
