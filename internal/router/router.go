// Package router classifies free text into ranked intents and resolves
// entities, delegating to the spine registry. The pattern path is fully
// deterministic; the optional external classifier is tried first and its
// failures are absorbed, never surfaced to the user.
package router

import (
	"context"
	"sort"

	"solari/internal/classifier"
	"solari/internal/logging"
	"solari/internal/spine"
	"solari/internal/types"
)

// DefaultTopN bounds the ranked candidate list.
const DefaultTopN = 5

// Router runs intent detection across all registered spines.
type Router struct {
	spines *spine.Registry
	cls    classifier.Classifier
	topN   int
}

// New creates a router. A nil classifier behaves as absent.
func New(spines *spine.Registry, cls classifier.Classifier) *Router {
	if cls == nil {
		cls = classifier.Absent{}
	}
	return &Router{spines: spines, cls: cls, topN: DefaultTopN}
}

// Detect returns ranked intent candidates for the text. When the external
// classifier is enabled and reachable its candidates win; any error, timeout,
// or empty result falls back to the deterministic pattern path.
func (r *Router) Detect(ctx context.Context, text string, snap *types.Snapshot) []types.Intent {
	if r.cls.Available() {
		candidates, err := r.cls.DetectIntent(ctx, text, snap)
		if err != nil {
			logging.RouterDebug("classifier detect failed, falling back to patterns: %v", err)
		} else if len(candidates) > 0 {
			return r.rank(candidates)
		} else {
			logging.RouterDebug("classifier returned no candidates, falling back to patterns")
		}
	}
	return r.rank(r.patternDetect(text, snap))
}

// patternDetect concatenates every spine's candidates in declaration order.
func (r *Router) patternDetect(text string, snap *types.Snapshot) []types.Intent {
	var out []types.Intent
	for _, m := range r.spines.InOrder() {
		out = append(out, m.Detect(text, snap)...)
	}
	return out
}

// rank sorts descending by confidence and truncates to topN. The sort is
// stable so ties keep spine declaration order.
func (r *Router) rank(candidates []types.Intent) []types.Intent {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > r.topN {
		candidates = candidates[:r.topN]
	}
	for i, c := range candidates {
		logging.RouterDebug("candidate %d: %s conf=%.2f matched=%q", i, c.Qualified(), c.Confidence, c.MatchedText)
	}
	return candidates
}

// Extract resolves entities for a chosen intent. Pattern extraction runs
// first; when the classifier is available, its entities fill only the gaps,
// so fields the deterministic path already resolved never change. This is
// deliberately narrower than letting a non-empty classifier result take
// precedence: with a live classifier, pattern-resolved fields stay stable
// across repeated calls, which confirmation tokens rely on (the flow
// signature covers the extracted entities).
func (r *Router) Extract(ctx context.Context, intent types.Intent, text string, snap *types.Snapshot) types.ExtractionResult {
	module := r.spines.Get(intent.Spine)
	if module == nil {
		logging.ExtractDebug("no spine module for %q", intent.Spine)
		res := types.NewExtractionResult()
		res.AddMissing("intent")
		return res
	}

	res := module.Extract(intent, text, snap)

	if len(res.Missing) > 0 && r.cls.Available() {
		fromCls, err := r.cls.ExtractEntities(ctx, intent, text, snap)
		if err != nil {
			logging.ExtractDebug("classifier extract failed, keeping pattern result: %v", err)
			return res
		}
		if len(fromCls.Entities) > 0 {
			res = mergeExtraction(res, fromCls)
		}
	}
	return res
}

// mergeExtraction fills the base result's missing fields from the classifier
// result. Pattern-resolved values always win.
func mergeExtraction(base, extra types.ExtractionResult) types.ExtractionResult {
	merged := types.NewExtractionResult()
	for k, v := range base.Entities {
		merged.Entities[k] = v
	}
	for k, v := range extra.Entities {
		if _, exists := merged.Entities[k]; !exists {
			merged.Entities[k] = v
		}
	}
	for _, field := range base.Missing {
		if _, ok := merged.Entities[field]; ok {
			continue
		}
		if resolvedByAlias(field, merged.Entities) {
			continue
		}
		merged.AddMissing(field)
	}
	return merged
}

// resolvedByAlias maps the asked-for field names to the entity keys that
// satisfy them (asking for "client" is satisfied by a client_id entity).
func resolvedByAlias(field string, entities map[string]any) bool {
	aliases := map[string][]string{
		"client":     {"client_id"},
		"service":    {"service_id"},
		"duplicate":  {"duplicate_id"},
		"contact":    {"value"},
		"booking_id": {"booking_id"},
	}
	for _, key := range aliases[field] {
		if _, ok := entities[key]; ok {
			return true
		}
	}
	return false
}
