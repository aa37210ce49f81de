// Package orchestrator is the caller-facing entry point: free text in,
// authorized and audited execution out. It wires the router, the spine
// registry, the flow executor, and the audit chain into Handle and Explain.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"solari/internal/audit"
	"solari/internal/classifier"
	"solari/internal/flow"
	"solari/internal/logging"
	"solari/internal/router"
	"solari/internal/spine"
	"solari/internal/types"
)

// DefaultMinConfidence is the floor below which a ranked intent is treated
// as unrecognized.
const DefaultMinConfidence = 0.5

// Options tunes a single Handle call.
type Options struct {
	Actor types.Actor

	// ConfirmationToken redeems a pending confirmation from an earlier run.
	ConfirmationToken string

	// Explain attaches a human-readable explanation to the result.
	Explain bool
}

// Orchestrator owns the request pipeline. It is safe for concurrent use;
// the audit chain is the only serialization point.
type Orchestrator struct {
	router        *router.Router
	spines        *spine.Registry
	executor      *flow.Executor
	chain         *audit.Chain
	cls           classifier.Classifier
	minConfidence float64
}

// New wires an orchestrator. A nil classifier means pattern-only routing.
func New(spines *spine.Registry, executor *flow.Executor, chain *audit.Chain, cls classifier.Classifier, minConfidence float64) (*Orchestrator, error) {
	if spines == nil || executor == nil || chain == nil {
		return nil, fmt.Errorf("orchestrator requires spine registry, executor and audit chain")
	}
	if cls == nil {
		cls = classifier.Absent{}
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Orchestrator{
		router:        router.New(spines, cls),
		spines:        spines,
		executor:      executor,
		chain:         chain,
		cls:           cls,
		minConfidence: minConfidence,
	}, nil
}

// Handle turns one free-text request into an executed (or halted) flow.
// Unrecognized text completes with ok:false and a clarification message
// rather than an error; every other outcome comes from the executor.
func (o *Orchestrator) Handle(ctx context.Context, text string, snap *types.Snapshot, opts Options) types.FlowRunResult {
	intents := o.router.Detect(ctx, text, snap)
	o.auditDetection(opts.Actor, text, intents)

	if len(intents) == 0 || intents[0].Confidence < o.minConfidence {
		logging.RouterDebug("unrecognized request %q (candidates=%d)", text, len(intents))
		result := types.FlowRunResult{
			State:   types.StateCompleted,
			OK:      false,
			Message: "I didn't recognize that request. Try something like \"book Anna for a cut tomorrow at 3\".",
			Data:    map[string]any{"unrecognized": true},
		}
		return o.maybeExplain(ctx, text, snap, opts, result)
	}

	intent := intents[0]
	extraction := o.router.Extract(ctx, intent, text, snap)
	steps := o.compile(intent, extraction, snap)

	result := o.executor.Run(ctx, flow.Request{
		Actor:             opts.Actor,
		Intent:            intent,
		Text:              text,
		Steps:             steps,
		Signature:         flow.Signature(opts.Actor, intent, extraction),
		ConfirmationToken: opts.ConfirmationToken,
	})
	return o.maybeExplain(ctx, text, snap, opts, result)
}

// Explain dry-runs the pipeline: it reports what Handle would do for the
// text without executing a step, issuing a token, or appending to the audit
// chain.
func (o *Orchestrator) Explain(ctx context.Context, text string, snap *types.Snapshot) string {
	intents := o.router.Detect(ctx, text, snap)
	if len(intents) == 0 || intents[0].Confidence < o.minConfidence {
		return "This request does not match any supported operation."
	}

	intent := intents[0]
	extraction := o.router.Extract(ctx, intent, text, snap)
	steps := o.compile(intent, extraction, snap)

	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s (confidence %.2f)\n", intent.Qualified(), intent.Confidence)
	if len(extraction.Missing) > 0 {
		fmt.Fprintf(&b, "Missing: %s\n", strings.Join(extraction.Missing, ", "))
	}
	b.WriteString("Plan:\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, describeStep(step))
	}
	return b.String()
}

// compile delegates to the intent's spine module. An intent without a module
// compiles to a single explanatory response.
func (o *Orchestrator) compile(intent types.Intent, extraction types.ExtractionResult, snap *types.Snapshot) []types.FlowStep {
	module := o.spines.Get(intent.Spine)
	if module == nil {
		return []types.FlowStep{
			types.Respond(fmt.Sprintf("The %q domain is not available.", intent.Spine)),
		}
	}
	return module.BuildFlow(intent, extraction, snap)
}

// maybeExplain attaches an explanation when requested, preferring the
// classifier's prose and falling back to the deterministic description.
func (o *Orchestrator) maybeExplain(ctx context.Context, text string, snap *types.Snapshot, opts Options, result types.FlowRunResult) types.FlowRunResult {
	if !opts.Explain {
		return result
	}
	if o.cls.Available() {
		if prose, err := o.cls.Explain(ctx, text, snap, result); err == nil && prose != "" {
			result.Explanation = prose
			return result
		}
	}
	result.Explanation = fmt.Sprintf("Request %q finished in state %s: %s", text, result.State, result.Message)
	return result
}

// auditDetection records the ranked candidates for one request. Detection
// is recorded even when nothing qualifies, so unrecognized requests leave a
// trace too.
func (o *Orchestrator) auditDetection(actor types.Actor, text string, intents []types.Intent) {
	qualified := make([]string, len(intents))
	for i, it := range intents {
		qualified[i] = fmt.Sprintf("%s:%.2f", it.Qualified(), it.Confidence)
	}
	_, err := o.chain.Append(audit.KindIntentDetected, actor.String(),
		map[string]any{"text": text},
		map[string]any{"candidates": qualified},
	)
	if err != nil {
		logging.Get(logging.CategoryAudit).Error("intent detection audit failed: %v", err)
	}
}

func describeStep(step types.FlowStep) string {
	switch step.Kind {
	case types.StepRespond:
		return fmt.Sprintf("respond: %s", step.Message)
	case types.StepAsk:
		return fmt.Sprintf("ask for %s", step.Field)
	case types.StepConfirm:
		return fmt.Sprintf("confirm: %s", step.Prompt)
	case types.StepToolCall:
		return fmt.Sprintf("call %s", step.Tool)
	default:
		return string(step.Kind)
	}
}
