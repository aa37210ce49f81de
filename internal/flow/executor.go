package flow

import (
	"context"
	"fmt"
	"time"

	"solari/internal/audit"
	"solari/internal/logging"
	"solari/internal/policy"
	"solari/internal/tools"
	"solari/internal/types"
)

// ============================================================================
// FLOW EXECUTOR
// ============================================================================

// Request is one execution attempt over a compiled flow.
type Request struct {
	Actor             types.Actor
	Intent            types.Intent
	Text              string
	Steps             []types.FlowStep
	Signature         string
	ConfirmationToken string
}

// Executor walks compiled steps in order and enforces the two hard rules of
// the core: no tool call without a recorded policy allow, and no side effect
// past a Confirm step without a redeemed token.
type Executor struct {
	gate     *policy.Gate
	registry *tools.Registry
	chain    *audit.Chain
	tokens   *TokenStore
}

// NewExecutor wires an executor over its collaborators. All four are required.
func NewExecutor(gate *policy.Gate, registry *tools.Registry, chain *audit.Chain, tokens *TokenStore) (*Executor, error) {
	if gate == nil || registry == nil || chain == nil || tokens == nil {
		return nil, fmt.Errorf("executor requires gate, registry, chain and token store")
	}
	return &Executor{gate: gate, registry: registry, chain: chain, tokens: tokens}, nil
}

// Run executes req.Steps until a terminal state is reached. Every state
// transition is appended to the audit chain before Run returns; the audit
// record for an executed tool call carries the allow decision that preceded
// it, so an executed call without an allow cannot appear in the log.
//
// A panic in a step or collaborator is absorbed at this boundary and
// surfaces as StateFailed.
func (e *Executor) Run(ctx context.Context, req Request) (result types.FlowRunResult) {
	result = types.FlowRunResult{
		State: types.StateRunning,
		Data:  make(map[string]any),
	}

	defer func() {
		if r := recover(); r != nil {
			logging.FlowDebug("panic during flow %s: %v", req.Intent.Qualified(), r)
			result.State = types.StateFailed
			result.OK = false
			result.Message = "The request could not be completed."
			result.Data["cause"] = fmt.Sprintf("panic: %v", r)
			e.append(audit.KindFailed, req, map[string]any{
				"state": types.StateFailed,
				"cause": fmt.Sprintf("panic: %v", r),
			})
		}
	}()

	for i, step := range req.Steps {
		switch step.Kind {
		case types.StepRespond:
			result.Message = step.Message
			result.StepsExecuted = append(result.StepsExecuted, types.StepOutcome{
				Step: step, State: types.StateRunning,
			})

		case types.StepAsk:
			return e.ask(req, result, step, req.Steps[i:])

		case types.StepConfirm:
			if !e.tokens.Redeem(req.ConfirmationToken, req.Signature) {
				return e.pendConfirmation(req, result, step)
			}
			result.StepsExecuted = append(result.StepsExecuted, types.StepOutcome{
				Step: step, State: types.StateRunning, Detail: "confirmed",
			})
			e.append(audit.KindConfirmed, req, map[string]any{
				"prompt": step.Prompt,
			})

		case types.StepToolCall:
			if halted := e.callTool(ctx, req, &result, step); halted {
				return result
			}

		default:
			result.State = types.StateFailed
			result.OK = false
			result.Message = "The request could not be completed."
			result.Data["cause"] = fmt.Sprintf("unknown step kind %q", step.Kind)
			e.append(audit.KindFailed, req, map[string]any{
				"state": types.StateFailed,
				"cause": result.Data["cause"],
			})
			return result
		}
	}

	result.State = types.StateCompleted
	result.OK = true
	e.append(audit.KindCompleted, req, map[string]any{
		"state":   types.StateCompleted,
		"ok":      true,
		"message": result.Message,
		"steps":   len(result.StepsExecuted),
	})
	return result
}

// ask halts the flow on the first unresolved field. The caller gets the full
// remaining list so a client can collect everything in one round trip.
func (e *Executor) ask(req Request, result types.FlowRunResult, step types.FlowStep, remaining []types.FlowStep) types.FlowRunResult {
	var missing []string
	for _, s := range remaining {
		if s.Kind == types.StepAsk {
			missing = append(missing, s.Field)
		}
	}

	result.State = types.StateCompleted
	result.OK = false
	result.Message = fmt.Sprintf("I need more information: %s.", step.Field)
	result.Data["missing"] = missing
	result.StepsExecuted = append(result.StepsExecuted, types.StepOutcome{
		Step: step, State: types.StateCompleted, Detail: "missing " + step.Field,
	})
	e.append(audit.KindAsk, req, map[string]any{
		"state":   types.StateCompleted,
		"ok":      false,
		"missing": missing,
	})
	return result
}

// pendConfirmation issues a fresh token scoped to this flow's signature and
// halts. A consumed or mismatched token lands here too, so replaying an
// already-redeemed token behaves exactly like supplying none.
func (e *Executor) pendConfirmation(req Request, result types.FlowRunResult, step types.FlowStep) types.FlowRunResult {
	token := e.tokens.Issue(req.Signature)

	result.State = types.StatePendingConfirmation
	result.OK = false
	result.Message = step.Prompt
	result.ConfirmationToken = token
	result.StepsExecuted = append(result.StepsExecuted, types.StepOutcome{
		Step: step, State: types.StatePendingConfirmation, Detail: "token issued",
	})
	e.append(audit.KindConfirmPending, req, map[string]any{
		"state":  types.StatePendingConfirmation,
		"prompt": step.Prompt,
	})
	return result
}

// callTool authorizes and executes one tool call, mutating result in place.
// It returns true for any outcome that stops the flow.
func (e *Executor) callTool(ctx context.Context, req Request, result *types.FlowRunResult, step types.FlowStep) bool {
	decision := e.gate.Authorize(req.Actor, step.Tool, step.Args)
	if !decision.Allow {
		logging.FlowDebug("blocked actor=%s tool=%s reason=%s", req.Actor, step.Tool, decision.Reason)

		result.State = types.StateBlocked
		result.OK = false
		result.Message = fmt.Sprintf("That action is not permitted: %s.", decision.Reason)
		result.Data["decision"] = decision
		result.StepsExecuted = append(result.StepsExecuted, types.StepOutcome{
			Step: step, State: types.StateBlocked, Detail: decision.Reason,
		})
		e.append(audit.KindBlocked, req, map[string]any{
			"state":    types.StateBlocked,
			"tool":     step.Tool,
			"args":     step.Args,
			"decision": decision,
		})
		return true
	}

	start := time.Now()
	res, err := e.registry.Invoke(ctx, step.Tool, step.Args)
	elapsed := time.Since(start).Milliseconds()

	if err != nil || !res.IsSuccess() {
		cause := ""
		if err != nil {
			cause = err.Error()
		} else {
			cause = res.ErrorText
		}
		logging.FlowDebug("tool failed tool=%s err=%s", step.Tool, cause)

		result.State = types.StateFailed
		result.OK = false
		result.Message = "The request could not be completed."
		result.Data["cause"] = cause
		result.Data["tool"] = step.Tool
		result.StepsExecuted = append(result.StepsExecuted, types.StepOutcome{
			Step: step, State: types.StateFailed, Detail: cause, DurationMs: elapsed,
		})
		e.append(audit.KindFailed, req, map[string]any{
			"state":    types.StateFailed,
			"tool":     step.Tool,
			"args":     step.Args,
			"decision": decision,
			"error":    cause,
		})
		return true
	}

	result.Data["result"] = res.Data
	result.StepsExecuted = append(result.StepsExecuted, types.StepOutcome{
		Step: step, State: types.StateRunning, DurationMs: elapsed,
	})
	e.append(audit.KindExecuted, req, map[string]any{
		"tool":     step.Tool,
		"args":     step.Args,
		"decision": decision,
		"result":   res.Data,
	})
	return false
}

// append writes one audit event for this run. Audit sink failures do not
// abort the flow; they are logged and the run result stands.
func (e *Executor) append(kind string, req Request, result any) {
	request := map[string]any{
		"intent":    req.Intent.Qualified(),
		"text":      req.Text,
		"signature": req.Signature,
	}
	if _, err := e.chain.Append(kind, req.Actor.String(), request, result); err != nil {
		logging.Get(logging.CategoryFlow).Error("audit append failed: %v", err)
	}
}
