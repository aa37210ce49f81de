package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	genai "google.golang.org/genai"

	"solari/internal/types"
)

const defaultModel = "gemini-2.0-flash"

// GenAI is the Gemini-backed classifier. It asks for application/json
// responses and parses them into core types; any parse or transport problem
// is an error the router absorbs.
type GenAI struct {
	cli     *genai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// NewGenAI creates a Gemini classifier. A nil logger falls back to zap.NewNop.
func NewGenAI(ctx context.Context, apiKey, model string, timeout time.Duration, log *zap.Logger) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("classifier API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAI{cli: cli, model: model, timeout: timeout, log: log}, nil
}

// Available reports true once the client is constructed; transport failures
// at call time still degrade to the pattern path.
func (g *GenAI) Available() bool {
	return g != nil && g.cli != nil
}

// generateJSON sends one prompt and returns the raw JSON text of the first
// candidate. A timeout maps to ErrUnavailable so callers treat it exactly
// like an absent classifier.
func (g *GenAI) generateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		if ctx.Err() != nil {
			g.log.Warn("classifier timed out", zap.Duration("after", time.Since(start)))
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		g.log.Warn("classifier call failed", zap.Error(err))
		return nil, fmt.Errorf("classifier call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("classifier returned no candidates")
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	g.log.Debug("classifier response",
		zap.String("model", g.model),
		zap.Int("bytes", len(text)),
		zap.Duration("took", time.Since(start)))
	return json.RawMessage(text), nil
}

// DetectIntent implements Classifier.
func (g *GenAI) DetectIntent(ctx context.Context, text string, snap *types.Snapshot) ([]types.Intent, error) {
	prompt := detectPrompt(text)
	raw, err := g.generateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseIntents(raw)
}

// ExtractEntities implements Classifier.
func (g *GenAI) ExtractEntities(ctx context.Context, intent types.Intent, text string, snap *types.Snapshot) (types.ExtractionResult, error) {
	prompt := extractPrompt(intent, text)
	raw, err := g.generateJSON(ctx, prompt)
	if err != nil {
		return types.ExtractionResult{}, err
	}
	return parseEntities(raw)
}

// Explain implements Classifier.
func (g *GenAI) Explain(ctx context.Context, operation string, snap *types.Snapshot, result any) (string, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result for explanation: %w", err)
	}
	prompt := fmt.Sprintf(`Explain the following business operation result to a front-desk operator in one short paragraph.
Respond as JSON: {"explanation": "..."}.

Operation: %s
Result: %s`, operation, resultJSON)

	raw, err := g.generateJSON(ctx, prompt)
	if err != nil {
		return "", err
	}
	var payload struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("failed to parse explanation: %w", err)
	}
	return payload.Explanation, nil
}

func detectPrompt(text string) string {
	return fmt.Sprintf(`Classify this business operator request into intents.
Known spines and intents:
  booking: create, reschedule, cancel
  payments: capture, refund
  clients: update, merge, suspend
  campaigns: send, preview
  admin: set_hours, set_price, toggle

Respond as JSON: {"intents":[{"spine":"...","name":"...","confidence":0.0,"matched_text":"..."}]}
Confidence is in [0,1]. Return at most 5 candidates, best first. Return an empty list when nothing fits.

Request: %q`, text)
}

func extractPrompt(intent types.Intent, text string) string {
	return fmt.Sprintf(`Extract entities for the intent %q from this operator request.
Respond as JSON: {"entities":{"field":"value"},"missing":["field"]}
List under "missing" every required field you cannot resolve.

Request: %q`, intent.Qualified(), text)
}

func parseIntents(raw json.RawMessage) ([]types.Intent, error) {
	var payload struct {
		Intents []types.Intent `json:"intents"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse classifier intents: %w", err)
	}
	out := payload.Intents[:0]
	for _, in := range payload.Intents {
		if strings.TrimSpace(in.Spine) == "" || strings.TrimSpace(in.Name) == "" {
			continue
		}
		if in.Confidence < 0 {
			in.Confidence = 0
		}
		if in.Confidence > 1 {
			in.Confidence = 1
		}
		out = append(out, in)
	}
	return out, nil
}

func parseEntities(raw json.RawMessage) (types.ExtractionResult, error) {
	var payload struct {
		Entities map[string]any `json:"entities"`
		Missing  []string       `json:"missing"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return types.ExtractionResult{}, fmt.Errorf("failed to parse classifier entities: %w", err)
	}
	res := types.ExtractionResult{Entities: payload.Entities}
	if res.Entities == nil {
		res.Entities = make(map[string]any)
	}
	for _, m := range payload.Missing {
		res.AddMissing(m)
	}
	return res, nil
}
