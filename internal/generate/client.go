package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/platform/openai"
)

const (
	maxToolRounds  = 12
	logSnippetSize = 200
)

// Responder is the slice of the model client Generate needs. The real
// implementation retries transport-level failures internally; what reaches
// this package is classified into the typed taxonomy.
type Responder interface {
	Respond(ctx context.Context, req *openai.Request) (*openai.Response, error)
}

// Policy bounds one structured-generation call: schema-retry attempts,
// backoff between them and a wall-clock timeout per model call.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	CallTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: 2 * time.Second, CallTimeout: 2 * time.Minute}
}

// Params describes one structured-generation request.
type Params struct {
	Stage        string
	RolePrompt   string
	Conversation []openai.Item
	Tools        *ToolSet
	SchemaName   string
	Schema       map[string]any
}

type Client struct {
	log       *logger.Logger
	responder Responder
	policy    Policy
}

func NewClient(log *logger.Logger, responder Responder, policy Policy) *Client {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	return &Client{
		log:       log.With("service", "GenerateClient"),
		responder: responder,
		policy:    policy,
	}
}

// Generate runs the model until it produces output conforming to
// p.Schema. Tool calls are executed between rounds under the ToolSet
// budgets; schema violations are re-prompted with the validation error up
// to Policy.MaxAttempts before surfacing SchemaValidationError.
func (c *Client) Generate(ctx context.Context, p Params) (map[string]any, error) {
	if p.SchemaName == "" || p.Schema == nil {
		return nil, fmt.Errorf("generate %s: output schema required", p.Stage)
	}

	input := make([]openai.Item, 0, len(p.Conversation)+1)
	input = append(input, openai.SystemMessage(p.RolePrompt))
	input = append(input, p.Conversation...)

	tools := p.Tools.Wire()
	callCounts := map[string]int{}

	for attempt := 1; ; attempt++ {
		text, newItems, err := c.runToolLoop(ctx, p, input, tools, callCounts)
		if err != nil {
			return nil, c.classify(p.Stage, attempt, err)
		}
		input = newItems

		var out map[string]any
		validationErr := func() error {
			if uErr := json.Unmarshal([]byte(text), &out); uErr != nil {
				return fmt.Errorf("output is not valid JSON: %v", uErr)
			}
			return Validate(p.Schema, out)
		}()
		if validationErr == nil {
			return out, nil
		}

		c.log.Warn("structured output rejected",
			"stage", p.Stage,
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts,
			"error", validationErr.Error(),
		)
		if attempt >= c.policy.MaxAttempts {
			return nil, &SchemaValidationError{Stage: p.Stage, Attempts: attempt, Reason: validationErr.Error()}
		}

		// Feed the violation back so the next attempt can correct it.
		input = append(input,
			openai.AssistantMessage(text),
			openai.UserMessage(fmt.Sprintf(
				"Your previous answer did not conform to the required schema: %s. Answer again with a corrected JSON object only.",
				validationErr.Error())),
		)
		select {
		case <-ctx.Done():
			return nil, c.classify(p.Stage, attempt, ctx.Err())
		case <-time.After(c.policy.Backoff):
		}
	}
}

// runToolLoop drives model rounds until the model answers with text
// instead of tool calls. It returns the final text and the accumulated
// conversation so a schema retry can continue from the same state.
func (c *Client) runToolLoop(ctx context.Context, p Params, input []openai.Item, tools []openai.Tool, callCounts map[string]int) (string, []openai.Item, error) {
	toolsDisabled := false

	for round := 0; round < maxToolRounds; round++ {
		req := &openai.Request{Input: input}
		if !toolsDisabled {
			req.Tools = tools
		}
		if p.Schema != nil {
			req.Format = &openai.SchemaFormat{Name: p.SchemaName, Schema: p.Schema}
		}

		resp, err := c.respondOnce(ctx, req)
		if err != nil {
			return "", input, err
		}
		if resp.Refusal != "" {
			return "", input, fmt.Errorf("model refused: %s", resp.Refusal)
		}
		if len(resp.ToolCalls) == 0 {
			return resp.OutputText, input, nil
		}

		for _, call := range resp.ToolCalls {
			input = append(input, openai.FunctionCallItem(call))
			output, budgetExhausted, err := c.executeTool(ctx, p, call, callCounts)
			if err != nil {
				return "", input, err
			}
			input = append(input, openai.FunctionCallOutput(call.CallID, output))
			if budgetExhausted {
				// The stage proceeds without further tool calls rather
				// than failing outright.
				toolsDisabled = true
			}
		}
	}
	return "", input, &ToolBudgetExceededError{Stage: p.Stage, Tool: "*", Calls: maxToolRounds, Budget: maxToolRounds}
}

// respondOnce applies the per-call timeout to a single model round. The
// round's context is released as soon as the call returns.
func (c *Client) respondOnce(ctx context.Context, req *openai.Request) (*openai.Response, error) {
	if c.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.CallTimeout)
		defer cancel()
	}
	return c.responder.Respond(ctx, req)
}

// executeTool runs one call under the budgets, logging duration and
// truncated input/output. A budget overrun is reported to the model, not
// returned as an error.
func (c *Client) executeTool(ctx context.Context, p Params, call openai.ToolCall, callCounts map[string]int) (output string, budgetExhausted bool, err error) {
	if p.Tools == nil {
		return fmt.Sprintf("tool %q is not available", call.Name), true, nil
	}
	def, budgetErr := p.Tools.budgetFor(call.Name, callCounts)
	if budgetErr != nil {
		var exceeded *ToolBudgetExceededError
		if errors.As(budgetErr, &exceeded) {
			c.log.Warn("tool budget exhausted",
				"stage", p.Stage, "tool", call.Name, "calls", exceeded.Calls, "budget", exceeded.Budget)
			return fmt.Sprintf("tool %q budget exhausted, finish with what you have", call.Name), true, nil
		}
		return budgetErr.Error(), false, nil
	}

	callCounts[call.Name]++
	p.Tools.recordCall(call.Name)

	started := time.Now()
	result, err := def.Handler(ctx, call.Arguments)
	elapsed := time.Since(started)

	if err != nil {
		c.log.Warn("tool call failed",
			"stage", p.Stage,
			"tool", call.Name,
			"duration", elapsed.String(),
			"args", truncate(string(call.Arguments), logSnippetSize),
			"error", err.Error(),
		)
		return fmt.Sprintf("tool %q failed: %v", call.Name, err), false, nil
	}

	c.log.Info("tool call",
		"stage", p.Stage,
		"tool", call.Name,
		"duration", elapsed.String(),
		"args", truncate(string(call.Arguments), logSnippetSize),
		"output", truncate(result, logSnippetSize),
	)
	return result, false, nil
}

// classify maps transport errors onto the typed taxonomy.
func (c *Client) classify(stage string, attempts int, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return &ProviderRateLimitedError{Stage: stage, Attempts: attempts, RetryAfter: apiErr.RetryAfter, Cause: err}
		}
		if apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout {
			return &ProviderTimeoutError{Stage: stage, Attempts: attempts, Cause: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderTimeoutError{Stage: stage, Attempts: attempts, Cause: err}
	}
	var budgetErr *ToolBudgetExceededError
	if errors.As(err, &budgetErr) {
		if budgetErr.Stage == "" {
			budgetErr.Stage = stage
		}
		return budgetErr
	}
	return fmt.Errorf("generate %s (attempt %d): %w", stage, attempts, err)
}

// DecodeInto re-marshals a generic schema-validated object into a typed
// destination.
func DecodeInto(obj map[string]any, dst any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
