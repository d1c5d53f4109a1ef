package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Item is one entry of a Responses API input list. Exactly one shape is
// used per item: a role message, a prior function call echoed back, or a
// function call output.
type Item struct {
	Type string `json:"type,omitempty"`

	// message
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`

	// function_call (echoed back when continuing after a tool round)
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`

	// function_call_output
	Output string `json:"output,omitempty"`
}

func SystemMessage(text string) Item { return Item{Type: "message", Role: "system", Content: text} }
func UserMessage(text string) Item   { return Item{Type: "message", Role: "user", Content: text} }
func AssistantMessage(text string) Item {
	return Item{Type: "message", Role: "assistant", Content: text}
}

func FunctionCallItem(call ToolCall) Item {
	return Item{Type: "function_call", Name: call.Name, Arguments: string(call.Arguments), CallID: call.CallID}
}

func FunctionCallOutput(callID, output string) Item {
	return Item{Type: "function_call_output", CallID: callID, Output: output}
}

// Tool is a function tool definition in the wire shape /v1/responses expects.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
	Strict      bool           `json:"strict,omitempty"`
}

// SchemaFormat asks for strict structured output against a closed schema.
type SchemaFormat struct {
	Name   string
	Schema map[string]any
}

type Request struct {
	Model  string
	Input  []Item
	Tools  []Tool
	Format *SchemaFormat
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments json.RawMessage
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type Response struct {
	OutputText string
	ToolCalls  []ToolCall
	Refusal    string
	Usage      Usage
}

type responsesRequest struct {
	Model string `json:"model"`
	Input []Item `json:"input"`
	Tools []Tool `json:"tools,omitempty"`
	Text  *struct {
		Format map[string]any `json:"format"`
	} `json:"text,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
		CallID    string `json:"call_id,omitempty"`
	} `json:"output"`
	Usage Usage `json:"usage"`
}

func (c *client) Respond(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Input) == 0 {
		return nil, fmt.Errorf("responses: empty input")
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	wire := responsesRequest{Model: model, Input: req.Input, Tools: req.Tools}
	if req.Format != nil {
		wire.Text = &struct {
			Format map[string]any `json:"format"`
		}{Format: map[string]any{
			"type":   "json_schema",
			"name":   req.Format.Name,
			"schema": req.Format.Schema,
			"strict": true,
		}}
	}

	var raw responsesResponse
	if err := c.do(ctx, "/v1/responses", &wire, &raw); err != nil {
		return nil, err
	}

	out := &Response{Usage: raw.Usage}
	var text strings.Builder
	for _, item := range raw.Output {
		switch item.Type {
		case "message":
			for _, content := range item.Content {
				switch content.Type {
				case "output_text":
					text.WriteString(content.Text)
				case "refusal":
					out.Refusal = content.Refusal
				}
			}
		case "function_call":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				CallID:    item.CallID,
				Name:      item.Name,
				Arguments: json.RawMessage(item.Arguments),
			})
		}
	}
	out.OutputText = text.String()
	return out, nil
}
