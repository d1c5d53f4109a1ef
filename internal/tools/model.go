package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/platform/openai"
)

const mermaidArtistPrompt = `You are a diagram author. Given a description, produce a single valid
Mermaid diagram. Respond with the Mermaid markup only, no code fences, no
commentary. Choose the diagram type (flowchart, sequence, class, ER, state)
that best fits the description.`

const codeWriterPrompt = `You are a senior software engineer writing teaching examples. Given a
task and a language, produce clear, idiomatic, runnable code with short
comments where they help a learner. Respond with the code only, no code
fences, no commentary.`

// DrawDiagramTool renders Mermaid markup with a dedicated model call.
func DrawDiagramTool(responder generate.Responder) generate.ToolDef {
	return generate.ToolDef{
		Name:        "draw_diagram",
		Description: "Draw a Mermaid diagram from a detailed description of what to show.",
		Parameters: generate.Object(map[string]any{
			"prompt": generate.String("A detailed description of the diagram to draw."),
		}),
		MaxCallsPerGenerate: 2,
		MaxCallsPerSession:  6,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Prompt string `json:"prompt"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("draw_diagram args: %w", err)
			}
			resp, err := responder.Respond(ctx, &openai.Request{
				Input: []openai.Item{
					openai.SystemMessage(mermaidArtistPrompt),
					openai.UserMessage(in.Prompt),
				},
			})
			if err != nil {
				return "", err
			}
			return stripFences(resp.OutputText), nil
		},
	}
}

// WriteCodeTool produces code with a dedicated model call.
func WriteCodeTool(responder generate.Responder) generate.ToolDef {
	return generate.ToolDef{
		Name:        "write_code",
		Description: "Write program code in the given language for the given task.",
		Parameters: generate.Object(map[string]any{
			"language": generate.String("The programming language to use."),
			"prompt":   generate.String("What the code should do."),
		}),
		MaxCallsPerGenerate: 2,
		MaxCallsPerSession:  6,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Language string `json:"language"`
				Prompt   string `json:"prompt"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("write_code args: %w", err)
			}
			resp, err := responder.Respond(ctx, &openai.Request{
				Input: []openai.Item{
					openai.SystemMessage(codeWriterPrompt),
					openai.UserMessage(fmt.Sprintf("Language: %s\nTask: %s", in.Language, in.Prompt)),
				},
			})
			if err != nil {
				return "", err
			}
			return stripFences(resp.OutputText), nil
		},
	}
}

// stripFences removes a surrounding markdown code fence if the model added
// one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
