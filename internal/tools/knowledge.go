package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/knowledge"
)

const knowledgeTopK = 8

// KnowledgeSearchTool searches the tenant's knowledge base. The tenant is
// bound at construction so the model cannot reach across tenants.
func KnowledgeSearchTool(index *knowledge.Index, tenantID uuid.UUID) generate.ToolDef {
	return generate.ToolDef{
		Name: "knowledge_search",
		Description: "Search the teacher's private knowledge base (uploaded materials, saved research, " +
			"theory from earlier modules). Category is optional: materials, web_research or theory.",
		Parameters: generate.Object(map[string]any{
			"query":    generate.String("What to look for."),
			"category": generate.Enum("Restrict the search to one category. Use empty for all.", "", knowledge.CategoryMaterials, knowledge.CategoryWebResearch, knowledge.CategoryTheory),
		}),
		MaxCallsPerGenerate: 4,
		MaxCallsPerSession:  16,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query    string `json:"query"`
				Category string `json:"category"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("knowledge_search args: %w", err)
			}
			chunks, err := index.Search(ctx, tenantID, in.Query, in.Category, knowledgeTopK)
			if err != nil {
				return "", err
			}
			if len(chunks) == 0 {
				return "nothing relevant found in the knowledge base", nil
			}
			type hit struct {
				Text     string `json:"text"`
				Category string `json:"category"`
				Source   string `json:"source"`
			}
			out := make([]hit, 0, len(chunks))
			for _, c := range chunks {
				out = append(out, hit{Text: c.Text, Category: c.Category, Source: c.Source})
			}
			raw, err := json.Marshal(out)
			if err != nil {
				return "", err
			}
			return string(raw), nil
		},
	}
}

// SaveKnowledgeTool lets a stage persist research findings for later
// modules to retrieve.
func SaveKnowledgeTool(index *knowledge.Index, tenantID uuid.UUID) generate.ToolDef {
	return generate.ToolDef{
		Name:        "save_knowledge",
		Description: "Save a piece of researched text into the knowledge base under the web_research category.",
		Parameters: generate.Object(map[string]any{
			"source": generate.String("Where the text came from (URL or short label)."),
			"text":   generate.String("The text to save."),
		}),
		MaxCallsPerGenerate: 4,
		MaxCallsPerSession:  16,
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Source string `json:"source"`
				Text   string `json:"text"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("save_knowledge args: %w", err)
			}
			n, err := index.IndexText(ctx, tenantID, knowledge.CategoryWebResearch, in.Source, in.Text)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("saved %d chunks", n), nil
		},
	}
}
