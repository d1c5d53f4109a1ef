package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/eduforge/coursegen-backend/internal/course"
	"github.com/eduforge/coursegen-backend/internal/generate"
	"github.com/eduforge/coursegen-backend/internal/knowledge"
	"github.com/eduforge/coursegen-backend/internal/tools"
)

// Toolbox builds the per-content-type tool allow-lists. Each content
// generator gets only the capabilities its variant needs.
type Toolbox struct {
	Searcher  tools.WebSearcher
	Browser   tools.PageBrowser
	Videos    tools.VideoSearcher
	Responder generate.Responder
	Index     *knowledge.Index
}

// ForContentType returns a fresh ToolSet for one block generation. Nil
// means the variant works without tools.
func (tb *Toolbox) ForContentType(ct course.ContentType, tenantID uuid.UUID) (*generate.ToolSet, error) {
	var defs []generate.ToolDef
	switch ct {
	case course.ContentTypeText:
		defs = []generate.ToolDef{
			tools.WebSearchTool(tb.Searcher),
			tools.BrowsePageTool(tb.Browser),
			tools.DrawDiagramTool(tb.Responder),
			tools.KnowledgeSearchTool(tb.Index, tenantID),
			tools.SaveKnowledgeTool(tb.Index, tenantID),
		}
	case course.ContentTypeCode:
		defs = []generate.ToolDef{
			tools.WriteCodeTool(tb.Responder),
		}
	case course.ContentTypeVideo:
		defs = []generate.ToolDef{
			tools.VideoSearchTool(tb.Videos),
		}
	case course.ContentTypeQuiz:
		defs = []generate.ToolDef{
			tools.WebSearchTool(tb.Searcher),
			tools.KnowledgeSearchTool(tb.Index, tenantID),
		}
	case course.ContentTypeMermaid:
		defs = []generate.ToolDef{
			tools.DrawDiagramTool(tb.Responder),
		}
	case course.ContentTypeLink:
		defs = []generate.ToolDef{
			tools.WebSearchTool(tb.Searcher),
			tools.BrowsePageTool(tb.Browser),
		}
	default:
		return nil, fmt.Errorf("unknown content type %q", ct)
	}
	return generate.NewToolSet(defs...)
}

// ForPlanning returns the tools the module structure planner may use.
func (tb *Toolbox) ForPlanning(tenantID uuid.UUID) (*generate.ToolSet, error) {
	return generate.NewToolSet(
		tools.KnowledgeSearchTool(tb.Index, tenantID),
	)
}
