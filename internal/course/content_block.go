package course

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentType discriminates the content-block union. The set is closed:
// decoding an unknown discriminator is an error, never a silent fallback.
type ContentType string

const (
	ContentTypeText    ContentType = "text"
	ContentTypeVideo   ContentType = "video"
	ContentTypeCode    ContentType = "code"
	ContentTypeQuiz    ContentType = "quiz"
	ContentTypeMermaid ContentType = "mermaid"
	ContentTypeLink    ContentType = "link"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeText, ContentTypeVideo, ContentTypeCode,
		ContentTypeQuiz, ContentTypeMermaid, ContentTypeLink:
		return true
	default:
		return false
	}
}

// ContentBlock is one unit of instructional material inside a module.
// The interface is sealed; every variant lives in this package so that
// adding a block type is a compile-time-checked change.
type ContentBlock interface {
	Type() ContentType
	isContentBlock()
}

// TextBlock carries theory material as markdown.
type TextBlock struct {
	MDContent   string `json:"md_content"`
	AIGenerated bool   `json:"ai_generated"`
}

func (TextBlock) Type() ContentType { return ContentTypeText }
func (TextBlock) isContentBlock() {}

type KeyMoment struct {
	At    string `json:"at"`
	Label string `json:"label"`
}

type VideoBlock struct {
	URL                 string      `json:"url"`
	Platform            string      `json:"platform"`
	Title               string      `json:"title"`
	DurationSeconds     int         `json:"duration_seconds"`
	KeyMoments          []KeyMoment `json:"key_moments,omitempty"`
	DiscussionQuestions []string    `json:"discussion_questions,omitempty"`
	AIGenerated         bool        `json:"ai_generated"`
}

func (VideoBlock) Type() ContentType { return ContentTypeVideo }
func (VideoBlock) isContentBlock() {}

type CodeBlock struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
	AIGenerated bool   `json:"ai_generated"`
}

func (CodeBlock) Type() ContentType { return ContentTypeCode }
func (CodeBlock) isContentBlock() {}

type QuizQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type QuizBlock struct {
	Questions   []QuizQuestion `json:"questions"`
	AIGenerated bool           `json:"ai_generated"`
}

func (QuizBlock) Type() ContentType { return ContentTypeQuiz }
func (QuizBlock) isContentBlock() {}

type MermaidBlock struct {
	Caption     string `json:"caption,omitempty"`
	Diagram     string `json:"diagram"`
	AIGenerated bool   `json:"ai_generated"`
}

func (MermaidBlock) Type() ContentType { return ContentTypeMermaid }
func (MermaidBlock) isContentBlock() {}

type LinkBlock struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Summary     string `json:"summary,omitempty"`
	AIGenerated bool   `json:"ai_generated"`
}

func (LinkBlock) Type() ContentType { return ContentTypeLink }
func (LinkBlock) isContentBlock() {}

const contentTypeKey = "content_type"

// MarshalContentBlock encodes a block as a JSON document carrying the
// content_type discriminator next to the variant fields. It validates the
// block first, so a document that marshals is always readable back.
func MarshalContentBlock(b ContentBlock) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("nil content block")
	}
	if err := validateContentBlock(b); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m[contentTypeKey] = string(b.Type())
	return json.Marshal(m)
}

// UnmarshalContentBlock dispatches on the content_type discriminator before
// touching any variant field, then validates the variant.
func UnmarshalContentBlock(data []byte) (ContentBlock, error) {
	var head struct {
		ContentType ContentType `json:"content_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode content block: %w", err)
	}

	var (
		block ContentBlock
		err   error
	)
	switch head.ContentType {
	case ContentTypeText:
		var v TextBlock
		err = json.Unmarshal(data, &v)
		block = v
	case ContentTypeVideo:
		var v VideoBlock
		err = json.Unmarshal(data, &v)
		block = v
	case ContentTypeCode:
		var v CodeBlock
		err = json.Unmarshal(data, &v)
		block = v
	case ContentTypeQuiz:
		var v QuizBlock
		err = json.Unmarshal(data, &v)
		block = v
	case ContentTypeMermaid:
		var v MermaidBlock
		err = json.Unmarshal(data, &v)
		block = v
	case ContentTypeLink:
		var v LinkBlock
		err = json.Unmarshal(data, &v)
		block = v
	default:
		return nil, fmt.Errorf("unknown content_type %q", string(head.ContentType))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s block: %w", head.ContentType, err)
	}
	if err := validateContentBlock(block); err != nil {
		return nil, err
	}
	return block, nil
}

func MarshalContentBlocks(blocks []ContentBlock) ([]byte, error) {
	docs := make([]json.RawMessage, 0, len(blocks))
	for _, b := range blocks {
		doc, err := MarshalContentBlock(b)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return json.Marshal(docs)
}

func UnmarshalContentBlocks(data []byte) ([]ContentBlock, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode content blocks: %w", err)
	}
	out := make([]ContentBlock, 0, len(docs))
	for i, doc := range docs {
		b, err := UnmarshalContentBlock(doc)
		if err != nil {
			return nil, fmt.Errorf("content block %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func validateContentBlock(b ContentBlock) error {
	switch v := b.(type) {
	case TextBlock:
		if strings.TrimSpace(v.MDContent) == "" {
			return violation("content_block", "md_content", "text block requires markdown content")
		}
	case VideoBlock:
		if strings.TrimSpace(v.URL) == "" {
			return violation("content_block", "url", "video block requires url")
		}
		if strings.TrimSpace(v.Platform) == "" {
			return violation("content_block", "platform", "video block requires platform")
		}
		if strings.TrimSpace(v.Title) == "" {
			return violation("content_block", "title", "video block requires title")
		}
		if v.DurationSeconds <= 0 {
			return violation("content_block", "duration_seconds", "must be positive, got %d", v.DurationSeconds)
		}
	case CodeBlock:
		if strings.TrimSpace(v.Language) == "" {
			return violation("content_block", "language", "code block requires language")
		}
		if strings.TrimSpace(v.Code) == "" {
			return violation("content_block", "code", "code block requires code")
		}
	case QuizBlock:
		if len(v.Questions) == 0 {
			return violation("content_block", "questions", "quiz block requires at least one question")
		}
	case MermaidBlock:
		if strings.TrimSpace(v.Diagram) == "" {
			return violation("content_block", "diagram", "mermaid block requires diagram markup")
		}
	case LinkBlock:
		if strings.TrimSpace(v.URL) == "" {
			return violation("content_block", "url", "link block requires url")
		}
	}
	return nil
}
