package course

import (
	"strings"
	"testing"
)

func TestContentBlockRoundTripKeepsVariantAndFields(t *testing.T) {
	blocks := []ContentBlock{
		TextBlock{MDContent: "# Normalization\nFirst normal form...", AIGenerated: true},
		VideoBlock{
			URL:             "https://rutube.ru/video/abc123",
			Platform:        "RuTube",
			Title:           "SQL joins explained",
			DurationSeconds: 640,
			KeyMoments:      []KeyMoment{{At: "1:05", Label: "Intro"}},
			AIGenerated:     true,
		},
		CodeBlock{Language: "sql", Code: "SELECT 1;", Explanation: "Trivial query", AIGenerated: true},
		QuizBlock{Questions: []QuizQuestion{{Question: "What is a PK?", Answer: "A unique row identifier"}}, AIGenerated: true},
		MermaidBlock{Diagram: "graph TD; A-->B;", AIGenerated: true},
		LinkBlock{URL: "https://postgresql.org/docs", Title: "PostgreSQL docs", AIGenerated: false},
	}

	for _, b := range blocks {
		raw, err := MarshalContentBlock(b)
		if err != nil {
			t.Fatalf("marshal %s: %v", b.Type(), err)
		}
		if !strings.Contains(string(raw), `"content_type":"`+string(b.Type())+`"`) {
			t.Fatalf("discriminator missing for %s: %s", b.Type(), raw)
		}
		got, err := UnmarshalContentBlock(raw)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", b.Type(), err)
		}
		if got.Type() != b.Type() {
			t.Fatalf("variant: want=%s got=%s", b.Type(), got.Type())
		}
	}
}

func TestMarshalRejectsInvalidVideoBlock(t *testing.T) {
	cases := []VideoBlock{
		{URL: "https://rutube.ru/v/1", Platform: "rutube", Title: "Intro", DurationSeconds: 0, AIGenerated: true},
		{URL: "https://rutube.ru/v/1", Platform: "", Title: "Intro", DurationSeconds: 120, AIGenerated: true},
		{URL: "", Platform: "rutube", Title: "Intro", DurationSeconds: 120, AIGenerated: true},
	}
	for i, b := range cases {
		if _, err := MarshalContentBlock(b); err == nil {
			t.Fatalf("case %d: invalid video block accepted on write", i)
		}
	}
}

func TestContentBlockRoundTripPreservesVideoFields(t *testing.T) {
	in := VideoBlock{
		URL:                 "https://rutube.ru/video/abc123",
		Platform:            "RuTube",
		Title:               "Indexes",
		DurationSeconds:     301,
		DiscussionQuestions: []string{"When is a full scan cheaper?"},
		AIGenerated:         true,
	}
	raw, err := MarshalContentBlock(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalContentBlock(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, ok := got.(VideoBlock)
	if !ok {
		t.Fatalf("variant type: got=%T", got)
	}
	if v.URL != in.URL || v.Platform != in.Platform || v.Title != in.Title || v.DurationSeconds != in.DurationSeconds {
		t.Fatalf("fields changed: want=%+v got=%+v", in, v)
	}
	if len(v.DiscussionQuestions) != 1 || v.DiscussionQuestions[0] != in.DiscussionQuestions[0] {
		t.Fatalf("discussion questions: want=%v got=%v", in.DiscussionQuestions, v.DiscussionQuestions)
	}
}

func TestUnmarshalContentBlockRejectsUnknownDiscriminator(t *testing.T) {
	_, err := UnmarshalContentBlock([]byte(`{"content_type":"hologram","data":"x"}`))
	if err == nil {
		t.Fatal("expected error for unknown content_type")
	}
}

func TestUnmarshalContentBlockRejectsMissingRequiredFields(t *testing.T) {
	cases := []string{
		`{"content_type":"video","title":"no url"}`,
		`{"content_type":"code","language":"go"}`,
		`{"content_type":"text"}`,
		`{"content_type":"quiz","questions":[]}`,
	}
	for _, c := range cases {
		if _, err := UnmarshalContentBlock([]byte(c)); err == nil {
			t.Fatalf("expected validation error for %s", c)
		}
	}
}

func TestUnmarshalContentBlocksKeepsOrder(t *testing.T) {
	in := []ContentBlock{
		TextBlock{MDContent: "one"},
		CodeBlock{Language: "go", Code: "package main"},
		TextBlock{MDContent: "three"},
	}
	raw, err := MarshalContentBlocks(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalContentBlocks(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("length: want=%d got=%d", len(in), len(got))
	}
	for i := range in {
		if got[i].Type() != in[i].Type() {
			t.Fatalf("order broken at %d: want=%s got=%s", i, in[i].Type(), got[i].Type())
		}
	}
}
