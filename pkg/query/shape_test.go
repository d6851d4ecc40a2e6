package query

import "testing"

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind ShapeKind
		want string
	}{
		{
			name: "prose is returned unchanged",
			raw:  "Wanda wins, obviously.",
			kind: ShapeText,
			want: "Wanda wins, obviously.",
		},
		{
			name: "answer field",
			raw:  `{"answer": "Wanda wins.", "confidence": "high"}`,
			kind: ShapeAnswer,
			want: "Wanda wins.",
		},
		{
			name: "fenced answer field",
			raw:  "```json\n{\"answer\": \"Fenced.\"}\n```",
			kind: ShapeAnswer,
			want: "Fenced.",
		},
		{
			name: "response field",
			raw:  `{"response": "From response."}`,
			kind: ShapeAnswer,
			want: "From response.",
		},
		{
			name: "content field",
			raw:  `{"content": "From content."}`,
			kind: ShapeAnswer,
			want: "From content.",
		},
		{
			name: "suggestions",
			raw:  `{"suggestions": [{"aspect": "Pacing", "improvement": "Tighten act two"}, {"improvement": "Cut the prologue"}]}`,
			kind: ShapeSuggestions,
			want: SuggestionsHeader + "\n1. **Pacing**\n   Tighten act two\n\n2. **Area 2**\n   Cut the prologue\n",
		},
		{
			name: "improvements with aspects",
			raw:  `{"improvements": [{"aspect": "Dialogue", "suggestion": "Fewer adverbs"}]}`,
			kind: ShapeSuggestions,
			want: SuggestionsHeader + "\n1. **Dialogue**\n   Fewer adverbs\n",
		},
		{
			name: "plain list",
			raw:  `["grief", 2, {"k": "v"}]`,
			kind: ShapeList,
			want: ListHeader + "\n1. grief\n2. 2\n3. {\"k\":\"v\"}",
		},
		{
			name: "top level suggestion list",
			raw:  `[{"aspect": "Voice"}]`,
			kind: ShapeSuggestions,
			want: SuggestionsHeader + "\n1. **Voice**\n   No specific suggestion\n",
		},
		{
			name: "unrecognised object keeps key order",
			raw:  `{"zeta_point": "last letter", "main_themes": ["grief", "hope"], "verdict": {"overall_score": 7}}`,
			kind: ShapeObject,
			want: "**Zeta Point:** last letter\n\n**Main Themes:**\n• grief\n• hope\n\n**Verdict:**\n**Overall Score:** 7",
		},
		{
			name: "structured answer is flattened",
			raw:  `{"answer": {"summary": "S", "notes": ["a"]}, "confidence": "high"}`,
			kind: ShapeObject,
			want: "**Answer:**\n**Summary:** S\n**Notes:**\n  • a\n\n**Confidence:** high",
		},
		{
			name: "nested objects inside lists",
			raw:  `{"characters": [{"name": "Wanda", "role": "lead"}]}`,
			kind: ShapeObject,
			want: "**Characters:**\n• **Name:** Wanda\n• **Role:** lead",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAnswer(tt.raw)
			if got.Kind != tt.kind {
				t.Fatalf("ParseAnswer() kind = %v, want %v", got.Kind, tt.kind)
			}
			if text := got.Render(); text != tt.want {
				t.Fatalf("Render() =\n%q\nwant\n%q", text, tt.want)
			}
		})
	}
}

func TestKeyTitle(t *testing.T) {
	tests := map[string]string{
		"main_themes": "Main Themes",
		"tone":        "Tone",
		"AI_model":    "Ai Model",
	}
	for in, want := range tests {
		if got := keyTitle(in); got != want {
			t.Fatalf("keyTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
