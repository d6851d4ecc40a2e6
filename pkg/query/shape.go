package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minitru/bunnyAI/pkg/ai"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ShapeKind tags the variants of a model answer.
type ShapeKind int

const (
	// ShapeText is output that is not JSON at all; it is shown unchanged.
	ShapeText ShapeKind = iota
	// ShapeAnswer is an object carrying a plain answer string.
	ShapeAnswer
	// ShapeSuggestions is a list of {aspect, suggestion|improvement} items.
	ShapeSuggestions
	// ShapeList is any other list.
	ShapeList
	// ShapeObject is an object with no recognised answer field.
	ShapeObject
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeText:
		return "text"
	case ShapeAnswer:
		return "answer"
	case ShapeSuggestions:
		return "suggestions"
	case ShapeList:
		return "list"
	case ShapeObject:
		return "object"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// SuggestionsHeader opens a rendered suggestion list.
const SuggestionsHeader = "Based on my analysis, here are some areas that could be improved:\n"

// ListHeader opens any other rendered list.
const ListHeader = "Analysis Results:\n"

type object = *orderedmap.OrderedMap[string, json.RawMessage]

// Answer is a parsed model answer. Exactly one of Text, Items or Object is
// meaningful, depending on Kind.
type Answer struct {
	Kind   ShapeKind
	Text   string
	Items  []json.RawMessage
	Object object
}

var titler = cases.Title(language.English)

// ParseAnswer classifies raw model output. Output that is not JSON, or JSON
// that cannot be decoded even after repair, is returned as ShapeText.
func ParseAnswer(raw string) Answer {
	if !ai.LooksLikeJSON(raw) {
		return Answer{Kind: ShapeText, Text: raw}
	}

	var top json.RawMessage
	if err := ai.UnmarshalFlexible(raw, &top); err != nil {
		return Answer{Kind: ShapeText, Text: raw}
	}

	if items, ok := decodeList(top); ok {
		if isSuggestionList(items) {
			return Answer{Kind: ShapeSuggestions, Items: items}
		}
		return Answer{Kind: ShapeList, Items: items}
	}

	obj, ok := decodeObject(top)
	if !ok {
		return Answer{Kind: ShapeText, Text: raw}
	}

	for _, key := range []string{"answer", "response", "content"} {
		if s, ok := stringField(obj, key); ok {
			return Answer{Kind: ShapeAnswer, Text: s}
		}
		if key == "answer" && has(obj, key) {
			// a structured answer is flattened together with its siblings
			return Answer{Kind: ShapeObject, Object: obj}
		}
	}

	for _, key := range []string{"suggestions", "improvements"} {
		v, present := obj.Get(key)
		if !present {
			continue
		}
		if items, ok := decodeList(v); ok {
			if key == "suggestions" || isSuggestionList(items) {
				return Answer{Kind: ShapeSuggestions, Items: items}
			}
			return Answer{Kind: ShapeList, Items: items}
		}
	}

	return Answer{Kind: ShapeObject, Object: obj}
}

// Render turns the answer into user facing text.
func (a Answer) Render() string {
	switch a.Kind {
	case ShapeText, ShapeAnswer:
		return a.Text
	case ShapeSuggestions:
		return renderSuggestions(a.Items)
	case ShapeList:
		return renderList(a.Items)
	case ShapeObject:
		return renderObject(a.Object)
	default:
		return a.Text
	}
}

// FormatAnswer parses and renders raw model output in one step.
func FormatAnswer(raw string) string {
	return ParseAnswer(raw).Render()
}

func renderSuggestions(items []json.RawMessage) string {
	parts := []string{SuggestionsHeader}
	for i, item := range items {
		obj, ok := decodeObject(item)
		if !ok {
			continue
		}
		aspect, ok := stringField(obj, "aspect")
		if !ok {
			aspect = fmt.Sprintf("Area %d", i+1)
		}
		text, ok := stringField(obj, "suggestion")
		if !ok {
			text, ok = stringField(obj, "improvement")
		}
		if !ok {
			text = "No specific suggestion"
		}
		parts = append(parts, fmt.Sprintf("%d. **%s**", i+1, aspect))
		parts = append(parts, fmt.Sprintf("   %s\n", text))
	}
	return strings.Join(parts, "\n")
}

func renderList(items []json.RawMessage) string {
	parts := []string{ListHeader}
	for i, item := range items {
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, scalarText(item)))
	}
	return strings.Join(parts, "\n")
}

func renderObject(obj object) string {
	var parts []string
	if s, ok := stringField(obj, "answer"); ok {
		parts = append(parts, s)
	}

	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "answer" && len(parts) > 0 {
			continue
		}
		title := keyTitle(pair.Key)
		if nested, ok := decodeObject(pair.Value); ok {
			parts = append(parts, fmt.Sprintf("\n**%s:**", title))
			parts = append(parts, renderNested(nested, ""))
			continue
		}
		if items, ok := decodeList(pair.Value); ok {
			parts = append(parts, fmt.Sprintf("\n**%s:**", title))
			for _, item := range items {
				if nested, ok := decodeObject(item); ok {
					parts = append(parts, renderNested(nested, "• "))
				} else {
					parts = append(parts, "• "+scalarText(item))
				}
			}
			continue
		}
		parts = append(parts, fmt.Sprintf("\n**%s:** %s", title, scalarText(pair.Value)))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func renderNested(obj object, prefix string) string {
	var parts []string
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		title := keyTitle(pair.Key)
		if nested, ok := decodeObject(pair.Value); ok {
			parts = append(parts, fmt.Sprintf("%s**%s:**", prefix, title))
			parts = append(parts, renderNested(nested, prefix+"  "))
			continue
		}
		if items, ok := decodeList(pair.Value); ok {
			parts = append(parts, fmt.Sprintf("%s**%s:**", prefix, title))
			for _, item := range items {
				if nested, ok := decodeObject(item); ok {
					parts = append(parts, renderNested(nested, prefix+"  • "))
				} else {
					parts = append(parts, fmt.Sprintf("%s  • %s", prefix, scalarText(item)))
				}
			}
			continue
		}
		parts = append(parts, fmt.Sprintf("%s**%s:** %s", prefix, title, scalarText(pair.Value)))
	}
	return strings.Join(parts, "\n")
}

// keyTitle turns "main_themes" into "Main Themes".
func keyTitle(key string) string {
	return titler.String(strings.ReplaceAll(key, "_", " "))
}

func isSuggestionList(items []json.RawMessage) bool {
	if len(items) == 0 {
		return false
	}
	obj, ok := decodeObject(items[0])
	return ok && has(obj, "aspect")
}

func decodeObject(raw json.RawMessage) (object, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	obj := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(raw, obj); err != nil {
		return nil, false
	}
	return obj, true
}

func decodeList(raw json.RawMessage) ([]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func has(obj object, key string) bool {
	_, ok := obj.Get(key)
	return ok
}

func stringField(obj object, key string) (string, bool) {
	raw, ok := obj.Get(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// scalarText renders strings without quotes and everything else as
// compact JSON.
func scalarText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
