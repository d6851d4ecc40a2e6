package ingest

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/minitru/bunnyAI/pkg/common"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultEncoding         = "o200k_base"
	DefaultMaxTokens        = 250
	DefaultOverlapSentences = 2
)

// Splitter packs sentences into chunks that stay within a token budget.
// The last OverlapSentences sentences of a chunk are repeated at the start
// of the next one so passages that straddle a boundary stay retrievable.
type Splitter struct {
	enc              *tiktoken.Tiktoken
	MaxTokens        int
	OverlapSentences int
}

func NewSplitter(encoding string, maxTokens, overlap int) (*Splitter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encoding, err)
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Splitter{enc: enc, MaxTokens: maxTokens, OverlapSentences: max(overlap, 0)}, nil
}

func (s *Splitter) tokens(text string) int {
	return len(s.enc.Encode(text, nil, nil))
}

// Split returns the chunk texts of text in reading order. A single sentence
// longer than the budget becomes a chunk of its own.
func (s *Splitter) Split(text string) []string {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(sentences) {
		end := start + 1
		for end < len(sentences) && s.tokens(strings.Join(sentences[start:end+1], " ")) <= s.MaxTokens {
			end++
		}
		chunks = append(chunks, strings.Join(sentences[start:end], " "))
		if end == len(sentences) {
			break
		}
		next := end - s.OverlapSentences
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// BuildChunks stamps book metadata and stable ids on chunk texts.
func BuildChunks(info BookInfo, texts []string) []common.Chunk {
	chunks := make([]common.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, common.Chunk{
			ID:          ChunkID(info.BookID, i),
			Text:        text,
			BookID:      info.BookID,
			BookTitle:   info.Title,
			Author:      info.Author,
			Filename:    info.Filename,
			ChunkIndex:  i,
			TotalChunks: len(texts),
		})
	}
	return chunks
}

func ChunkID(bookID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", bookID, index)
}

// splitIntoSentences breaks text on sentence terminators. Blank lines end a
// sentence as well; single line breaks inside a paragraph are joined.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		for _, part := range splitLineIntoSentences(trimmed) {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(part)
			if endsSentence(part) {
				flush()
			}
		}
	}
	flush()
	return sentences
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, `"')]}”’`)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’':
		return true
	}
	return false
}

// splitLineIntoSentences cuts a line after runs of terminators and any
// closing quotes or brackets. A period after a digit followed by a space is
// treated as a list marker ("1. ") and does not end the sentence.
func splitLineIntoSentences(line string) []string {
	runes := []rune(line)
	var sentences []string
	var current strings.Builder

	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if !isTerminator(runes[i]) {
			continue
		}
		if runes[i] == '.' && i > 0 && unicode.IsDigit(runes[i-1]) && i+1 < len(runes) && runes[i+1] == ' ' {
			continue
		}
		j := i + 1
		for j < len(runes) && isTerminator(runes[j]) {
			current.WriteRune(runes[j])
			j++
		}
		for j < len(runes) && isCloser(runes[j]) {
			current.WriteRune(runes[j])
			j++
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
		i = j - 1
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
