package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const UnknownAuthor = "Unknown Author"

// authorHeadChars bounds how far into a text the byline is looked for.
const authorHeadChars = 500

var authorRe = regexp.MustCompile(`(?i)by\s+([^\n]+)`)

// BookInfo is the metadata attached to every chunk of a book.
type BookInfo struct {
	BookID   string `json:"book_id"`
	Title    string `json:"book_title"`
	Author   string `json:"author"`
	Filename string `json:"filename"`
}

// Document is loaded book text together with its metadata.
type Document struct {
	Info BookInfo
	Text string
}

// InfoFromName derives book metadata from a file name and the opening of
// its text: the lower-cased stem is the id, the stem in title case is the
// title and a "by ..." line near the top is the author.
func InfoFromName(name, text string) BookInfo {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	id := strings.ToLower(stem)
	return BookInfo{
		BookID:   id,
		Title:    cases.Title(language.English).String(strings.ReplaceAll(id, "_", " ")),
		Author:   findAuthor(text),
		Filename: base,
	}
}

func findAuthor(text string) string {
	head := text
	if len(head) > authorHeadChars {
		head = head[:authorHeadChars]
		for !utf8.ValidString(head) && len(head) > 0 {
			head = head[:len(head)-1]
		}
	}
	m := authorRe.FindStringSubmatch(head)
	if m == nil {
		return UnknownAuthor
	}
	if author := strings.TrimSpace(m[1]); author != "" {
		return author
	}
	return UnknownAuthor
}

// BlobReader fetches an object by key, such as a file in an S3 bucket.
type BlobReader interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
}

// Loader reads book text from local files, web pages or a blob store.
type Loader struct {
	http  *http.Client
	blobs BlobReader
}

type LoaderOption func(*Loader)

func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.http = c }
}

// WithBlobs enables s3://key sources.
func WithBlobs(b BlobReader) LoaderOption {
	return func(l *Loader) { l.blobs = b }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{http: http.DefaultClient}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads source, which is an http(s) URL, an s3:// key or a local path.
func (l *Loader) Load(ctx context.Context, source string) (Document, error) {
	var (
		text string
		name string
		err  error
	)
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		text, name, err = l.loadURL(ctx, source)
	case strings.HasPrefix(source, "s3://"):
		text, name, err = l.loadBlob(ctx, strings.TrimPrefix(source, "s3://"))
	default:
		var data []byte
		data, err = os.ReadFile(source)
		text, name = string(data), source
	}
	if err != nil {
		return Document{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Document{}, fmt.Errorf("%s contains no text", source)
	}
	return Document{Info: InfoFromName(name, text), Text: text}, nil
}

func (l *Loader) loadBlob(ctx context.Context, key string) (string, string, error) {
	if l.blobs == nil {
		return "", "", fmt.Errorf("no blob store configured for s3://%s", key)
	}
	data, err := l.blobs.GetFile(ctx, key)
	if err != nil {
		return "", "", err
	}
	return string(data), path.Base(key), nil
}

// loadURL fetches a page. HTML is reduced to its main article text.
func (l *Loader) loadURL(ctx context.Context, rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = u.Hostname()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", "", fmt.Errorf("failed to fetch url: %s", resp.Status)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		article, err := readability.FromReader(resp.Body, u)
		if err != nil {
			return "", "", fmt.Errorf("failed to parse html: %w", err)
		}
		var builder strings.Builder
		if err := article.RenderText(&builder); err != nil {
			return "", "", fmt.Errorf("failed to render article text: %w", err)
		}
		return builder.String(), name, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	return string(data), name, nil
}
