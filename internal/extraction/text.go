package extraction

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// PlainText decodes text-like formats as UTF-8.
type PlainText struct{}

func (PlainText) MIMETypes() []string {
	return []string{
		MIMEPlain, MIMEMarkdown, MIMEJSON, MIMECSV,
		"text/x-markdown", "text/yaml", "text/toml", "text/x-go", "text/x-python",
		"text/typescript", "text/javascript", "text/x-sql", "application/xml", "text/xml",
	}
}

func (PlainText) Extract(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return Document{}, fmt.Errorf("%w: text is not valid UTF-8", ErrCorruptDocument)
	}
	return Document{Text: strings.ReplaceAll(string(data), "\r\n", "\n")}, nil
}

// HTML strips markup and keeps readable text.
type HTML struct{}

func (HTML) MIMETypes() []string { return []string{MIMEHTML, "application/xhtml+xml"} }

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	dropBlocks    = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg)[^>]*>.*?</(script|style|noscript|head|svg)>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockBoundary = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
)

func (HTML) Extract(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	content := string(data)

	var title string
	if m := titleTag.FindStringSubmatch(content); len(m) > 1 {
		title = strings.TrimSpace(html.UnescapeString(m[1]))
	}

	content = dropBlocks.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")
	content = blockBoundary.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return Document{Text: strings.Join(lines, "\n"), Title: title}, nil
}
