// Package content turns user supplied message text into HTML that is safe to embed.
package content

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	policy   = bluemonday.UGCPolicy()
	markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))
)

// Sanitize removes unsafe HTML from the input string using the UGC policy.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Escape escapes special characters like "<" to become "&lt;".
func Escape(input string) string {
	return template.HTMLEscapeString(input)
}

// Render converts markdown to sanitised HTML. Raw HTML in the input is never passed through.
// If the markdown can't be converted the escaped text is returned instead.
func Render(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	var buf bytes.Buffer
	err := markdown.Convert([]byte(text), &buf)
	if err != nil {
		return Escape(text)
	}

	return strings.TrimSpace(string(policy.SanitizeBytes(buf.Bytes())))
}
