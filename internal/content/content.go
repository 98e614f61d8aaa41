// Package content classifies page content and normalises it to plain
// Markdown-ish text before chunking.
package content

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// Kind is the detected format of a piece of content.
type Kind int

const (
	KindPlain Kind = iota
	KindMarkdown
	KindHTML
)

func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindMarkdown:
		return "markdown"
	default:
		return "plain"
	}
}

var (
	headerPattern     = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	listPattern       = regexp.MustCompile(`(?m)^[\-\*]\s+\S`)
	linkPattern       = regexp.MustCompile(`\[.+?\]\(.+?\)`)
	closingTagPattern = regexp.MustCompile(`(?i)</(p|div|article|section|main|span|li|ul|ol|h[1-6]|table|tr|td|a|body)>`)
)

// Detect classifies s. HTML wins over Markdown; anything else is plain.
func Detect(s string) Kind {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return KindPlain
	}
	if looksLikeHTML(trimmed) {
		return KindHTML
	}
	if hasMarkdownPatterns(trimmed) {
		return KindMarkdown
	}
	return KindPlain
}

// IsMarkdownContentType checks if the Content-Type header indicates markdown.
func IsMarkdownContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/markdown") ||
		strings.HasPrefix(ct, "text/x-markdown")
}

// IsMarkdownPath checks if a URL or file path names a markdown file.
func IsMarkdownPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".md") ||
		strings.HasSuffix(lower, ".markdown")
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	if strings.HasPrefix(lower, "<!doctype") ||
		strings.HasPrefix(lower, "<html") ||
		strings.HasPrefix(lower, "<head") ||
		strings.HasPrefix(lower, "<body") {
		return true
	}
	// fragments such as an article's outerHTML
	return strings.HasPrefix(lower, "<") && closingTagPattern.MatchString(lower)
}

func hasMarkdownPatterns(content string) bool {
	return headerPattern.MatchString(content) ||
		listPattern.MatchString(content) ||
		linkPattern.MatchString(content)
}

// Normalise converts HTML to Markdown and trims everything else. Plain text
// and Markdown pass through unchanged apart from surrounding whitespace.
func Normalise(s string) (string, error) {
	if Detect(s) != KindHTML {
		return strings.TrimSpace(s), nil
	}
	md, err := ToMarkdown(s)
	if err != nil {
		return "", err
	}
	return md, nil
}

// ToMarkdown transforms HTML content into Markdown.
func ToMarkdown(htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", nil
	}

	markdown, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// ExtractTitle extracts the <title> content from HTML.
func ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node) bool
	findTitle = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if findTitle(c) {
				return true
			}
		}
		return false
	}
	findTitle(doc)

	return strings.TrimSpace(title)
}
