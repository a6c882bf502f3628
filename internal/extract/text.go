package extract

import (
	"strings"

	"golang.org/x/net/html"
)

var skipTags = map[string]bool{
	"script": true, "style": true, "head": true,
	"noscript": true, "template": true, "title": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true,
	"footer": true, "blockquote": true, "table": true, "tr": true, "ul": true,
	"ol": true, "pre": true,
}

// PlainText returns the readable text of a message body.
func PlainText(body string, isHTML bool) string {
	if isHTML {
		return CleanHTML(body)
	}
	return normalizeWhitespace(body)
}

// CleanHTML converts newsletter markup to plain text, keeping one line per
// block element, a blank line before headings and "• " for list items.
func CleanHTML(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return normalizeWhitespace(markup)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			switch {
			case isHeadingTag(n.Data):
				sb.WriteString("\n\n")
			case n.Data == "li":
				sb.WriteString("\n• ")
			case n.Data == "br" || n.Data == "hr":
				sb.WriteString("\n")
			case blockTags[n.Data]:
				sb.WriteString("\n")
			}
		}

		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && (isHeadingTag(n.Data) || blockTags[n.Data]) {
			sb.WriteString("\n")
		}
	}
	walk(doc)

	return normalizeWhitespace(sb.String())
}

func isHeadingTag(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

// normalizeWhitespace drops invisible spacer characters, collapses runs of
// spaces and keeps at most one blank line between paragraphs.
func normalizeWhitespace(s string) string {
	s = strings.Map(func(r rune) rune {
		if isInvisible(r) {
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

// isInvisible reports zero-width characters newsletters use as preheader padding.
func isInvisible(r rune) bool {
	switch {
	case r >= '\u200b' && r <= '\u200d':
		return true
	case r == '\ufeff', r == '\u2060', r == '\u00ad', r == '\u034f':
		return true
	}
	return false
}
