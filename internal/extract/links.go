package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"NewsletterScanner/internal/domain"
)

const (
	maxTitleRunes    = 200
	maxFallbackRunes = 80
	titleSelector    = "h1, h2, h3, h4, h5, h6, strong, b, [class*=\"title\"]"
)

var (
	textLinkExpr      = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^\s)]+)\)|(https?://[^\s<>"'\])]+)`)
	markdownHeading   = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	markdownBoldLine  = regexp.MustCompile(`^\*\*(.+)\*\*:?$`)
	inlineBold        = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	trailingURLPunct  = ".,;:!?"
	defaultSourceHint = []string{"read more", "view article", "view online"}
)

// Extraction is the ordered link list of one message plus its distinguished
// source link, if any.
type Extraction struct {
	Links  []domain.Link
	Source *domain.Link
}

// LinkExtractor finds hyperlinks in message bodies and titles them with the
// nearest preceding heading.
type LinkExtractor struct {
	sourcePhrases  []string
	ignorePatterns []string
}

// NewLinkExtractor lowers the configured phrases once; nil phrases fall back
// to "read more" style defaults.
func NewLinkExtractor(sourcePhrases, ignorePatterns []string) *LinkExtractor {
	if len(sourcePhrases) == 0 {
		sourcePhrases = defaultSourceHint
	}
	return &LinkExtractor{
		sourcePhrases:  lowerAll(sourcePhrases),
		ignorePatterns: lowerAll(ignorePatterns),
	}
}

type candidate struct {
	link   domain.Link
	anchor string
}

// Extract scans body for links. Malformed markup or hrefs are skipped.
func (e *LinkExtractor) Extract(body string, isHTML bool) Extraction {
	var found []candidate
	if isHTML {
		found = e.fromHTML(body)
	} else {
		found = e.fromText(body)
	}

	out := Extraction{Links: make([]domain.Link, 0, len(found))}
	for i := range found {
		found[i].link.Position = len(out.Links) + 1
		out.Links = append(out.Links, found[i].link)
	}

	for _, c := range found {
		if e.isSourceAnchor(c.anchor) {
			src := c.link
			out.Source = &src
			break
		}
	}
	if out.Source == nil && len(out.Links) > 0 {
		src := out.Links[0]
		out.Source = &src
	}

	return out
}

func (e *LinkExtractor) fromHTML(markup string) []candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var (
		found       []candidate
		lastHeading string
	)

	// Selection order is document order, so headings are seen before the
	// anchors that follow them.
	doc.Find(titleSelector + ", a[href]").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) != "a" {
			if s.Closest("a").Length() > 0 {
				return
			}
			if text := cleanTitle(s.Text()); text != "" {
				lastHeading = text
			}
			return
		}

		href, _ := s.Attr("href")
		u, ok := parseHTTPURL(href)
		if !ok {
			return
		}
		anchor := cleanTitle(s.Text())
		if e.ignored(u, anchor) {
			return
		}

		title := cleanTitle(s.Find(titleSelector).First().Text())
		if title == "" {
			title = lastHeading
		}
		if title == "" {
			title = fallbackTitle(u)
		}

		found = append(found, candidate{
			link:   domain.Link{Title: title, URL: u.String()},
			anchor: anchor,
		})
	})

	return found
}

func (e *LinkExtractor) fromText(body string) []candidate {
	var (
		found       []candidate
		lastHeading string
	)

	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		matches := textLinkExpr.FindAllStringSubmatchIndex(line, -1)
		if len(matches) == 0 {
			if heading, ok := headingLine(line); ok {
				lastHeading = heading
			}
			continue
		}

		prev := 0
		for _, m := range matches {
			var href, anchor string
			if m[4] >= 0 {
				anchor = line[m[2]:m[3]]
				href = line[m[4]:m[5]]
			} else {
				href = strings.TrimRight(line[m[6]:m[7]], trailingURLPunct)
				anchor = line[prev:m[0]]
			}
			if heading, ok := inlineHeading(line[prev:m[0]], prev == 0); ok {
				lastHeading = heading
			}
			prev = m[1]

			u, ok := parseHTTPURL(href)
			if !ok {
				continue
			}
			anchor = cleanTitle(anchor)
			if e.ignored(u, anchor) {
				continue
			}

			title := lastHeading
			if title == "" {
				title = fallbackTitle(u)
			}
			found = append(found, candidate{
				link:   domain.Link{Title: title, URL: u.String()},
				anchor: anchor,
			})
		}
	}

	return found
}

func (e *LinkExtractor) isSourceAnchor(anchor string) bool {
	anchor = strings.ToLower(anchor)
	if anchor == "" {
		return false
	}
	for _, phrase := range e.sourcePhrases {
		if strings.Contains(anchor, phrase) {
			return true
		}
	}
	return false
}

func (e *LinkExtractor) ignored(u *url.URL, anchor string) bool {
	target := strings.ToLower(u.String())
	anchor = strings.ToLower(anchor)
	for _, pattern := range e.ignorePatterns {
		if strings.Contains(target, pattern) || strings.Contains(anchor, pattern) {
			return true
		}
	}
	return false
}

// parseHTTPURL accepts only absolute http(s) URLs with a host.
func parseHTTPURL(href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, false
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

// headingLine recognizes markdown headings, bold-only lines and short
// ALL-CAPS section titles in plain-text newsletters.
func headingLine(line string) (string, bool) {
	if m := markdownHeading.FindStringSubmatch(line); m != nil {
		return cleanTitle(m[1]), true
	}
	if m := markdownBoldLine.FindStringSubmatch(line); m != nil {
		return cleanTitle(m[1]), true
	}

	letters, upper := 0, 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	n := utf8.RuneCountInString(line)
	if letters >= 3 && upper == letters && n <= 80 {
		return cleanTitle(line), true
	}
	return "", false
}

// inlineHeading finds a title in the text before a link on the same line:
// the last **bold** span, or a markdown heading when the text starts the line.
func inlineHeading(segment string, lineStart bool) (string, bool) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", false
	}
	if spans := inlineBold.FindAllStringSubmatch(segment, -1); len(spans) > 0 {
		if title := cleanTitle(spans[len(spans)-1][1]); title != "" {
			return title, true
		}
	}
	if lineStart {
		if m := markdownHeading.FindStringSubmatch(segment); m != nil {
			if title := cleanTitle(m[1]); title != "" {
				return title, true
			}
		}
	}
	return "", false
}

func fallbackTitle(u *url.URL) string {
	if host := strings.TrimPrefix(u.Hostname(), "www."); host != "" {
		return host
	}
	return truncateRunes(u.String(), maxFallbackRunes)
}

func cleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return truncateRunes(s, maxTitleRunes)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-3]) + "..."
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
