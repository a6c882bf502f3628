package notion

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"NewsletterScanner/internal/domain"
)

const (
	maxBlocks       = 100
	maxTextRunes    = 1990
	maxLinkBlocks   = 10
	maxSections     = 10
	headerBlocks    = 6
	mainSectionName = "Main Content"
)

var (
	decoratedHeading = regexp.MustCompile(`^#{1,6}\s+.+$|^[=*]+\s+.+\s+[=*]+$`)
	numberedHeading  = regexp.MustCompile(`^\d+\.\s+[A-Z]`)
	tldrHeading      = regexp.MustCompile(`(?i)^t\s*l\s*d\s*r`)
	listMarker       = regexp.MustCompile(`^\s*(?:[•*-]|\d+\.)\s+`)
)

// Block is a Notion block object. Only the field matching Type is set.
type Block struct {
	Object           string     `json:"object"`
	Type             string     `json:"type"`
	Heading2         *textBlock `json:"heading_2,omitempty"`
	Heading3         *textBlock `json:"heading_3,omitempty"`
	Paragraph        *textBlock `json:"paragraph,omitempty"`
	BulletedListItem *textBlock `json:"bulleted_list_item,omitempty"`
	Divider          *struct{}  `json:"divider,omitempty"`
}

type textBlock struct {
	RichText []richText `json:"rich_text"`
	Color    string     `json:"color,omitempty"`
}

type richText struct {
	Type        string       `json:"type"`
	Text        textContent  `json:"text"`
	Annotations *annotations `json:"annotations,omitempty"`
}

type textContent struct {
	Content string    `json:"content"`
	Link    *linkHref `json:"link,omitempty"`
}

type linkHref struct {
	URL string `json:"url"`
}

type annotations struct {
	Bold  bool   `json:"bold,omitempty"`
	Color string `json:"color,omitempty"`
}

func plain(content string) richText {
	return richText{Type: "text", Text: textContent{Content: clip(content)}}
}

func bold(content string) richText {
	rt := plain(content)
	rt.Annotations = &annotations{Bold: true}
	return rt
}

func heading2(text string) Block {
	return Block{Object: "block", Type: "heading_2", Heading2: &textBlock{RichText: []richText{plain(text)}, Color: "blue_background"}}
}

func heading3(text string) Block {
	rt := plain(text)
	rt.Annotations = &annotations{Bold: true, Color: "blue"}
	return Block{Object: "block", Type: "heading_3", Heading3: &textBlock{RichText: []richText{rt}}}
}

func paragraph(parts ...richText) Block {
	return Block{Object: "block", Type: "paragraph", Paragraph: &textBlock{RichText: parts}}
}

func bullet(parts ...richText) Block {
	return Block{Object: "block", Type: "bulleted_list_item", BulletedListItem: &textBlock{RichText: parts}}
}

func divider() Block {
	return Block{Object: "block", Type: "divider", Divider: &struct{}{}}
}

// PageBlocks renders the page body: a details header, the body split into
// sections and a links list, never more than 100 blocks.
func PageBlocks(rec domain.StructuredRecord) []Block {
	blocks := make([]Block, 0, maxBlocks)
	blocks = append(blocks,
		heading2("Newsletter Details"),
		paragraph(bold("From: "), plain(senderName(rec.Sender))),
		paragraph(bold("Date: "), plain(rec.PublishedDate.Format("January 02, 2006"))),
		paragraph(bold("Category: "), richText{Type: "text", Text: textContent{Content: rec.Category}, Annotations: &annotations{Color: "blue"}}),
		divider(),
		heading2("Newsletter Content"),
	)

	links := rec.Links
	if len(links) > maxLinkBlocks {
		links = links[:maxLinkBlocks]
	}
	linkBlocks := 0
	if len(links) > 0 {
		linkBlocks = len(links) + 1
	}

	body := rec.Body
	if strings.TrimSpace(body) == "" {
		body = rec.Description
	}
	blocks = append(blocks, sectionBlocks(splitSections(body), maxBlocks-headerBlocks-linkBlocks)...)

	if len(links) > 0 {
		blocks = append(blocks, heading2("Links"))
		for _, l := range links {
			title := l.Title
			if title == "" {
				title = l.URL
			}
			item := plain(title)
			item.Text.Link = &linkHref{URL: l.URL}
			blocks = append(blocks, bullet(item))
		}
	}
	return blocks
}

type section struct {
	name  string
	lines []string
}

func splitSections(body string) []section {
	var (
		out     []section
		current = section{name: mainSectionName}
	)
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isSectionHeader(line) {
			if len(current.lines) > 0 {
				out = append(out, current)
			}
			current = section{name: strings.Trim(line, "=#* ")}
			continue
		}
		current.lines = append(current.lines, line)
	}
	if len(current.lines) > 0 {
		out = append(out, current)
	}
	return out
}

func isSectionHeader(line string) bool {
	n := utf8.RuneCountInString(line)
	if n > 3 && n < 60 && isUpper(line) {
		return true
	}
	return decoratedHeading.MatchString(line) || numberedHeading.MatchString(line) || tldrHeading.MatchString(line)
}

func isUpper(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 0
}

// sectionBlocks spends budget evenly across at most ten sections. Sections
// with more lines than their share are packed into larger paragraphs.
func sectionBlocks(sections []section, budget int) []Block {
	if len(sections) > maxSections {
		sections = sections[:maxSections]
	}
	if len(sections) == 0 || budget < 2 {
		return nil
	}
	perSection := budget / len(sections)
	if perSection < 2 {
		perSection = 2
		sections = sections[:budget/perSection]
	}

	var out []Block
	for _, s := range sections {
		out = append(out, heading3(s.name))
		left := perSection - 1
		if len(s.lines) <= left {
			for _, line := range s.lines {
				out = append(out, lineBlock(line))
			}
			continue
		}
		for _, chunk := range pack(s.lines, left) {
			out = append(out, paragraph(plain(chunk)))
		}
	}
	return out
}

func lineBlock(line string) Block {
	if listMarker.MatchString(line) {
		return bullet(plain(listMarker.ReplaceAllString(line, "")))
	}
	return paragraph(plain(line))
}

// pack joins lines into at most n chunks of similar size, each within the
// Notion text limit. Lines that do not fit are dropped.
func pack(lines []string, n int) []string {
	total := 0
	for _, l := range lines {
		total += utf8.RuneCountInString(l) + 2
	}
	target := total/n + 1
	if target > maxTextRunes {
		target = maxTextRunes
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	for _, line := range lines {
		lineSize := utf8.RuneCountInString(line)
		if size > 0 && size+lineSize+2 > target {
			chunks = append(chunks, current.String())
			if len(chunks) == n {
				return chunks
			}
			current.Reset()
			size = 0
		}
		if size > 0 {
			current.WriteString("\n\n")
			size += 2
		}
		current.WriteString(line)
		size += lineSize
	}
	if size > 0 && len(chunks) < n {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxTextRunes {
		return s
	}
	return string([]rune(s)[:maxTextRunes])
}

func senderName(sender string) string {
	if i := strings.Index(sender, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(sender[:i]), `"`)
	}
	return sender
}
