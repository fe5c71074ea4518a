package notion

import (
	"regexp"
	"sort"
	"strings"
)

// block is one Notion block. Exactly one of the typed bodies is set,
// matching the Type field.
type block struct {
	Object    string     `json:"object"`
	Type      string     `json:"type"`
	Heading1  *blockBody `json:"heading_1,omitempty"`
	Heading2  *blockBody `json:"heading_2,omitempty"`
	Heading3  *blockBody `json:"heading_3,omitempty"`
	Paragraph *blockBody `json:"paragraph,omitempty"`
	Bulleted  *blockBody `json:"bulleted_list_item,omitempty"`
	Numbered  *blockBody `json:"numbered_list_item,omitempty"`
}

type blockBody struct {
	RichText []richText `json:"rich_text"`
	Children []block    `json:"children,omitempty"`
}

type richText struct {
	Type        string       `json:"type"`
	Text        textContent  `json:"text"`
	Annotations *annotations `json:"annotations,omitempty"`
}

type textContent struct {
	Content string `json:"content"`
}

type annotations struct {
	Bold   bool `json:"bold,omitempty"`
	Italic bool `json:"italic,omitempty"`
	Code   bool `json:"code,omitempty"`
}

func plainText(s string) richText {
	return richText{Type: "text", Text: textContent{Content: s}}
}

var (
	boldPattern    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicPattern  = regexp.MustCompile(`\*([^*]+)\*`)
	codePattern    = regexp.MustCompile("`([^`]+)`")
	numberedPrefix = regexp.MustCompile(`^\d+\. `)
)

// markdownToBlocks converts a markdown summary into Notion blocks. When
// skipFirstHeading is set the first level-1 heading is dropped because it
// already became the page title.
func markdownToBlocks(markdown string, skipFirstHeading bool) []block {
	var blocks []block
	lines := strings.Split(markdown, "\n")
	firstHeadingSkipped := false

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "# "):
			if skipFirstHeading && !firstHeadingSkipped {
				firstHeadingSkipped = true
				continue
			}
			blocks = append(blocks, block{
				Object:   "block",
				Type:     "heading_1",
				Heading1: &blockBody{RichText: parseRichText(line[2:])},
			})
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, block{
				Object:   "block",
				Type:     "heading_2",
				Heading2: &blockBody{RichText: parseRichText(line[3:])},
			})
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, block{
				Object:   "block",
				Type:     "heading_3",
				Heading3: &blockBody{RichText: parseRichText(line[4:])},
			})
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
			item, next := parseListItem(lines, i)
			blocks = append(blocks, item)
			i = next - 1
		case numberedPrefix.MatchString(line):
			blocks = append(blocks, block{
				Object:   "block",
				Type:     "numbered_list_item",
				Numbered: &blockBody{RichText: parseRichText(numberedPrefix.ReplaceAllString(line, ""))},
			})
		default:
			blocks = append(blocks, block{
				Object:    "block",
				Type:      "paragraph",
				Paragraph: &blockBody{RichText: parseRichText(line)},
			})
		}
	}

	return blocks
}

// parseListItem builds a bulleted item and collects indented child bullets.
// Returns the index of the first line that is not part of this item.
func parseListItem(lines []string, start int) (block, int) {
	content := strings.TrimSpace(lines[start])
	content = strings.TrimPrefix(strings.TrimPrefix(content, "- "), "* ")

	body := &blockBody{RichText: parseRichText(content)}

	i := start + 1
	for i < len(lines) {
		next := lines[i]
		trimmed := strings.TrimSpace(next)

		indented := strings.HasPrefix(next, "  - ") || strings.HasPrefix(next, "  * ") ||
			strings.HasPrefix(next, "    - ") || strings.HasPrefix(next, "    * ")
		switch {
		case indented:
			child := strings.TrimPrefix(strings.TrimPrefix(trimmed, "- "), "* ")
			body.Children = append(body.Children, block{
				Object:   "block",
				Type:     "bulleted_list_item",
				Bulleted: &blockBody{RichText: parseRichText(child)},
			})
			i++
		case trimmed == "":
			i++
		default:
			return block{Object: "block", Type: "bulleted_list_item", Bulleted: body}, i
		}
	}

	return block{Object: "block", Type: "bulleted_list_item", Bulleted: body}, i
}

type formatMatch struct {
	start, end int
	content    string
	annotation annotations
}

// parseRichText splits a line into plain and formatted rich text runs,
// recognizing **bold**, *italic* and `code` spans.
func parseRichText(text string) []richText {
	var matches []formatMatch
	for _, m := range boldPattern.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, formatMatch{m[0], m[1], text[m[2]:m[3]], annotations{Bold: true}})
	}
	for _, m := range italicPattern.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, formatMatch{m[0], m[1], text[m[2]:m[3]], annotations{Italic: true}})
	}
	for _, m := range codePattern.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, formatMatch{m[0], m[1], text[m[2]:m[3]], annotations{Code: true}})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	var runs []richText
	pos := 0
	for _, m := range matches {
		if m.start < pos {
			// Overlaps the previous span (the italic pattern also matches
			// inside bold markers); skip it.
			continue
		}
		if m.start > pos {
			runs = append(runs, plainText(text[pos:m.start]))
		}
		a := m.annotation
		runs = append(runs, richText{Type: "text", Text: textContent{Content: m.content}, Annotations: &a})
		pos = m.end
	}
	if pos < len(text) {
		runs = append(runs, plainText(text[pos:]))
	}
	if len(runs) == 0 {
		runs = []richText{plainText(text)}
	}
	return runs
}

// genericTitles are headings too vague to use as a page title.
var genericTitles = []string{"まとめ", "Summary", "要約", "Transcription", "文字起こし", "Content"}

// titleSkipPatterns mark lines that look like prompt instructions rather
// than content.
var titleSkipPatterns = []string{"以下", "following", "Rules", "ルール", "Template", "テンプレート", "処理", "process"}

// extractTitle pulls a usable page title out of a markdown summary:
// preferably the first specific level-1 heading, otherwise the first
// substantial content line. Returns "" if nothing qualifies.
func extractTitle(summary string) string {
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "# ") {
			title := strings.TrimSpace(line[2:])
			for _, junk := range []string{"タイトル名", "タイトル", "Title", ":", "：", "<", ">"} {
				title = strings.ReplaceAll(title, junk, "")
			}
			title = strings.TrimSpace(title)

			generic := false
			for _, g := range genericTitles {
				if strings.Contains(title, g) {
					generic = true
					break
				}
			}
			if generic {
				continue
			}
			if n := len([]rune(title)); n > 2 && n < 100 {
				return title
			}
			continue
		}

		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "-") {
			continue
		}
		skip := false
		for _, p := range titleSkipPatterns {
			if strings.Contains(line, p) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if n := len([]rune(line)); n > 5 && n < 80 {
			return strings.TrimRight(line, "。！？.!?:：")
		}
	}
	return ""
}
