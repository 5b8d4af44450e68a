package tools

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractJSON pretty-prints JSON content.
func extractJSON(body []byte) (string, string) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err == nil {
		formatted, _ := json.MarshalIndent(data, "", "  ")
		return string(formatted), "json"
	}
	return string(body), "raw"
}

var (
	reMultiNL = regexp.MustCompile(`\n{3,}`)
	reMultiSP = regexp.MustCompile(`[ \t]{2,}`)
)

// htmlToMarkdown walks the parsed DOM with goquery and renders a
// markdown approximation, instead of regexing the raw HTML string: script,
// style, nav, header, and footer elements are dropped before any text is
// pulled out, so boilerplate never leaks into the extracted content.
func htmlToMarkdown(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script, style, nav, footer, header, noscript").Remove()

	var sb strings.Builder
	renderMarkdown(&sb, doc.Selection.Find("body").First())
	out := decodeHTMLEntities(sb.String())
	out = reMultiNL.ReplaceAllString(out, "\n\n")
	out = reMultiSP.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

func renderMarkdown(sb *strings.Builder, sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			sb.WriteString(node.Text())
			return
		}
		switch goquery.NodeName(node) {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(goquery.NodeName(node)[1] - '0')
			sb.WriteString("\n" + strings.Repeat("#", level) + " " + strings.TrimSpace(node.Text()) + "\n")
		case "p", "div":
			sb.WriteString("\n")
			renderMarkdown(sb, node)
			sb.WriteString("\n")
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
			renderMarkdown(sb, node)
		case "pre":
			sb.WriteString("\n```\n" + node.Text() + "\n```\n")
		case "code":
			sb.WriteString("`" + node.Text() + "`")
		case "strong", "b":
			sb.WriteString("**" + node.Text() + "**")
		case "em", "i":
			sb.WriteString("*" + node.Text() + "*")
		case "blockquote":
			lines := strings.Split(strings.TrimSpace(node.Text()), "\n")
			for _, l := range lines {
				sb.WriteString("\n> " + strings.TrimSpace(l))
			}
			sb.WriteString("\n")
		case "a":
			href, _ := node.Attr("href")
			text := strings.TrimSpace(node.Text())
			if href != "" {
				sb.WriteString("[" + text + "](" + href + ")")
			} else {
				sb.WriteString(text)
			}
		case "img":
			alt, _ := node.Attr("alt")
			sb.WriteString("![" + alt + "]")
		default:
			renderMarkdown(sb, node)
		}
	})
}

// htmlToText extracts plain, line-cleaned text from HTML content.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	doc.Find("script, style, nav, footer, header, noscript").Remove()

	raw := doc.Find("body").Text()
	raw = decodeHTMLEntities(raw)
	raw = reMultiSP.ReplaceAllString(raw, " ")

	var clean []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}

// markdownToText strips markdown formatting for text mode.
func markdownToText(md string) string {
	s := md
	s = regexp.MustCompile(`(?m)^#{1,6}\s+`).ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = regexp.MustCompile("`[^`]+`").ReplaceAllStringFunc(s, func(m string) string {
		return strings.Trim(m, "`")
	})
	s = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`).ReplaceAllString(s, "$1")
	s = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`).ReplaceAllString(s, "$1")
	s = reMultiNL.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// decodeHTMLEntities handles common HTML entities that survive text
// extraction (goquery already decodes in-tag entities, but raw
// ampersand sequences inside scripts/attributes can leak through).
func decodeHTMLEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
		"&nbsp;", " ",
		"&mdash;", "—",
		"&ndash;", "–",
		"&laquo;", "«",
		"&raquo;", "»",
		"&bull;", "•",
		"&hellip;", "...",
		"&copy;", "(c)",
		"&reg;", "(R)",
		"&trade;", "(TM)",
	)
	return replacer.Replace(s)
}
