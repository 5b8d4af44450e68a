package aiservice

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// plainTextReasoning strips markdown formatting from a model's
// free-text reasoning before it's stored in a StateChangeBlock, so
// headings, emphasis markers, and fenced code blocks the model might
// produce don't pollute the plain-text training export.
func plainTextReasoning(src string) string {
	if src == "" || !looksLikeMarkdown(src) {
		return src
	}
	doc := goldmark.DefaultParser().Parse(text.NewReader([]byte(src)))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindText:
			sb.Write(n.(*ast.Text).Segment.Value([]byte(src)))
		case ast.KindAutoLink:
			sb.Write(n.(*ast.AutoLink).URL([]byte(src)))
		case ast.KindParagraph, ast.KindHeading, ast.KindListItem:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return src
	}
	return out
}

func looksLikeMarkdown(s string) bool {
	for _, marker := range []string{"```", "**", "##", "- ", "* ", "]("} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
