package convo

import (
	"html"
	"strings"
)

// renderHTML produces a response_html rendering of an assistant answer
// alongside the raw markdown (spec.md §9: "the spec mandates only that the
// raw markdown be preserved in parallel" — the exact HTML rendering is left
// open). No CommonMark-to-HTML renderer appears anywhere in the examples
// pack (JohannesKaufmann/html-to-markdown only goes the other direction),
// so this is a deliberately minimal stdlib paragraph/code-fence renderer
// rather than an ungrounded third-party addition: blank-line-separated
// blocks become <p>, fenced code blocks become <pre><code>, and blocks that
// already start with "<" (the diagram repair loop's own embedded HTML) are
// passed through untouched.
func renderHTML(markdown string) string {
	blocks := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n\n")
	var sb strings.Builder

	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "<"):
			sb.WriteString(trimmed)
			sb.WriteString("\n")
		case strings.HasPrefix(trimmed, "```"):
			sb.WriteString(renderCodeFence(trimmed))
		default:
			sb.WriteString("<p>")
			sb.WriteString(html.EscapeString(trimmed))
			sb.WriteString("</p>\n")
		}
	}

	return sb.String()
}

func renderCodeFence(block string) string {
	lines := strings.Split(block, "\n")
	if len(lines) < 2 {
		return "<pre><code>" + html.EscapeString(block) + "</code></pre>\n"
	}

	lang := strings.TrimPrefix(strings.TrimSpace(lines[0]), "```")
	body := lines[1:]
	if len(body) > 0 && strings.HasPrefix(strings.TrimSpace(body[len(body)-1]), "```") {
		body = body[:len(body)-1]
	}

	class := ""
	if lang != "" {
		class = ` class="language-` + html.EscapeString(lang) + `"`
	}
	return "<pre><code" + class + ">" + html.EscapeString(strings.Join(body, "\n")) + "</code></pre>\n"
}
