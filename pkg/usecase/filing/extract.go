package filing

import (
	"bytes"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/net/html"
)

var skippedElements = map[string]bool{
	"script":    true,
	"style":     true,
	"noscript":  true,
	"head":      true,
	"ix:header": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true,
	"table": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "section": true, "article": true, "hr": true,
}

// ExtractText converts a filing document to plain text lines. Script, style
// and hidden XBRL header markup is dropped. Block elements end a line.
func ExtractText(doc []byte) (string, error) {
	if !looksLikeHTML(doc) {
		return string(doc), nil
	}

	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse filing document")
	}

	var sb strings.Builder
	walkText(root, &sb)
	return normalizeLines(sb.String()), nil
}

func looksLikeHTML(doc []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(doc[:min(len(doc), 1024)]))
	return bytes.HasPrefix(head, []byte("<")) ||
		bytes.Contains(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<body"))
}

func walkText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if skippedElements[n.Data] || isHidden(n) {
			return
		}
		if blockElements[n.Data] {
			sb.WriteString("\n")
		}
		if n.Data == "td" || n.Data == "th" {
			sb.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		sb.WriteString("\n")
	}
}

func isHidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "style" {
			style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
			if strings.Contains(style, "display:none") {
				return true
			}
		}
	}
	return false
}

// normalizeLines collapses runs of whitespace inside lines and drops empty
// lines.
func normalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
