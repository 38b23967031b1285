package jira

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "table": true, "pre": true, "blockquote": true,
}

// HTMLToText flattens Jira's rendered HTML to plain text. Block elements
// become line breaks and list items are prefixed with "* ".
func HTMLToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return strings.TrimSpace(src)
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "li":
				buf.WriteString("\n* ")
			default:
				if blockElements[n.Data] {
					buf.WriteString("\n")
				}
			}
		}

		if n.Type == html.TextNode {
			words := strings.Fields(n.Data)
			if len(words) == 0 {
				buf.WriteString(" ")
			} else {
				if strings.TrimLeft(n.Data, " \t\r\n") != n.Data {
					buf.WriteString(" ")
				}
				buf.WriteString(strings.Join(words, " "))
				if strings.TrimRight(n.Data, " \t\r\n") != n.Data {
					buf.WriteString(" ")
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] && n.Data != "br" {
			buf.WriteString("\n")
		}
	}
	walk(doc)

	return tidyLines(buf.String())
}

// tidyLines trims every line, drops blank ones and joins a lone "*" with
// the line that follows it
func tidyLines(s string) string {
	var lines []string
	bullet := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "*":
			bullet = true
			continue
		case bullet && !strings.HasPrefix(line, "* "):
			line = "* " + line
		}
		bullet = false
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// adfText pulls the text out of an Atlassian Document Format value. Plain
// JSON strings (API v2 style) are returned as is.
func adfText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain)
	}

	var node adfNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return ""
	}
	var buf strings.Builder
	node.write(&buf)
	return tidyLines(buf.String())
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

func (n adfNode) write(buf *strings.Builder) {
	switch n.Type {
	case "text":
		buf.WriteString(n.Text)
		return
	case "hardBreak":
		buf.WriteString("\n")
		return
	case "listItem":
		buf.WriteString("\n* ")
	}
	for _, c := range n.Content {
		c.write(buf)
	}
	switch n.Type {
	case "paragraph", "heading", "listItem", "codeBlock", "blockquote":
		buf.WriteString("\n")
	}
}
