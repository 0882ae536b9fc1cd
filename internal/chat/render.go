package chat

import "regexp"

var markdownLinkRe = regexp.MustCompile(`\[([^\]]+)]\((https?://[^\s)]+)\)`)

// RenderMarkdownLinks rewrites Markdown links into inline hyperlink
// markup for the chat client.
func RenderMarkdownLinks(text string) string {
	return markdownLinkRe.ReplaceAllString(text, `<a href="$2" target="_blank" rel="noopener noreferrer">$1</a>`)
}
