package comment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxContentLength is the hard cap on comment content, applied after
// sanitization so the truncation is of clean text.
const MaxContentLength = 2000

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	tagRe         = regexp.MustCompile(`(?is)</?(?:script|iframe|object|embed|style)\b[^>]*>`)
	handlerAttrRe = regexp.MustCompile(`(?i)\bon[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	protocolRe    = regexp.MustCompile(`(?i)(?:javascript|vbscript|data)\s*:`)
)

// sanitizeContent strips script-like markup and protocol-handler strings,
// then hard-truncates to MaxContentLength. It never fails: content that
// resists cleaning passes through as a raw truncated string.
func sanitizeContent(s string) string {
	s = scriptBlockRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	s = handlerAttrRe.ReplaceAllString(s, "")
	s = protocolRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return truncate(s, MaxContentLength)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	// Do not split a multi-byte rune at the boundary.
	for !utf8.ValidString(cut) && len(cut) > 0 {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// A leading word character means the @ is part of an email address, not a
// mention.
var mentionRe = regexp.MustCompile(`(?:^|[^a-z0-9_])@([a-z0-9_]{3,30})\b`)

// extractMentions returns the distinct @handles referenced in content, in
// order of first appearance.
func extractMentions(content string) []string {
	seen := make(map[string]bool)
	var handles []string
	for _, m := range mentionRe.FindAllStringSubmatch(strings.ToLower(content), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			handles = append(handles, m[1])
		}
	}
	return handles
}
