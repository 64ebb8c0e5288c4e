package utils

import "strings"

// telegramMarkdownSpecial is the set of characters Telegram's MarkdownV2
// renderer treats as markup.
const telegramMarkdownSpecial = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdown escapes Telegram MarkdownV2 special characters so that
// model-authored text cannot be misrendered (or abused) as markup.
func EscapeMarkdown(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 128 && strings.ContainsRune(telegramMarkdownSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Truncate shortens s to at most max runes for log previews, appending an
// ellipsis when anything was cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
