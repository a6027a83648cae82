package shared

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameBytes caps a sanitized path component.
const MaxNameBytes = 200

var reservedReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "'",
	"<", "",
	">", "",
	"|", "-",
)

// SanitizeFileName turns an arbitrary title into a single safe path component.
//
// The result is NFC-normalized, free of reserved and control characters, has no
// leading or trailing whitespace or trailing dots, and is at most [MaxNameBytes] long.
// Sanitizing an already sanitized name returns it unchanged.
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, name)
	name = reservedReplacer.Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	name = strings.TrimRight(name, ". ")
	// Normalize after removals so a base letter and a mark left adjacent are composed.
	// Truncation and trimming only cut a normalized string, which stays normalized.
	name = norm.NFC.String(name)
	name = truncateBytes(name, MaxNameBytes)
	name = strings.TrimRight(name, ". ")
	if name == "" {
		return "untitled"
	}
	return name
}

// truncateBytes shortens s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
