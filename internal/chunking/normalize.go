package chunking

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// normalizeText converts raw document bytes into clean UTF-8 with LF line
// endings. Bytes that are not valid UTF-8 are decoded as Windows-1252, the
// most common legacy encoding for office exports.
func normalizeText(raw []byte) string {
	text := raw
	if !utf8.Valid(text) {
		if decoded, err := charmap.Windows1252.NewDecoder().Bytes(text); err == nil {
			text = decoded
		}
	}
	s := string(text)
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}
