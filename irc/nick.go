package irc

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// isNickChar reports whether c may appear in a nickname (RFC 2812 letters,
// digits and specials, plus '-').
func isNickChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("[]\\`_^{|}-", c) >= 0
}

// CleanNick turns an arbitrary name into a valid nickname: non-ASCII text is
// transliterated, other invalid bytes become '_', and a nickname starting
// with a digit or '-' is prefixed with '_'.
func CleanNick(nick string) string {
	nick = strings.ReplaceAll(unidecode.Unidecode(nick), " ", "_")
	if nick == "" {
		return "_"
	}
	if nick[0] == '-' || ('0' <= nick[0] && nick[0] <= '9') {
		nick = "_" + nick
	}

	b := []byte(nick)
	for i, c := range b {
		if !isNickChar(c) {
			b[i] = '_'
		}
	}
	return string(b)
}
