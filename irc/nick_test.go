package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanNick(t *testing.T) {
	for in, want := range map[string]string{
		"alice":      "alice",
		"[away]|x":   "[away]|x",
		"John Smith": "John_Smith",
		"42":         "_42",
		"-dash":      "_-dash",
		"Zoë":        "Zoe",
		"a.b@c":      "a_b_c",
		"":           "_",
	} {
		assert.Equal(t, want, CleanNick(in), in)
	}
}
