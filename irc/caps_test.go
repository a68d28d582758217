package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentLines []string

func (s *sentLines) send(msg Message) {
	*s = append(*s, msg.String())
}

func capMessage(t *testing.T, line string) Message {
	msg, err := ParseMessage(line)
	require.NoError(t, err)
	return msg
}

func set(names ...string) map[string]struct{} {
	res := map[string]struct{}{}
	for _, name := range names {
		res[name] = struct{}{}
	}
	return res
}

func TestCapsNegotiation(t *testing.T) {
	var sent sentLines
	c := newCaps(DefaultCapabilities)
	c.start(sent.send)
	assert.Equal(t, CapListing, c.State)

	require.NoError(t, c.handle(capMessage(t, ":srv CAP * LS :away-notify multi-prefix sasl=PLAIN"), false, sent.send))
	assert.Equal(t, set("away-notify", "multi-prefix"), c.Requested)
	assert.Equal(t, CapNegotiating, c.State)
	assert.Equal(t, "PLAIN", c.Available["sasl"])

	require.NoError(t, c.handle(capMessage(t, ":srv CAP * ACK away-notify"), false, sent.send))
	assert.Equal(t, set("away-notify"), c.Enabled)
	assert.Equal(t, set("multi-prefix"), c.Requested)
	assert.Equal(t, []string{"CAP LS 302", "CAP REQ :away-notify multi-prefix"}, []string(sent))

	require.NoError(t, c.handle(capMessage(t, ":srv CAP * ACK multi-prefix"), false, sent.send))
	assert.Empty(t, c.Requested)
	assert.Equal(t, CapDone, c.State)
	assert.Equal(t, "CAP END", sent[len(sent)-1])
	assert.True(t, c.Has("multi-prefix"))

	// END is only sent once
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * NAK whatever"), false, sent.send))
	assert.Len(t, sent, 3)
}

func TestCapsNothingToRequest(t *testing.T) {
	var sent sentLines
	c := newCaps(DefaultCapabilities)
	c.start(sent.send)
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * LS :sasl"), false, sent.send))
	assert.Equal(t, []string{"CAP LS 302", "CAP END"}, []string(sent))
}

func TestCapsNoEndWhenLoggedIn(t *testing.T) {
	var sent sentLines
	c := newCaps(DefaultCapabilities)
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * LS :sasl"), true, sent.send))
	assert.Empty(t, sent)
}

func TestCapsNak(t *testing.T) {
	var sent sentLines
	c := newCaps([]string{"a", "b"})
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * LS :a b"), false, sent.send))
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * NAK :a b"), false, sent.send))
	assert.Empty(t, c.Enabled)
	assert.Equal(t, []string{"CAP REQ :a b", "CAP END"}, []string(sent))
}

func TestCapsMultiline(t *testing.T) {
	var sent sentLines
	c := newCaps([]string{"a", "z"})
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * LS * :a b c"), false, sent.send))
	assert.Empty(t, sent)
	assert.Empty(t, c.Available)
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * LS :x z=1"), false, sent.send))
	assert.Len(t, c.Available, 5)
	assert.Equal(t, "1", c.Available["z"])
	assert.Equal(t, []string{"CAP REQ :a z"}, []string(sent))

	require.NoError(t, c.handle(capMessage(t, ":srv CAP * LIST * :a"), true, sent.send))
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * LIST :z"), true, sent.send))
	assert.Equal(t, set("a", "z"), c.Enabled)
}

func TestCapsNewDel(t *testing.T) {
	var sent sentLines
	c := newCaps([]string{"away-notify", "chghost"})
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * LS :away-notify"), false, sent.send))
	require.NoError(t, c.handle(capMessage(t, ":srv CAP * ACK :away-notify"), false, sent.send))
	sent = nil

	require.NoError(t, c.handle(capMessage(t, ":srv CAP me NEW :chghost unwanted"), true, sent.send))
	assert.Equal(t, []string{"CAP REQ chghost"}, []string(sent))
	assert.Contains(t, c.Available, "unwanted")
	require.NoError(t, c.handle(capMessage(t, ":srv CAP me ACK :chghost -away-notify"), true, sent.send))
	assert.Equal(t, set("chghost"), c.Enabled)

	require.NoError(t, c.handle(capMessage(t, ":srv CAP me DEL :chghost"), true, sent.send))
	assert.Empty(t, c.Enabled)
	assert.NotContains(t, c.Available, "chghost")
	assert.Len(t, sent, 1)
}

func TestParseCaps(t *testing.T) {
	assert.Equal(t, []Cap{
		{Name: "sasl", Value: "PLAIN,EXTERNAL", Enable: true},
		{Name: "echo-message", Enable: false},
	}, ParseCaps(" sasl=PLAIN,EXTERNAL  -echo-message"))
}
