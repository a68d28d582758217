package irc

import (
	"strings"
	"testing"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage("@id=123;tag2=A\\sB :nick!user@host PRIVMSG #chan :hello world")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "123", "tag2": "A B"}, msg.Tags)
	require.NotNil(t, msg.Prefix)
	assert.Equal(t, "nick!user@host", msg.Prefix.String())
	assert.Equal(t, "nick", msg.Source())
	assert.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, []string{"#chan", "hello world"}, msg.Params)
}

func TestParseMessageShapes(t *testing.T) {
	tests := []struct {
		line    string
		prefix  string
		command string
		params  []string
	}{
		{"PING", "", "PING", nil},
		{"ping :token", "", "PING", []string{"token"}},
		{":srv 001 me :Welcome home", "srv", "001", []string{"me", "Welcome home"}},
		{"PRIVMSG   #a    b", "", "PRIVMSG", []string{"#a", "b"}},
		{"TOPIC #a :", "", "TOPIC", []string{"#a", ""}},
		{"PRIVMSG #a :: :x", "", "PRIVMSG", []string{"#a", ": :x"}},
		{"NO\x00TICE #a :hi\x00", "", "NOTICE", []string{"#a", "hi"}},
	}
	for _, tt := range tests {
		msg, err := ParseMessage(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.prefix, msg.Prefix.String(), tt.line)
		assert.Equal(t, tt.command, msg.Command, tt.line)
		assert.Equal(t, tt.params, msg.Params, tt.line)
		assert.Equal(t, tt.line, msg.Raw)
	}
}

func TestParseMessageMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"\x00\x00",
		"@a=b",
		":prefix",
		"@a=b :prefix",
		"   ",
		":prefix  :trailing only",
	} {
		_, err := ParseMessage(line)
		assert.True(t, errors.Is(err, ErrMalformedLine), "%q: got %v", line, err)
	}
}

func TestTagEscaping(t *testing.T) {
	values := []string{
		"plain",
		"a b",
		"semi;colon",
		"back\\slash",
		"cr\rlf\n",
		"\\s\\:",
		"; \\\r\n",
	}
	for _, v := range values {
		msg := NewMessage("TAGMSG", "#a")
		msg.Tags = map[string]string{"k": v}
		parsed, err := ParseMessage(msg.String())
		require.NoError(t, err, "%q", v)
		assert.Equal(t, v, parsed.Tags["k"], "%q", v)
	}

	msg, err := ParseMessage("@a=a\\b;b=trailing\\;c=a\\:b\\sc CMD")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "ab", "b": "trailing", "c": "a;b c"}, msg.Tags)
}

func TestParseTags(t *testing.T) {
	msg, err := ParseMessage("@+draft/reply=x;flag;;time=2024-01-02T03:04:05.678Z CMD")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"+draft/reply": "x",
		"flag":         "",
		"time":         "2024-01-02T03:04:05.678Z",
	}, msg.Tags)
	assert.Equal(t, 2024, msg.TimeOrNow().Year())
	assert.Equal(t, 678000000, msg.TimeOrNow().Nanosecond())
}

func TestMessageString(t *testing.T) {
	tests := []struct {
		msg  Message
		line string
	}{
		{NewMessage("PING", "token"), "PING token"},
		{NewMessage("PRIVMSG", "#a", "hello world"), "PRIVMSG #a :hello world"},
		{NewMessage("TOPIC", "#a", ""), "TOPIC #a :"},
		{NewMessage("PRIVMSG", "#a", ":)"), "PRIVMSG #a ::)"},
		{NewMessage("QUIT"), "QUIT"},
		{Message{
			Tags:    map[string]string{"label": "a b"},
			Prefix:  &Prefix{Name: "n", User: "u", Host: "h"},
			Command: "NOTICE",
			Params:  []string{"me", "hi"},
		}, "@label=a\\sb :n!u@h NOTICE me hi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.line, tt.msg.String())
	}
}

func TestMessageRoundTrip(t *testing.T) {
	for _, line := range []string{
		"@a=b\\sc :n!u@h PRIVMSG #chan :hello there",
		":srv 353 me = #chan :@alice +bob carol",
		"CAP * LS :multi-prefix sasl=PLAIN,EXTERNAL",
		"JOIN #chan",
	} {
		msg, err := ParseMessage(line)
		require.NoError(t, err)
		assert.Equal(t, line, msg.String())
	}
}

// ircmsg is an independent implementation of the same grammar.
func TestParseMessageAgainstIRCMsg(t *testing.T) {
	for _, line := range []string{
		"@id=123;tag2=A\\sB :nick!user@host PRIVMSG #chan :hello world",
		":irc.example.net 353 me = #chan :@alice +bob carol",
		":srv 005 me CHANTYPES=# PREFIX=(ov)@+ :are supported by this server",
		"PING :irc.example.net",
		"@time=2024-01-02T03:04:05.000Z :a!b@c AWAY :gone fishing",
		":a!b@c MODE #chan +ov-b alice bob *!*@spam",
		"@escaped=a\\:b\\\\c :x PRIVMSG #y ::)",
	} {
		ours, err := ParseMessage(line)
		require.NoError(t, err, line)
		theirs, err := ircmsg.ParseLine(line)
		require.NoError(t, err, line)

		assert.Equal(t, theirs.Command, ours.Command, line)
		assert.Equal(t, theirs.Source, ours.Prefix.String(), line)
		assert.Equal(t, len(theirs.Params), len(ours.Params), line)
		for i := range theirs.Params {
			assert.Equal(t, theirs.Params[i], ours.Params[i], line)
		}
		for k, v := range theirs.AllTags() {
			assert.Equal(t, v, ours.Tags[k], "%s: tag %s", line, k)
		}
	}
}

func TestIsReply(t *testing.T) {
	for cmd, want := range map[string]bool{
		"001":     true,
		"999":     true,
		"000":     true,
		"1":       false,
		"0001":    false,
		"12a":     false,
		"PRIVMSG": false,
		"":        false,
	} {
		msg := NewMessage(cmd)
		assert.Equal(t, want, msg.IsReply(), cmd)
	}
}

func TestParseParams(t *testing.T) {
	msg := NewMessage("352", "me", "#chan", "user")
	var channel, user string
	require.NoError(t, msg.ParseParams(nil, &channel, &user))
	assert.Equal(t, "#chan", channel)
	assert.Equal(t, "user", user)

	var extra string
	err := msg.ParseParams(nil, nil, nil, &extra)
	assert.True(t, errors.Is(err, ErrNotEnoughParams))
	assert.Equal(t, "", extra)
}

func TestBody(t *testing.T) {
	msg := NewMessage("PRIVMSG", "#a", "hello", "world")
	assert.Equal(t, "hello world", msg.Body(1))
	assert.Equal(t, "", msg.Body(3))
}

func TestCasemap(t *testing.T) {
	assert.Equal(t, "nick{}|^", CasemapRFC1459("NICK[]\\~"))
	assert.Equal(t, "nick[]\\~", CasemapASCII("NICK[]\\~"))
	assert.Equal(t, "été", CasemapASCII("été"))
	assert.Equal(t, strings.Repeat("a", 3), CasemapRFC1459("AaA"))
}
