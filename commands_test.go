package ircmodel

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~delthas/ircmodel/irc"
)

type fakeTransport struct {
	mu      sync.Mutex
	written []string
}

func (t *fakeTransport) ReadLine() (string, error) {
	select {}
}

func (t *fakeTransport) WriteLine(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = append(t.written, line)
	return nil
}

func (t *fakeTransport) Close() error {
	return nil
}

func (t *fakeTransport) Written() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.written
	t.written = nil
	return w
}

// onlineApp returns an App connected through a fake transport, registered
// as "me" and in #chan.
func onlineApp(t *testing.T, cfg Config) (*App, *fakeTransport) {
	logger, _ := test.NewNullLogger()
	app := NewApp(cfg, logger)
	tr := &fakeTransport{}
	conn := irc.NewConn(tr, irc.ConnParams{Nickname: "me", Logger: logger})
	for _, line := range []string{
		":srv 001 me :Welcome",
		":me!u@h JOIN #chan",
		":srv 353 me = #chan :@me alice",
		":srv 366 me #chan :End",
	} {
		require.NoError(t, conn.Receive(line))
	}
	tr.Written()
	app.setConn(conn)
	return app, tr
}

func TestFieldsN(t *testing.T) {
	assert.Nil(t, fieldsN("   ", 2))
	assert.Equal(t, []string{"a b  c"}, fieldsN(" a b  c ", 1))
	assert.Equal(t, []string{"#chan", "hello  world"}, fieldsN("#chan  hello  world", 2))
	assert.Equal(t, []string{"a", "b", "c"}, fieldsN("a b c", maxArgsInfinite))
}

func TestParseCommand(t *testing.T) {
	cmd, args, ok := parseCommand("/join  #chan key")
	assert.True(t, ok)
	assert.Equal(t, "JOIN", cmd)
	assert.Equal(t, "#chan key", args)

	_, args, ok = parseCommand("hello")
	assert.False(t, ok)
	assert.Equal(t, "hello", args)
}

func TestHandleInputOffline(t *testing.T) {
	logger, _ := test.NewNullLogger()
	app := NewApp(Defaults(), logger)
	var out bytes.Buffer

	require.NoError(t, app.HandleInput(&out, "/help join"))
	assert.Contains(t, out.String(), "/join <channel> [key]")

	assert.Equal(t, errOffline, app.HandleInput(&out, "/join #chan"))
	assert.Error(t, app.HandleInput(&out, "hello"))
	assert.Error(t, app.HandleInput(&out, "/"))
	assert.Error(t, app.HandleInput(&out, "/frobnicate"))
	assert.NoError(t, app.HandleInput(&out, "   "))
}

func TestHandleInputCommands(t *testing.T) {
	app, tr := onlineApp(t, Defaults())
	var out bytes.Buffer

	for _, line := range []string{
		"/join other",
		"/part #chan see you",
		"/msg alice hello there",
		"/notice #chan hi",
		"/nick Zoë",
		"/topic #chan",
		"/topic #chan new topic",
		"/mode #chan +o alice",
		"/mode #chan",
		"/kick #chan alice behave",
		"/invite alice #chan",
		"/who #chan",
		"/names #chan",
		"/away",
		"/back",
		"/quote PRIVMSG #chan :raw",
		"/ms alice prefix match",
	} {
		require.NoError(t, app.HandleInput(&out, line), line)
	}
	assert.Equal(t, []string{
		"JOIN #other",
		"PART #chan :see you",
		"PRIVMSG alice :hello there",
		"NOTICE #chan hi",
		"NICK Zoe",
		"TOPIC #chan",
		"TOPIC #chan :new topic",
		"MODE #chan +o alice",
		"MODE #chan",
		"KICK #chan alice behave",
		"INVITE alice #chan",
		"WHO #chan",
		"NAMES #chan",
		"AWAY :Auto away",
		"AWAY",
		"PRIVMSG #chan raw",
		"PRIVMSG alice :prefix match",
	}, tr.Written())
}

func TestHandleInputErrors(t *testing.T) {
	app, tr := onlineApp(t, Defaults())
	var out bytes.Buffer

	err := app.HandleInput(&out, "/msg alice")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "usage: MSG"))

	// NAMES and NICK both start with N
	err = app.HandleInput(&out, "/n x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	assert.Error(t, app.HandleInput(&out, "/mode #chan +z"))
	assert.Empty(t, tr.Written())
}

func TestHandleInputQuit(t *testing.T) {
	app, tr := onlineApp(t, Defaults())
	require.NoError(t, app.HandleInput(&bytes.Buffer{}, "/quit bye"))
	assert.Equal(t, []string{"QUIT bye"}, tr.Written())
	assert.Error(t, app.ctx.Err())
}
