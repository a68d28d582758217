package ircmodel

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"git.sr.ht/~delthas/ircmodel/irc"
)

const maxArgsInfinite = -1

type command struct {
	MinArgs int
	MaxArgs int
	Usage   string
	Desc    string
	Handle  func(app *App, conn *irc.Conn, args []string) error // nil for HELP
}

type commandSet map[string]*command

var commands commandSet

func init() {
	commands = commandSet{
		"HELP": {
			MaxArgs: 1,
			Usage:   "[command]",
			Desc:    "show the list of commands, or how to use the given one",
		},
		"JOIN": {
			MinArgs: 1,
			MaxArgs: 2,
			Usage:   "<channel> [key]",
			Desc:    "join a channel",
			Handle:  commandDoJoin,
		},
		"PART": {
			MinArgs: 1,
			MaxArgs: 2,
			Usage:   "<channel> [reason]",
			Desc:    "part a channel",
			Handle:  commandDoPart,
		},
		"MSG": {
			MinArgs: 2,
			MaxArgs: 2,
			Usage:   "<target> <message>",
			Desc:    "send a message to the given target",
			Handle:  commandDoMsg,
		},
		"NOTICE": {
			MinArgs: 2,
			MaxArgs: 2,
			Usage:   "<target> <message>",
			Desc:    "send a notice to the given target",
			Handle:  commandDoNotice,
		},
		"NICK": {
			MinArgs: 1,
			MaxArgs: 1,
			Usage:   "<nickname>",
			Desc:    "change your nickname",
			Handle:  commandDoNick,
		},
		"TOPIC": {
			MinArgs: 1,
			MaxArgs: 2,
			Usage:   "<channel> [topic]",
			Desc:    "show or set the topic of a channel",
			Handle:  commandDoTopic,
		},
		"MODE": {
			MinArgs: 1,
			MaxArgs: maxArgsInfinite,
			Usage:   "<nick/channel> [<flags>] [args]",
			Desc:    "change channel or user modes",
			Handle:  commandDoMode,
		},
		"KICK": {
			MinArgs: 2,
			MaxArgs: 3,
			Usage:   "<channel> <nick> [message]",
			Desc:    "eject someone from a channel",
			Handle:  commandDoKick,
		},
		"INVITE": {
			MinArgs: 2,
			MaxArgs: 2,
			Usage:   "<nick> <channel>",
			Desc:    "invite someone to a channel",
			Handle:  commandDoInvite,
		},
		"WHO": {
			MinArgs: 1,
			MaxArgs: 1,
			Usage:   "<mask>",
			Desc:    "list the users matching a mask",
			Handle:  commandDoWho,
		},
		"NAMES": {
			MinArgs: 1,
			MaxArgs: 1,
			Usage:   "<channel>",
			Desc:    "show the member list of a channel",
			Handle:  commandDoNames,
		},
		"AWAY": {
			MaxArgs: 1,
			Usage:   "[message]",
			Desc:    "mark yourself as away",
			Handle:  commandDoAway,
		},
		"BACK": {
			Desc:   "mark yourself as back from being away",
			Handle: commandDoBack,
		},
		"QUOTE": {
			MinArgs: 1,
			MaxArgs: 1,
			Usage:   "<raw message>",
			Desc:    "send raw protocol data",
			Handle:  commandDoQuote,
		},
		"QUIT": {
			MaxArgs: 1,
			Usage:   "[reason]",
			Desc:    "quit",
			Handle:  commandDoQuit,
		},
	}
}

func commandDoJoin(app *App, conn *irc.Conn, args []string) error {
	key := ""
	if len(args) == 2 {
		key = args[1]
	}
	return conn.Join(args[0], key)
}

func commandDoPart(app *App, conn *irc.Conn, args []string) error {
	reason := ""
	if len(args) == 2 {
		reason = args[1]
	}
	return conn.Part(args[0], reason)
}

func commandDoMsg(app *App, conn *irc.Conn, args []string) error {
	return conn.PrivMsg(args[0], args[1])
}

func commandDoNotice(app *App, conn *irc.Conn, args []string) error {
	return conn.Notice(args[0], args[1])
}

func commandDoNick(app *App, conn *irc.Conn, args []string) error {
	return conn.ChangeNick(irc.CleanNick(args[0]))
}

func commandDoTopic(app *App, conn *irc.Conn, args []string) error {
	if len(args) == 1 {
		return conn.TopicQuery(args[0])
	}
	return conn.Topic(args[0], args[1])
}

func commandDoMode(app *App, conn *irc.Conn, args []string) error {
	target := args[0]
	if len(args) == 1 {
		return conn.ModeQuery(target)
	}
	f := conn.Features()
	table, statuses := f.ChanModes, f.StatusModes
	if !f.IsChannel(target) {
		table, statuses = f.UserModes, ""
	}
	changes, err := irc.ParseModeString(args[1], args[2:], table, statuses)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return errors.Errorf("no known mode in %q", args[1])
	}
	return conn.Mode(target, changes)
}

func commandDoKick(app *App, conn *irc.Conn, args []string) error {
	reason := ""
	if len(args) == 3 {
		reason = args[2]
	}
	return conn.Kick(args[0], args[1], reason)
}

func commandDoInvite(app *App, conn *irc.Conn, args []string) error {
	return conn.Invite(args[0], args[1])
}

func commandDoWho(app *App, conn *irc.Conn, args []string) error {
	return conn.Who(args[0])
}

func commandDoNames(app *App, conn *irc.Conn, args []string) error {
	return conn.Names(args[0])
}

func commandDoAway(app *App, conn *irc.Conn, args []string) error {
	reason := "Auto away"
	if len(args) == 1 {
		reason = args[0]
	}
	return conn.Away(reason)
}

func commandDoBack(app *App, conn *irc.Conn, args []string) error {
	return conn.Away("")
}

func commandDoQuote(app *App, conn *irc.Conn, args []string) error {
	msg, err := irc.ParseMessage(args[0])
	if err != nil {
		return err
	}
	return conn.Send(msg)
}

func commandDoQuit(app *App, conn *irc.Conn, args []string) error {
	reason := ""
	if len(args) == 1 {
		reason = args[0]
	}
	err := conn.Quit(reason)
	app.cancel()
	return err
}

func commandDoHelp(w io.Writer, args []string) {
	names := make([]string, 0, len(commands))
	search := ""
	if len(args) == 1 {
		search = strings.ToUpper(args[0])
	}
	for name := range commands {
		if strings.Contains(name, search) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		fmt.Fprintf(w, "no command matches %q\n", args[0])
		return
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(w, "/%s %s\n  %s\n", strings.ToLower(name), cmd.Usage, cmd.Desc)
	}
}

// implemented from https://golang.org/src/strings/strings.go?s=8055:8085#L310
func fieldsN(s string, n int) []string {
	s = strings.TrimSpace(s)
	if s == "" || n == 0 {
		return nil
	}
	if n == 1 {
		return []string{s}
	}
	// Start of the ASCII fast path.
	var a []string
	na := 0
	fieldStart := 0
	i := 0
	// Skip spaces in front of the input.
	for i < len(s) && s[i] == ' ' {
		i++
	}
	fieldStart = i
	for i < len(s) {
		if s[i] != ' ' {
			i++
			continue
		}
		a = append(a, s[fieldStart:i])
		na++
		i++
		// Skip spaces in between fields.
		for i < len(s) && s[i] == ' ' {
			i++
		}
		fieldStart = i
		if n != maxArgsInfinite && na+1 >= n {
			a = append(a, s[fieldStart:])
			return a
		}
	}
	if fieldStart < len(s) {
		// Last field ends at EOF.
		a = append(a, s[fieldStart:])
	}
	return a
}

func parseCommand(s string) (command, args string, isCommand bool) {
	if len(s) == 0 || s[0] != '/' {
		return "", s, false
	}

	i := strings.IndexByte(s, ' ')
	if i < 0 {
		i = len(s)
	}

	return strings.ToUpper(s[1:i]), strings.TrimLeft(s[i:], " "), true
}

// HandleInput runs one line of user input, such as "/join #channel". Help
// and usage text is written to w.
func (app *App) HandleInput(w io.Writer, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	cmdName, rawArgs, isCommand := parseCommand(content)
	if !isCommand {
		return errors.New("not a command; use /msg <target> <message> to send a message")
	}
	if cmdName == "" {
		return errors.New("lone slash at the beginning")
	}

	chosenCMDName := cmdName
	if _, ok := commands[cmdName]; !ok {
		var matches []string
		for key := range commands {
			if strings.HasPrefix(key, cmdName) {
				matches = append(matches, key)
			}
		}
		sort.Strings(matches)
		switch len(matches) {
		case 0:
			return errors.Errorf("unknown command %q; use /quote to send it as is", cmdName)
		case 1:
			chosenCMDName = matches[0]
		default:
			return errors.Errorf("ambiguous command %q (could mean %v or %v)", cmdName, matches[0], matches[1])
		}
	}

	cmd := commands[chosenCMDName]

	var args []string
	if rawArgs != "" && cmd.MaxArgs != 0 {
		args = fieldsN(rawArgs, cmd.MaxArgs)
	}

	if len(args) < cmd.MinArgs {
		return errors.Errorf("usage: %s %s", chosenCMDName, cmd.Usage)
	}

	if chosenCMDName == "HELP" {
		commandDoHelp(w, args)
		return nil
	}

	conn := app.Conn()
	if conn == nil {
		return errOffline
	}
	return cmd.Handle(app, conn, args)
}
