package irc

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rivo/uniseg"
)

// ErrChannelLimit is returned by Join when we are already in as many
// channels as the server allows.
var ErrChannelLimit = errors.New("channel limit reached")

// truncate cuts s to at most max bytes without splitting a grapheme
// cluster. max <= 0 means no limit.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cw := len(g.Str())
		if n+cw > max {
			break
		}
		n += cw
	}
	return s[:n]
}

// splitChunks splits s into chunks of at most chunkLen bytes, on grapheme
// cluster boundaries.
func splitChunks(s string, chunkLen int) (chunks []string) {
	if chunkLen <= 0 || len(s) <= chunkLen {
		return []string{s}
	}

	b := 0
	n := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cw := len(g.Str())
		if n+cw > chunkLen && n > 0 {
			chunks = append(chunks, s[b:b+n])
			b += n
			n = cw
			continue
		}
		n += cw
	}
	if b < len(s) {
		chunks = append(chunks, s[b:])
	}
	return
}

// channelName truncates a channel name to CHANNELLEN and adds the first
// CHANTYPES character if it lacks a channel prefix. Callers hold c.mu.
func (c *Conn) channelName(channel string) string {
	if !c.features.IsChannel(channel) && c.features.ChanTypes != "" {
		channel = c.features.ChanTypes[:1] + channel
	}
	return truncate(channel, c.features.ChannelLen)
}

// checkTokens returns an error wrapping ErrInvalidParam if one of params,
// such as a nickname or a channel, is not a single non-empty word.
func checkTokens(params ...string) error {
	for _, p := range params {
		if p == "" || strings.ContainsAny(p, " \r\n\x00") || strings.HasPrefix(p, ":") {
			return errors.Wrapf(ErrInvalidParam, "%q", p)
		}
	}
	return nil
}

// build runs f with c.mu held and sends the messages it returns as one
// batch.
func (c *Conn) build(f func() []Message) error {
	c.mu.Lock()
	msgs := f()
	c.mu.Unlock()
	if len(msgs) == 0 {
		return nil
	}
	return c.sendBatch(msgs)
}

// SendRaw sends a command with the given parameters, as is.
func (c *Conn) SendRaw(command string, params ...string) error {
	return c.Send(NewMessage(command, params...))
}

func (c *Conn) Admin(server string) error {
	if server == "" {
		return c.SendRaw("ADMIN")
	}
	return c.SendRaw("ADMIN", server)
}

// Away marks us as away with the given reason, or as back if reason is
// empty.
func (c *Conn) Away(reason string) error {
	if reason == "" {
		return c.SendRaw("AWAY")
	}
	return c.build(func() []Message {
		return []Message{NewMessage("AWAY", truncate(reason, c.features.AwayLen))}
	})
}

func (c *Conn) CapLS() error {
	return c.SendRaw("CAP", "LS", "302")
}

func (c *Conn) CapList() error {
	return c.SendRaw("CAP", "LIST")
}

// CapReq requests capabilities outside of registration.
func (c *Conn) CapReq(caps ...string) error {
	return c.build(func() []Message {
		for _, name := range caps {
			c.caps.Requested[name] = struct{}{}
		}
		return []Message{NewMessage("CAP", "REQ", strings.Join(caps, " "))}
	})
}

func (c *Conn) CapEnd() error {
	return c.build(func() []Message {
		c.caps.State = CapDone
		return []Message{NewMessage("CAP", "END")}
	})
}

// Connect asks the server to connect to another server (operators only).
func (c *Conn) Connect(target, port, remote string) error {
	params := []string{target}
	if port != "" {
		params = append(params, port)
		if remote != "" {
			params = append(params, remote)
		}
	}
	return c.SendRaw("CONNECT", params...)
}

func (c *Conn) Info(target string) error {
	if target == "" {
		return c.SendRaw("INFO")
	}
	return c.SendRaw("INFO", target)
}

func (c *Conn) Invite(nick, channel string) error {
	if err := checkTokens(nick, channel); err != nil {
		return err
	}
	return c.build(func() []Message {
		return []Message{NewMessage("INVITE", nick, c.channelName(channel))}
	})
}

func (c *Conn) IsOn(nicks ...string) error {
	return c.SendRaw("ISON", nicks...)
}

// Join joins a channel, with an optional key.
func (c *Conn) Join(channel, key string) error {
	if err := checkTokens(channel); err != nil {
		return err
	}
	if key != "" {
		if err := checkTokens(key); err != nil {
			return err
		}
	}
	var err error
	sendErr := c.build(func() []Message {
		if c.features.MaxChannels > 0 && len(c.channels) >= c.features.MaxChannels {
			err = errors.Wrapf(ErrChannelLimit, "joining %s", channel)
			return nil
		}
		channel = c.channelName(channel)
		if key == "" {
			return []Message{NewMessage("JOIN", channel)}
		}
		return []Message{NewMessage("JOIN", channel, key)}
	})
	if err != nil {
		return err
	}
	return sendErr
}

func (c *Conn) Kick(channel, nick, reason string) error {
	if err := checkTokens(channel, nick); err != nil {
		return err
	}
	return c.build(func() []Message {
		channel = c.channelName(channel)
		if reason == "" {
			return []Message{NewMessage("KICK", channel, nick)}
		}
		return []Message{NewMessage("KICK", channel, nick, truncate(reason, c.features.KickLen))}
	})
}

// Mode sends mode changes for a channel or a nickname, split in as many
// MODE commands as the MODES limit requires. Targets that are neither our
// nickname nor a known user are taken as channel names.
func (c *Conn) Mode(target string, changes ModeString) error {
	if err := checkTokens(target); err != nil {
		return err
	}
	return c.build(func() []Message {
		if !c.isMe(target) && c.userByNick(target) == nil {
			target = c.channelName(target)
		}
		var msgs []Message
		for _, group := range changes.Split(c.features.MaxModes) {
			token, params := group.Encode()
			msgs = append(msgs, NewMessage("MODE", append([]string{target, token}, params...)...))
		}
		return msgs
	})
}

// ModeQuery asks the server for the modes of target.
func (c *Conn) ModeQuery(target string) error {
	return c.SendRaw("MODE", target)
}

func (c *Conn) Names(channel string) error {
	if err := checkTokens(channel); err != nil {
		return err
	}
	return c.build(func() []Message {
		return []Message{NewMessage("NAMES", c.channelName(channel))}
	})
}

func (c *Conn) ChangeNick(nick string) error {
	if err := checkTokens(nick); err != nil {
		return err
	}
	return c.build(func() []Message {
		return []Message{NewMessage("NICK", truncate(nick, c.features.NickLen))}
	})
}

func (c *Conn) Notice(target, text string) error {
	return c.sendText("NOTICE", target, text)
}

func (c *Conn) PrivMsg(target, text string) error {
	return c.sendText("PRIVMSG", target, text)
}

// sendText sends text to target, split so that every line relayed by the
// server fits in LINELEN.
func (c *Conn) sendText(command, target, text string) error {
	if err := checkTokens(target); err != nil {
		return err
	}
	return c.build(func() []Message {
		nick, user, host := c.nick, c.params.Username, ""
		if u := c.userByNick(c.nick); u != nil {
			if u.Username != "" {
				user = u.Username
			}
			host = u.Hostname
		}
		hostLen := len(host)
		if hostLen == 0 {
			hostLen = len("255.255.255.255")
		}
		maxLen := c.features.LineLen -
			len(":!@  :\r\n") -
			len(command) -
			len(nick) -
			len(user) -
			hostLen -
			len(target)
		if c.features.LineLen == 0 || maxLen <= 0 {
			maxLen = 0
		}
		var msgs []Message
		for _, chunk := range splitChunks(text, maxLen) {
			msgs = append(msgs, NewMessage(command, target, chunk))
		}
		return msgs
	})
}

func (c *Conn) Part(channel, reason string) error {
	if err := checkTokens(channel); err != nil {
		return err
	}
	return c.build(func() []Message {
		channel = c.channelName(channel)
		if reason == "" {
			return []Message{NewMessage("PART", channel)}
		}
		return []Message{NewMessage("PART", channel, reason)}
	})
}

func (c *Conn) Pass(password string) error {
	return c.SendRaw("PASS", password)
}

func (c *Conn) Ping(token string) error {
	return c.SendRaw("PING", token)
}

func (c *Conn) Pong(token string) error {
	return c.SendRaw("PONG", token)
}

func (c *Conn) Quit(reason string) error {
	if reason == "" {
		return c.SendRaw("QUIT")
	}
	return c.SendRaw("QUIT", reason)
}

// Topic sets the topic of a channel.
func (c *Conn) Topic(channel, topic string) error {
	if err := checkTokens(channel); err != nil {
		return err
	}
	return c.build(func() []Message {
		return []Message{NewMessage("TOPIC", c.channelName(channel), truncate(topic, c.features.TopicLen))}
	})
}

// TopicQuery asks the server for the topic of a channel.
func (c *Conn) TopicQuery(channel string) error {
	if err := checkTokens(channel); err != nil {
		return err
	}
	return c.build(func() []Message {
		return []Message{NewMessage("TOPIC", c.channelName(channel))}
	})
}

// SendUser sends the USER registration command.
func (c *Conn) SendUser(username, realname string) error {
	return c.SendRaw("USER", username, "0", "*", realname)
}

func (c *Conn) Who(mask string) error {
	if err := checkTokens(mask); err != nil {
		return err
	}
	return c.SendRaw("WHO", mask)
}

func (c *Conn) Whois(nick string) error {
	if err := checkTokens(nick); err != nil {
		return err
	}
	return c.SendRaw("WHOIS", nick)
}
