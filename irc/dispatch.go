package irc

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircfmt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"mvdan.cc/xurls/v2"
)

// errUnknownEntity aborts the handling of a message that names a channel or
// user we do not know.
var errUnknownEntity = errors.New("unknown entity")

var urlRegexp = xurls.Strict()

// dispatch applies msg to the connection state. Callers hold c.mu.
//
// A handler that fails leaves the state as it found it and emits nothing:
// handlers only mutate after every entity they need was resolved.
func (c *Conn) dispatch(msg Message) {
	if err := c.handle(msg); err != nil {
		c.log.WithFields(logrus.Fields{
			"command": msg.Command,
			"params":  msg.Params,
		}).WithError(err).Debug("message ignored")
	}
}

func (c *Conn) handle(msg Message) error {
	switch msg.Command {
	case rplWelcome:
		if err := msg.ParseParams(&c.nick); err != nil {
			return err
		}
		c.loggedIn = true
		c.findOrAddUser(&Prefix{Name: c.nick})
	case rplMyinfo:
		var server, version, userModes string
		if err := msg.ParseParams(nil, &server, &version); err != nil {
			return err
		}
		if len(msg.Params) > 3 {
			userModes = msg.Params[3]
		}
		c.features.seedMyInfo(server, version, userModes)
	case rplIsupport:
		if len(msg.Params) < 3 {
			return msg.errNotEnoughParams(3)
		}
		before := c.features.CaseMapping
		c.features.ParseTokens(msg.Params)
		if c.features.CaseMapping != before {
			c.reindex()
		}
	case "CAP":
		return c.caps.handle(msg, c.loggedIn, c.enqueue)
	case "PING":
		c.enqueue(NewMessage("PONG", msg.Params...))
	case errNicknameinuse:
		if c.loggedIn {
			return nil
		}
		var nick string
		if err := msg.ParseParams(nil, &nick); err != nil {
			return err
		}
		c.nick = nick + "_"
		c.enqueue(NewMessage("NICK", c.nick))
	case "JOIN":
		return c.handleJoin(msg)
	case "PART":
		return c.handlePart(msg)
	case "KICK":
		return c.handleKick(msg)
	case "QUIT":
		return c.handleQuit(msg)
	case "NICK":
		return c.handleNick(msg)
	case "MODE":
		var target, modes string
		if err := msg.ParseParams(&target, &modes); err != nil {
			return err
		}
		return c.handleMode(msg, target, modes, msg.Params[2:])
	case rplChannelmodeis:
		var channel, modes string
		if err := msg.ParseParams(nil, &channel, &modes); err != nil {
			return err
		}
		var params []string
		for _, p := range msg.Params[3:] {
			params = append(params, strings.Fields(p)...)
		}
		return c.handleMode(msg, channel, modes, params)
	case rplUmodeis:
		var modes string
		if err := msg.ParseParams(nil, &modes); err != nil {
			return err
		}
		return c.handleMode(msg, c.nick, modes, msg.Params[2:])
	case rplCreationTime:
		var channel, created string
		if err := msg.ParseParams(nil, &channel, &created); err != nil {
			return err
		}
		ch := c.channelByName(channel)
		if ch == nil {
			return errUnknownEntity
		}
		t, err := strconv.ParseInt(created, 10, 64)
		if err != nil {
			return err
		}
		ch.Created = time.Unix(t, 0)
	case "TOPIC":
		var channel, topic string
		if err := msg.ParseParams(&channel, &topic); err != nil {
			return err
		}
		ch := c.channelByName(channel)
		if ch == nil {
			return errUnknownEntity
		}
		ch.Topic = topic
		ch.TopicWho = msg.Prefix.Copy()
		ch.TopicTime = msg.TimeOrNow()
		c.emit(TopicChangedEvent{Message: msg, Channel: ch.clone()})
	case rplNotopic:
		var channel string
		if err := msg.ParseParams(nil, &channel); err != nil {
			return err
		}
		ch := c.channelByName(channel)
		if ch == nil {
			return errUnknownEntity
		}
		ch.Topic = ""
		ch.TopicWho = nil
		ch.TopicTime = time.Time{}
		c.emit(TopicChangedEvent{Message: msg, Channel: ch.clone()})
	case rplTopic:
		var channel, topic string
		if err := msg.ParseParams(nil, &channel, &topic); err != nil {
			return err
		}
		ch := c.channelByName(channel)
		if ch == nil {
			return errUnknownEntity
		}
		ch.Topic = topic
		c.emit(TopicChangedEvent{Message: msg, Channel: ch.clone()})
	case rplTopicwhotime:
		var channel, who, at string
		if err := msg.ParseParams(nil, &channel, &who, &at); err != nil {
			return err
		}
		ch := c.channelByName(channel)
		if ch == nil {
			return errUnknownEntity
		}
		// ignore the error, we still have who
		t, _ := strconv.ParseInt(at, 10, 64)
		ch.TopicWho = ParsePrefix(who)
		ch.TopicTime = time.Unix(t, 0)
		c.emit(TopicChangedEvent{Message: msg, Channel: ch.clone()})
	case "PRIVMSG", "NOTICE":
		return c.handleMessageCommand(msg)
	case "INVITE":
		var nick, channel string
		if err := msg.ParseParams(&nick, &channel); err != nil {
			return err
		}
		ch := c.channelByName(channel)
		if ch == nil {
			ch = newChannel(0, channel)
		}
		c.emit(InvitedIntoChannelEvent{
			Message: msg,
			Inviter: c.sourceUser(msg),
			Invitee: nick,
			Channel: ch.clone(),
		})
	case rplNamreply:
		return c.handleNames(msg)
	case rplEndofnames:
		var channel string
		if err := msg.ParseParams(nil, &channel); err != nil {
			return err
		}
		ch := c.channelByName(channel)
		if ch == nil {
			return errUnknownEntity
		}
		ch.UserlistComplete = true
		var users []*User
		for _, id := range ch.updated {
			if u, ok := c.users[id]; ok && ch.HasMember(id) {
				users = append(users, u.clone())
			}
		}
		ch.updated = nil
		// members dropped by the listing are gone for good
		for _, u := range c.users {
			c.cleanUser(u)
		}
		c.emit(UserlistUpdatedEvent{Message: msg, Channel: ch.clone(), Users: users})
	case rplWhoreply:
		return c.handleWho(msg)
	case rplEndofwho:
		// do nothing
	case rplAway:
		var nick, reason string
		if err := msg.ParseParams(nil, &nick, &reason); err != nil {
			return err
		}
		u := c.userByNick(nick)
		if u == nil {
			return errUnknownEntity
		}
		u.Away = true
		u.AwayMessage = reason
	case rplUnaway, rplNowaway:
		u := c.userByNick(c.nick)
		if u == nil {
			return errUnknownEntity
		}
		u.Away = msg.Command == rplNowaway
		if !u.Away {
			u.AwayMessage = ""
		}
		c.emit(UserAwayStatusChangedEvent{Message: msg, User: u.clone()})
	case "ERROR":
		c.log.WithField("reason", msg.Body(0)).Warn("server error")
	default:
		c.handleCapCommand(msg)
	}
	return nil
}

// handleCapCommand interprets commands that the server only sends once a
// capability is enabled. It reports whether msg was handled.
func (c *Conn) handleCapCommand(msg Message) bool {
	switch msg.Command {
	case "AWAY":
		if !c.caps.Has("away-notify") {
			return false
		}
		u := c.sourceUserRef(msg)
		if u == nil {
			return false
		}
		u.Away = len(msg.Params) > 0
		u.AwayMessage = msg.Body(0)
		c.emit(UserAwayStatusChangedEvent{Message: msg, User: u.clone()})
		return true
	}
	return false
}

// sourceUserRef returns the tracked user that sent msg, or nil.
func (c *Conn) sourceUserRef(msg Message) *User {
	if msg.Prefix == nil {
		return nil
	}
	return c.userByNick(msg.Prefix.Name)
}

// sourceUser returns a copy of the user that sent msg. Untracked senders
// get a user built from the prefix, with a zero ID.
func (c *Conn) sourceUser(msg Message) *User {
	if u := c.sourceUserRef(msg); u != nil {
		return u.clone()
	}
	if msg.Prefix == nil {
		return nil
	}
	return &User{
		Nick:     msg.Prefix.Name,
		Username: msg.Prefix.User,
		Hostname: msg.Prefix.Host,
	}
}

func (c *Conn) handleJoin(msg Message) error {
	var channel string
	if err := msg.ParseParams(&channel); err != nil {
		return err
	}
	if msg.Prefix == nil {
		return errUnknownEntity
	}

	u := c.findOrAddUser(msg.Prefix)
	if len(msg.Params) > 2 && c.caps.Has("extended-join") {
		u.Gecos = msg.Params[2]
	}

	ch := c.channelByName(channel)
	if ch == nil {
		ch = c.addChannel(channel)
		c.enqueue(NewMessage("WHO", ch.Name))
		c.enqueue(NewMessage("MODE", ch.Name))
	}
	if !ch.HasMember(u.ID) {
		ch.Members[u.ID] = ""
	}

	c.emit(ChannelJoinedEvent{
		Message: msg,
		User:    u.clone(),
		Channel: ch.clone(),
		Self:    c.isMe(u.Nick),
	})
	return nil
}

func (c *Conn) handlePart(msg Message) error {
	var channel string
	if err := msg.ParseParams(&channel); err != nil {
		return err
	}
	ch := c.channelByName(channel)
	u := c.sourceUserRef(msg)
	if ch == nil || u == nil || !ch.HasMember(u.ID) {
		return errUnknownEntity
	}

	ev := ChannelPartedEvent{
		Message: msg,
		User:    u.clone(),
		Reason:  msg.Body(1),
		Self:    c.isMe(u.Nick),
	}
	if ev.Self {
		c.removeChannel(ch)
	} else {
		delete(ch.Members, u.ID)
		c.cleanUser(u)
	}
	ev.Channel = ch.clone()
	c.emit(ev)
	return nil
}

func (c *Conn) handleKick(msg Message) error {
	var channel, nick string
	if err := msg.ParseParams(&channel, &nick); err != nil {
		return err
	}
	ch := c.channelByName(channel)
	if ch == nil {
		return errUnknownEntity
	}
	u := c.userByNick(nick)
	if u == nil || !ch.HasMember(u.ID) {
		return errUnknownEntity
	}

	ev := UserKickedEvent{
		Message: msg,
		User:    u.clone(),
		Kicker:  msg.Prefix.Copy(),
		Reason:  msg.Body(2),
		Self:    c.isMe(u.Nick),
	}
	if ev.Self {
		c.removeChannel(ch)
	} else {
		delete(ch.Members, u.ID)
		c.cleanUser(u)
	}
	ev.Channel = ch.clone()
	c.emit(ev)
	return nil
}

func (c *Conn) handleQuit(msg Message) error {
	u := c.sourceUserRef(msg)
	if u == nil || c.isMe(u.Nick) {
		return errUnknownEntity
	}

	var channels []string
	for _, ch := range c.channels {
		if ch.HasMember(u.ID) {
			channels = append(channels, ch.Name)
			delete(ch.Members, u.ID)
		}
	}
	sort.Strings(channels)
	c.removeUser(u)
	c.emit(UserQuitEvent{
		Message:  msg,
		User:     u.clone(),
		Channels: channels,
		Reason:   msg.Body(0),
	})
	return nil
}

func (c *Conn) handleNick(msg Message) error {
	var nick string
	if err := msg.ParseParams(&nick); err != nil {
		return err
	}
	u := c.sourceUserRef(msg)
	if u == nil {
		return errUnknownEntity
	}

	former := u.Nick
	self := c.isMe(former)
	c.renameUser(u, nick)
	if self {
		c.nick = nick
	}
	c.emit(NicknameChangedEvent{
		Message:    msg,
		User:       u.clone(),
		FormerNick: former,
		Self:       self,
	})
	return nil
}

func (c *Conn) handleMode(msg Message, target, modes string, params []string) error {
	if c.features.IsChannel(target) {
		ch := c.channelByName(target)
		if ch == nil {
			return errUnknownEntity
		}
		changes, err := ParseModeString(modes, params, c.features.ChanModes, c.features.StatusModes)
		ApplyModes(changes, ch.Modes)
		ApplyStatus(changes, ch.Members, func(nick string) (UserID, bool) {
			u := c.userByNick(nick)
			if u == nil {
				return 0, false
			}
			return u.ID, true
		}, c.features.StatusModes)
		c.emit(ModesChangedEvent{
			Message: msg,
			Channel: ch.clone(),
			Modes:   changes,
			Partial: err != nil,
		})
		return nil
	}

	if !c.isMe(target) {
		return errUnknownEntity
	}
	changes, err := ParseModeString(modes, params, c.features.UserModes, "")
	ApplyModes(changes, c.userModes)
	if u := c.userByNick(c.nick); u != nil {
		u.Oper = hasMode(c.userModes, 'o')
	}
	c.emit(ModesChangedEvent{
		Message: msg,
		Modes:   changes,
		Partial: err != nil,
	})
	return nil
}

func hasMode(values map[byte]ModeValue, mode byte) bool {
	_, ok := values[mode]
	return ok
}

func (c *Conn) handleMessageCommand(msg Message) error {
	var target string
	if err := msg.ParseParams(&target, nil); err != nil {
		return err
	}
	content := msg.Body(1)

	ev := MessageCommandEvent{
		Message:   msg,
		Command:   msg.Command,
		User:      c.sourceUser(msg),
		Target:    target,
		Content:   content,
		PlainText: ircfmt.Strip(content),
		URLs:      urlRegexp.FindAllString(content, -1),
		Time:      msg.TimeOrNow(),
	}

	channel := strings.TrimLeft(target, c.features.StatusMsg)
	if c.features.IsChannel(channel) {
		ch := c.channelByName(channel)
		if ch == nil {
			ch = newChannel(0, channel)
		}
		ev.Channel = ch.clone()
	}
	c.emit(ev)
	return nil
}

func (c *Conn) handleNames(msg Message) error {
	var channel, names string
	if err := msg.ParseParams(nil, nil, &channel, &names); err != nil {
		return err
	}
	ch := c.channelByName(channel)
	if ch == nil {
		return errUnknownEntity
	}

	if ch.UserlistComplete {
		ch.UserlistComplete = false
		ch.Members = map[UserID]string{}
		ch.updated = nil
	}

	for _, name := range strings.Fields(names) {
		status, rest := c.features.SplitStatus(name)
		p := ParsePrefix(rest)
		if p == nil {
			continue
		}
		u := c.findOrAddUser(p)
		if _, ok := ch.Members[u.ID]; !ok {
			ch.updated = append(ch.updated, u.ID)
		}
		ch.Members[u.ID] = status
	}
	return nil
}

func (c *Conn) handleWho(msg Message) error {
	var channel, username, host, server, nick, flags, trailing string
	if err := msg.ParseParams(nil, &channel, &username, &host, &server, &nick, &flags, &trailing); err != nil {
		return err
	}
	u := c.userByNick(nick)
	if u == nil {
		return errUnknownEntity
	}

	u.Username = username
	u.Hostname = host
	u.Server = server
	hops, gecos, _ := strings.Cut(trailing, " ")
	if n, err := strconv.Atoi(hops); err == nil {
		u.Hops = n
	}
	u.Gecos = gecos

	rest := flags
	if rest != "" {
		switch rest[0] {
		case 'G':
			u.Away = true
			rest = rest[1:]
		case 'H':
			u.Away = false
			u.AwayMessage = ""
			rest = rest[1:]
		}
	}
	if strings.HasPrefix(rest, "*") {
		u.Oper = true
		rest = rest[1:]
	} else {
		u.Oper = false
	}

	ev := UserlistUpdatedEvent{Message: msg, Users: []*User{u.clone()}}
	if ch := c.channelByName(channel); ch != nil {
		if _, ok := ch.Members[u.ID]; ok {
			status, _ := c.features.SplitStatus(rest)
			ch.Members[u.ID] = status
		}
		ev.Channel = ch.clone()
	}
	c.emit(ev)
	return nil
}
