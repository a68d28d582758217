package irc

import (
	"time"

	"git.sr.ht/~delthas/ircmodel/events"
)

// MessageReceivingEvent is published before a received message is
// dispatched. Canceling it drops the message.
type MessageReceivingEvent struct {
	events.Veto
	Message Message
}

func (*MessageReceivingEvent) Kind() events.Kind { return events.MessageReceiving }

// MessageSendingEvent is published before a message is written. Canceling
// it drops the message.
type MessageSendingEvent struct {
	events.Veto
	Message Message
}

func (*MessageSendingEvent) Kind() events.Kind { return events.MessageSending }

type MessageReceivedEvent struct {
	Message Message
}

func (MessageReceivedEvent) Kind() events.Kind { return events.MessageReceived }

type MessageSentEvent struct {
	Message Message
}

func (MessageSentEvent) Kind() events.Kind { return events.MessageSent }

// MessageCommandEvent is a PRIVMSG or NOTICE.
type MessageCommandEvent struct {
	Message Message
	Command string
	User    *User    // the sender; not tracked if it shares no channel with us.
	Channel *Channel // nil for a private message.
	Target  string   // the target as sent, including STATUSMSG symbols.
	Content string   // every parameter after the target, joined by spaces.

	PlainText string   // Content without formatting codes.
	URLs      []string // links found in Content.
	Time      time.Time
}

func (MessageCommandEvent) Kind() events.Kind { return events.MessageCommandReceived }

// ChannelJoinedEvent is published when a user, maybe us, joins a channel.
type ChannelJoinedEvent struct {
	Message Message
	User    *User
	Channel *Channel
	Self    bool
}

func (ChannelJoinedEvent) Kind() events.Kind { return events.ChannelJoined }

type ChannelPartedEvent struct {
	Message Message
	User    *User
	Channel *Channel
	Reason  string
	Self    bool
}

func (ChannelPartedEvent) Kind() events.Kind { return events.ChannelParted }

type NicknameChangedEvent struct {
	Message    Message
	User       *User
	FormerNick string
	Self       bool
}

func (NicknameChangedEvent) Kind() events.Kind { return events.NicknameChanged }

// TopicChangedEvent is published on TOPIC and on the topic replies
// RPL_NOTOPIC, RPL_TOPIC and RPL_TOPICWHOTIME.
type TopicChangedEvent struct {
	Message Message
	Channel *Channel
}

func (TopicChangedEvent) Kind() events.Kind { return events.TopicChanged }

// UserlistUpdatedEvent lists the users whose membership or WHO information
// was refreshed.
type UserlistUpdatedEvent struct {
	Message Message
	Channel *Channel // nil for a WHO reply about no specific channel.
	Users   []*User
}

func (UserlistUpdatedEvent) Kind() events.Kind { return events.UserlistUpdated }

// ModesChangedEvent is published for channel modes (Channel is set) and for
// our own user modes (Channel is nil).
type ModesChangedEvent struct {
	Message Message
	Channel *Channel
	Modes   ModeString
	Partial bool // the mode string lacked parameters, trailing changes were dropped.
}

func (ModesChangedEvent) Kind() events.Kind { return events.ModesChanged }

type InvitedIntoChannelEvent struct {
	Message Message
	Inviter *User
	Invitee string
	Channel *Channel
}

func (InvitedIntoChannelEvent) Kind() events.Kind { return events.InvitedIntoChannel }

type UserQuitEvent struct {
	Message  Message
	User     *User
	Channels []string
	Reason   string
}

func (UserQuitEvent) Kind() events.Kind { return events.UserQuit }

type UserKickedEvent struct {
	Message Message
	User    *User // the kicked user.
	Kicker  *Prefix
	Channel *Channel
	Reason  string
	Self    bool
}

func (UserKickedEvent) Kind() events.Kind { return events.UserKicked }

type UserAwayStatusChangedEvent struct {
	Message Message
	User    *User
}

func (UserAwayStatusChangedEvent) Kind() events.Kind { return events.UserAwayStatusChanged }

// ConnectionLostEvent is published once, when the transport fails.
type ConnectionLostEvent struct {
	Err error
}

func (ConnectionLostEvent) Kind() events.Kind { return events.ConnectionLost }
