// Package events is the publish/subscribe surface through which a
// connection reports what happens on it.
package events

import (
	"sync/atomic"

	"github.com/cenkalti/hub"
)

// Kind identifies a type of event.
type Kind = hub.Kind

// Event is implemented by every published event.
type Event = hub.Event

const (
	MessageReceiving Kind = iota + 1 // cancelable, before a received line is dispatched
	MessageSending                   // cancelable, before a line is written
	MessageReceived
	MessageSent
	MessageCommandReceived // PRIVMSG and NOTICE
	ChannelJoined
	ChannelParted
	NicknameChanged
	TopicChanged
	UserlistUpdated
	ModesChanged
	InvitedIntoChannel
	UserQuit
	UserKicked
	UserAwayStatusChanged
	ConnectionLost
)

var kindNames = map[Kind]string{
	MessageReceiving:       "message-receiving",
	MessageSending:         "message-sending",
	MessageReceived:        "message-received",
	MessageSent:            "message-sent",
	MessageCommandReceived: "message-command-received",
	ChannelJoined:          "channel-joined",
	ChannelParted:          "channel-parted",
	NicknameChanged:        "nickname-changed",
	TopicChanged:           "topic-changed",
	UserlistUpdated:        "userlist-updated",
	ModesChanged:           "modes-changed",
	InvitedIntoChannel:     "invited-into-channel",
	UserQuit:               "user-quit",
	UserKicked:             "user-kicked",
	UserAwayStatusChanged:  "user-away-status-changed",
	ConnectionLost:         "connection-lost",
}

// KindName returns a human readable name for k.
func KindName(k Kind) string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Kinds returns every kind published by a connection.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames))
	for k := MessageReceiving; k <= ConnectionLost; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Cancelable is implemented by events whose processing subscribers can veto.
type Cancelable interface {
	Event
	Cancel()
	Canceled() bool
}

// Veto is embedded in cancelable events.
type Veto struct {
	canceled atomic.Bool
}

// Cancel vetoes the processing of the event.
func (v *Veto) Cancel() {
	v.canceled.Store(true)
}

// Canceled reports whether a subscriber called Cancel.
func (v *Veto) Canceled() bool {
	return v.canceled.Load()
}

// Bus fans events out to subscribers. Handlers run synchronously in the
// publishing goroutine. A handler must not subscribe or unsubscribe while it
// runs.
//
// The zero value is ready to use.
type Bus struct {
	h hub.Hub
}

// Subscribe registers f for events of kind k.
func (b *Bus) Subscribe(k Kind, f func(Event)) (cancel func()) {
	return b.h.Subscribe(k, f)
}

// SubscribeAll registers f for every kind of event.
func (b *Bus) SubscribeAll(f func(Event)) (cancel func()) {
	var cancels []func()
	for _, k := range Kinds() {
		cancels = append(cancels, b.h.Subscribe(k, f))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Publish calls the handlers subscribed to the kind of e.
func (b *Bus) Publish(e Event) {
	b.h.Publish(e)
}
