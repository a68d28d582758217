package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type plain struct{ kind Kind }

func (e plain) Kind() Kind { return e.kind }

type vetoable struct {
	Veto
}

func (*vetoable) Kind() Kind { return MessageSending }

func TestBus(t *testing.T) {
	var b Bus
	var got []Kind
	cancel := b.Subscribe(ChannelJoined, func(e Event) {
		got = append(got, e.Kind())
	})

	b.Publish(plain{ChannelJoined})
	b.Publish(plain{ChannelParted})
	assert.Equal(t, []Kind{ChannelJoined}, got)

	cancel()
	b.Publish(plain{ChannelJoined})
	assert.Len(t, got, 1)
}

func TestBusSubscribeAll(t *testing.T) {
	var b Bus
	n := 0
	cancel := b.SubscribeAll(func(Event) { n++ })
	for _, k := range Kinds() {
		b.Publish(plain{k})
	}
	assert.Equal(t, len(Kinds()), n)

	cancel()
	b.Publish(plain{UserQuit})
	assert.Equal(t, len(Kinds()), n)
}

func TestVeto(t *testing.T) {
	var b Bus
	b.Subscribe(MessageSending, func(e Event) {
		e.(Cancelable).Cancel()
	})
	ev := &vetoable{}
	assert.False(t, ev.Canceled())
	b.Publish(ev)
	assert.True(t, ev.Canceled())
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "connection-lost", KindName(ConnectionLost))
	assert.Equal(t, "unknown", KindName(0))
	for _, k := range Kinds() {
		assert.NotEqual(t, "unknown", KindName(k))
	}
	assert.Len(t, Kinds(), 16)
}
