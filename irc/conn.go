package irc

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"git.sr.ht/~delthas/ircmodel/events"
)

// ErrConnectionLost is matched by the errors returned when the transport
// fails to read or write.
var ErrConnectionLost = errors.New("connection lost")

// TransportError wraps a read or write failure of the transport.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return "connection lost: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrConnectionLost
}

const chanCapacity = 64

// ConnParams defines how to register to an IRC server.
type ConnParams struct {
	Nickname string
	Username string
	RealName string
	Password string

	// Capabilities requested during registration. Nil means
	// DefaultCapabilities.
	Capabilities []string

	Logger logrus.FieldLogger // nil discards logs.
	Bus    *events.Bus        // nil creates a bus owned by the Conn.
}

// Conn is the state of one connection to an IRC server: the channels and
// users we know of, the server features and the negotiated capabilities.
//
// Received lines go through Receive (or Run), commands go out through Send
// and the builders in commands.go. All of them are safe for concurrent use.
type Conn struct {
	t      Transport
	bus    *events.Bus
	log    logrus.FieldLogger
	params ConnParams

	mu        sync.Mutex // guards everything below
	nick      string
	loggedIn  bool
	lastID    uint64
	users     map[UserID]*User
	nicks     map[string]UserID
	channels  map[ChannelID]*Channel
	chanNames map[string]ChannelID
	userModes map[byte]ModeValue
	features  *ISupport
	caps      *Caps
	queue     []Message      // sent once mu is released
	fired     []events.Event // published once mu is released

	wmu sync.Mutex // serializes writes
}

// NewConn returns a Conn writing to t. Nothing is sent until Register.
func NewConn(t Transport, params ConnParams) *Conn {
	if params.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		params.Logger = l
	}
	if params.Bus == nil {
		params.Bus = &events.Bus{}
	}
	if params.Capabilities == nil {
		params.Capabilities = DefaultCapabilities
	}
	if params.Username == "" {
		params.Username = params.Nickname
	}
	if params.RealName == "" {
		params.RealName = params.Nickname
	}
	return &Conn{
		t:         t,
		bus:       params.Bus,
		log:       params.Logger,
		params:    params,
		nick:      params.Nickname,
		users:     map[UserID]*User{},
		nicks:     map[string]UserID{},
		channels:  map[ChannelID]*Channel{},
		chanNames: map[string]ChannelID{},
		userModes: map[byte]ModeValue{},
		features:  NewISupport(),
		caps:      newCaps(params.Capabilities),
	}
}

// Events returns the bus on which the connection publishes its events.
func (c *Conn) Events() *events.Bus {
	return c.bus
}

// Register starts capability negotiation and registration.
func (c *Conn) Register() error {
	c.mu.Lock()
	c.caps.start(c.enqueue)
	if c.params.Password != "" {
		c.enqueue(NewMessage("PASS", c.params.Password))
	}
	c.enqueue(NewMessage("NICK", c.params.Nickname))
	c.enqueue(NewMessage("USER", c.params.Username, "0", "*", c.params.RealName))
	return c.unlockAndFlush()
}

// Receive parses and dispatches one line. It returns an error wrapping
// ErrMalformedLine if the line cannot be parsed, and a TransportError if a
// reply could not be written.
func (c *Conn) Receive(line string) error {
	msg, err := ParseMessage(line)
	if err != nil {
		c.log.WithError(err).WithField("line", line).Debug("dropping line")
		return err
	}
	return c.ReceiveMessage(msg)
}

// ReceiveMessage dispatches an already parsed message.
func (c *Conn) ReceiveMessage(msg Message) error {
	pre := &MessageReceivingEvent{Message: msg}
	c.bus.Publish(pre)
	if pre.Canceled() {
		return nil
	}

	c.mu.Lock()
	c.dispatch(msg)
	if err := c.unlockAndFlush(); err != nil {
		return err
	}

	c.bus.Publish(MessageReceivedEvent{Message: msg})
	return nil
}

// Send writes a message, unless a MessageSending subscriber cancels it. It
// returns an error wrapping ErrInvalidParam, and writes nothing, if a
// parameter would break the line apart.
func (c *Conn) Send(msg Message) error {
	return c.sendBatch([]Message{msg})
}

// sendBatch writes msgs in order, with no line from another caller in
// between. MessageSending is published for every message before the first
// write, MessageSent after the last one.
func (c *Conn) sendBatch(msgs []Message) error {
	for i := range msgs {
		if err := msgs[i].Validate(); err != nil {
			return err
		}
	}

	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		pre := &MessageSendingEvent{Message: msg}
		c.bus.Publish(pre)
		if !pre.Canceled() {
			out = append(out, msg)
		}
	}

	var err error
	n := 0
	c.wmu.Lock()
	for _, msg := range out {
		if err = c.t.WriteLine(msg.String()); err != nil {
			err = &TransportError{Op: "write", Err: err}
			break
		}
		n++
	}
	c.wmu.Unlock()

	for _, msg := range out[:n] {
		c.bus.Publish(MessageSentEvent{Message: msg})
	}
	return err
}

// enqueue queues a message to be sent once c.mu is released. Callers hold
// c.mu.
func (c *Conn) enqueue(msg Message) {
	c.queue = append(c.queue, msg)
}

// emit queues an event to be published once c.mu is released. Callers hold
// c.mu.
func (c *Conn) emit(ev events.Event) {
	c.fired = append(c.fired, ev)
}

// unlockAndFlush releases c.mu, then sends the queued messages and
// publishes the queued events, in order.
func (c *Conn) unlockAndFlush() error {
	queue, fired := c.queue, c.fired
	c.queue, c.fired = nil, nil
	c.mu.Unlock()

	var err error
	if len(queue) > 0 {
		err = c.sendBatch(queue)
	}
	for _, ev := range fired {
		c.bus.Publish(ev)
	}
	return err
}

// Run reads lines from the transport and dispatches them until the
// transport fails or ctx is done. A transport failure is returned as a
// TransportError, after a ConnectionLostEvent is published. Run never
// reconnects.
func (c *Conn) Run(ctx context.Context) error {
	lines := make(chan string, chanCapacity)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		for {
			line, err := c.t.ReadLine()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.t.Close()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				err := <-readErr
				if err == nil {
					err = io.EOF
				}
				return c.lost(&TransportError{Op: "read", Err: err})
			}
			if err := c.Receive(line); err != nil {
				if errors.Is(err, ErrConnectionLost) {
					c.t.Close()
					return c.lost(err)
				}
			}
		}
	}
}

func (c *Conn) lost(err error) error {
	c.log.WithError(err).Warn("connection lost")
	c.bus.Publish(ConnectionLostEvent{Err: err})
	return err
}

// Close closes the transport.
func (c *Conn) Close() error {
	return c.t.Close()
}

// Nick returns our current nickname.
func (c *Conn) Nick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nick
}

// IsLoggedIn reports whether registration completed (RPL_WELCOME).
func (c *Conn) IsLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// IsChannel reports whether name starts with a channel type character.
func (c *Conn) IsChannel(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features.IsChannel(name)
}

// Casemap folds name with the server casemapping.
func (c *Conn) Casemap(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features.Casemap(name)
}

// Features returns a copy of the server features.
func (c *Conn) Features() *ISupport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features.clone()
}

// Capabilities returns a copy of the capability negotiation state.
func (c *Conn) Capabilities() *Caps {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps.clone()
}

// HasCapability reports whether the capability was acknowledged.
func (c *Conn) HasCapability(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps.Has(name)
}

// UserModes returns a copy of our user modes.
func (c *Conn) UserModes() map[byte]ModeValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make(map[byte]ModeValue, len(c.userModes))
	for k, v := range c.userModes {
		res[k] = v.clone()
	}
	return res
}

// User returns a copy of the user with the given nickname.
func (c *Conn) User(nick string) (*User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := c.userByNick(nick)
	return u.clone(), u != nil
}

// UserByID returns a copy of the user with the given ID.
func (c *Conn) UserByID(id UserID) (*User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[id]
	return u.clone(), ok
}

// Users returns a copy of every known user, sorted by nickname.
func (c *Conn) Users() []*User {
	c.mu.Lock()
	defer c.mu.Unlock()
	users := make([]*User, 0, len(c.users))
	for _, u := range c.users {
		users = append(users, u.clone())
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Nick < users[j].Nick
	})
	return users
}

// Channel returns a copy of the joined channel with the given name.
func (c *Conn) Channel(name string) (*Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.channelByName(name)
	return ch.clone(), ch != nil
}

// Channels returns a copy of every joined channel, sorted by name.
func (c *Conn) Channels() []*Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	channels := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		channels = append(channels, ch.clone())
	}
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].Name < channels[j].Name
	})
	return channels
}

// Members returns the members of a joined channel, highest rank first.
func (c *Conn) Members(channel string) []Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := c.channelByName(channel)
	if ch == nil {
		return nil
	}
	return c.members(ch)
}
