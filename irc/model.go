package irc

import (
	"sort"
	"time"
)

// UserID identifies a User for the lifetime of a Conn. Nicknames change,
// IDs do not.
type UserID uint64

// ChannelID identifies a Channel for the lifetime of a Conn.
type ChannelID uint64

// User is a known IRC user.
type User struct {
	ID          UserID
	Nick        string
	Username    string
	Hostname    string
	Gecos       string
	Server      string
	Hops        int
	Oper        bool
	Away        bool
	AwayMessage string
}

// Prefix returns the hostmask of the user.
func (u *User) Prefix() *Prefix {
	return &Prefix{
		Name: u.Nick,
		User: u.Username,
		Host: u.Hostname,
	}
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	res := &User{}
	*res = *u
	return res
}

// Channel is a channel, either joined or only referenced by a message.
type Channel struct {
	ID        ChannelID
	Name      string
	Members   map[UserID]string // status mode letters of each member, highest rank first.
	Modes     map[byte]ModeValue
	Topic     string
	TopicWho  *Prefix
	TopicTime time.Time
	Created   time.Time

	// UserlistComplete is false while a NAMES listing is being received.
	UserlistComplete bool

	updated []UserID // users seen during the current NAMES listing.
}

func newChannel(id ChannelID, name string) *Channel {
	return &Channel{
		ID:               id,
		Name:             name,
		Members:          map[UserID]string{},
		Modes:            map[byte]ModeValue{},
		UserlistComplete: true,
	}
}

func (ch *Channel) clone() *Channel {
	if ch == nil {
		return nil
	}
	res := &Channel{}
	*res = *ch
	res.Members = make(map[UserID]string, len(ch.Members))
	for k, v := range ch.Members {
		res.Members[k] = v
	}
	res.Modes = make(map[byte]ModeValue, len(ch.Modes))
	for k, v := range ch.Modes {
		res.Modes[k] = v.clone()
	}
	res.TopicWho = ch.TopicWho.Copy()
	res.updated = nil
	return res
}

// Mode returns the value of a channel mode.
func (ch *Channel) Mode(mode byte) (ModeValue, bool) {
	v, ok := ch.Modes[mode]
	return v, ok
}

// HasMember reports whether the user is in the channel.
func (ch *Channel) HasMember(id UserID) bool {
	_, ok := ch.Members[id]
	return ok
}

// ListMatches returns the masks of the list mode that match the user, for
// example the bans (mode b) that apply to them.
func (ch *Channel) ListMatches(mode byte, u *User, casemap func(string) string) []string {
	v, ok := ch.Modes[mode]
	if !ok || v.Kind != ValueList {
		return nil
	}
	var masks []string
	p := u.Prefix()
	for _, mask := range v.List {
		if p.Match(mask, casemap) {
			masks = append(masks, mask)
		}
	}
	return masks
}

// Member is a user along with their status in a channel.
type Member struct {
	User   *User
	Status string
}

// newUser adds a user to the arena. Callers hold c.mu.
func (c *Conn) newUser(p *Prefix) *User {
	c.lastID++
	u := &User{
		ID:       UserID(c.lastID),
		Nick:     p.Name,
		Username: p.User,
		Hostname: p.Host,
	}
	c.users[u.ID] = u
	c.nicks[c.features.Casemap(u.Nick)] = u.ID
	return u
}

func (c *Conn) userByNick(nick string) *User {
	id, ok := c.nicks[c.features.Casemap(nick)]
	if !ok {
		return nil
	}
	return c.users[id]
}

// findOrAddUser returns the user named by the prefix, creating it if
// needed, and fills in its user and host when the prefix has them.
func (c *Conn) findOrAddUser(p *Prefix) *User {
	u := c.userByNick(p.Name)
	if u == nil {
		return c.newUser(p)
	}
	if p.User != "" {
		u.Username = p.User
	}
	if p.Host != "" {
		u.Hostname = p.Host
	}
	return u
}

func (c *Conn) renameUser(u *User, nick string) {
	delete(c.nicks, c.features.Casemap(u.Nick))
	u.Nick = nick
	c.nicks[c.features.Casemap(nick)] = u.ID
}

func (c *Conn) removeUser(u *User) {
	delete(c.users, u.ID)
	if id, ok := c.nicks[c.features.Casemap(u.Nick)]; ok && id == u.ID {
		delete(c.nicks, c.features.Casemap(u.Nick))
	}
}

// cleanUser drops a user that no longer shares a channel with us.
func (c *Conn) cleanUser(u *User) {
	if c.isMe(u.Nick) {
		return
	}
	for _, ch := range c.channels {
		if ch.HasMember(u.ID) {
			return
		}
	}
	c.removeUser(u)
}

func (c *Conn) isMe(nick string) bool {
	return c.features.Casemap(nick) == c.features.Casemap(c.nick)
}

func (c *Conn) addChannel(name string) *Channel {
	c.lastID++
	ch := newChannel(ChannelID(c.lastID), name)
	c.channels[ch.ID] = ch
	c.chanNames[c.features.Casemap(name)] = ch.ID
	return ch
}

func (c *Conn) channelByName(name string) *Channel {
	id, ok := c.chanNames[c.features.Casemap(name)]
	if !ok {
		return nil
	}
	return c.channels[id]
}

func (c *Conn) removeChannel(ch *Channel) {
	delete(c.channels, ch.ID)
	delete(c.chanNames, c.features.Casemap(ch.Name))
	for id := range ch.Members {
		if u, ok := c.users[id]; ok {
			c.cleanUser(u)
		}
	}
}

// reindex rebuilds the name indexes, after the casemapping changed.
func (c *Conn) reindex() {
	c.nicks = make(map[string]UserID, len(c.users))
	for id, u := range c.users {
		c.nicks[c.features.Casemap(u.Nick)] = id
	}
	c.chanNames = make(map[string]ChannelID, len(c.channels))
	for id, ch := range c.channels {
		c.chanNames[c.features.Casemap(ch.Name)] = id
	}
}

// members returns the members of a channel sorted by rank, then nickname.
func (c *Conn) members(ch *Channel) []Member {
	members := make([]Member, 0, len(ch.Members))
	for id, status := range ch.Members {
		u, ok := c.users[id]
		if !ok {
			continue
		}
		members = append(members, Member{
			User:   u.clone(),
			Status: status,
		})
	}
	sort.Slice(members, func(i, j int) bool {
		ri, rj := len(c.features.StatusModes), len(c.features.StatusModes)
		if members[i].Status != "" {
			ri = rank(c.features.StatusModes, members[i].Status[0])
		}
		if members[j].Status != "" {
			rj = rank(c.features.StatusModes, members[j].Status[0])
		}
		if ri != rj {
			return ri < rj
		}
		return c.features.Casemap(members[i].User.Nick) < c.features.Casemap(members[j].User.Nick)
	})
	return members
}
