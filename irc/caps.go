package irc

import (
	"sort"
	"strings"
)

// DefaultCapabilities is the set of capabilities requested when
// ConnParams.Capabilities is nil.
var DefaultCapabilities = []string{
	"away-notify",
	"multi-prefix",
	"userhost-in-names",
}

// CapState is the state of capability negotiation.
type CapState int

const (
	CapIdle        CapState = iota // nothing sent yet
	CapListing                     // CAP LS sent
	CapNegotiating                 // CAP REQ sent
	CapDone                        // CAP END sent
)

func (s CapState) String() string {
	switch s {
	case CapIdle:
		return "idle"
	case CapListing:
		return "listing"
	case CapNegotiating:
		return "negotiating"
	case CapDone:
		return "done"
	}
	return "unknown"
}

// Cap is one item of a CAP reply payload.
type Cap struct {
	Name   string
	Value  string
	Enable bool
}

// ParseCaps parses the space-separated payload of a CAP reply.
func ParseCaps(caps string) (diff []Cap) {
	for _, c := range strings.Fields(caps) {
		enable := !strings.HasPrefix(c, "-")
		if !enable {
			c = c[1:]
		}
		name, value, _ := strings.Cut(c, "=")
		diff = append(diff, Cap{
			Name:   name,
			Value:  value,
			Enable: enable,
		})
	}
	return
}

// Caps is the IRCv3 capability negotiation state of a connection.
//
// Requested only shrinks during a negotiation round: CAP LS intersects it
// with the available set, CAP ACK and CAP NAK remove entries from it.
type Caps struct {
	State     CapState
	Available map[string]string   // name to value, from CAP LS and CAP NEW.
	Enabled   map[string]struct{} // acknowledged by the server.
	Requested map[string]struct{} // wanted and not answered yet.

	wanted  []string
	pending []string // multiline CAP LS or CAP LIST items.
}

func newCaps(wanted []string) *Caps {
	c := &Caps{
		Available: map[string]string{},
		Enabled:   map[string]struct{}{},
		Requested: map[string]struct{}{},
		wanted:    append([]string(nil), wanted...),
	}
	for _, name := range wanted {
		c.Requested[name] = struct{}{}
	}
	return c
}

// Has reports whether the capability is enabled.
func (c *Caps) Has(name string) bool {
	_, ok := c.Enabled[name]
	return ok
}

func (c *Caps) clone() *Caps {
	res := &Caps{
		State:     c.State,
		Available: make(map[string]string, len(c.Available)),
		Enabled:   make(map[string]struct{}, len(c.Enabled)),
		Requested: make(map[string]struct{}, len(c.Requested)),
		wanted:    c.wanted,
	}
	for k, v := range c.Available {
		res.Available[k] = v
	}
	for k := range c.Enabled {
		res.Enabled[k] = struct{}{}
	}
	for k := range c.Requested {
		res.Requested[k] = struct{}{}
	}
	return res
}

// start begins negotiation.
func (c *Caps) start(send func(Message)) {
	c.State = CapListing
	send(NewMessage("CAP", "LS", "302"))
}

// handle processes one CAP message. loggedIn tells whether RPL_WELCOME was
// already received.
func (c *Caps) handle(msg Message, loggedIn bool, send func(Message)) error {
	var subcommand, caps string
	if err := msg.ParseParams(nil, &subcommand); err != nil {
		return err
	}
	subcommand = strings.ToUpper(subcommand)
	more := false
	if len(msg.Params) > 3 && msg.Params[2] == "*" {
		more = true
		if err := msg.ParseParams(nil, nil, nil, &caps); err != nil {
			return err
		}
	} else if len(msg.Params) > 2 {
		caps = msg.Params[2]
	}

	switch subcommand {
	case "LS":
		c.pending = append(c.pending, strings.Fields(caps)...)
		if more {
			return nil
		}
		items := ParseCaps(strings.Join(c.pending, " "))
		c.pending = nil

		c.Available = map[string]string{}
		for _, item := range items {
			c.Available[item.Name] = item.Value
		}
		for name := range c.Requested {
			if _, ok := c.Available[name]; !ok {
				delete(c.Requested, name)
			}
		}
		if len(c.Requested) > 0 {
			c.State = CapNegotiating
			send(NewMessage("CAP", "REQ", strings.Join(sortedKeys(c.Requested), " ")))
		} else {
			c.tryEnd(loggedIn, send)
		}
	case "LIST":
		c.pending = append(c.pending, strings.Fields(caps)...)
		if more {
			return nil
		}
		c.Enabled = map[string]struct{}{}
		for _, item := range ParseCaps(strings.Join(c.pending, " ")) {
			c.Enabled[item.Name] = struct{}{}
		}
		c.pending = nil
	case "ACK":
		for _, item := range ParseCaps(caps) {
			if item.Enable {
				c.Enabled[item.Name] = struct{}{}
			} else {
				delete(c.Enabled, item.Name)
			}
			delete(c.Requested, item.Name)
		}
		c.tryEnd(loggedIn, send)
	case "NAK":
		for _, item := range ParseCaps(caps) {
			delete(c.Requested, item.Name)
		}
		c.tryEnd(loggedIn, send)
	case "NEW":
		var reqs []string
		for _, item := range ParseCaps(caps) {
			c.Available[item.Name] = item.Value
			if !c.wants(item.Name) || c.Has(item.Name) {
				continue
			}
			if _, ok := c.Requested[item.Name]; ok {
				continue
			}
			c.Requested[item.Name] = struct{}{}
			reqs = append(reqs, item.Name)
		}
		if len(reqs) > 0 {
			send(NewMessage("CAP", "REQ", strings.Join(reqs, " ")))
		}
	case "DEL":
		for _, item := range ParseCaps(caps) {
			delete(c.Available, item.Name)
			delete(c.Enabled, item.Name)
		}
	}
	return nil
}

// tryEnd sends CAP END once nothing is left to negotiate, unless
// registration already completed.
func (c *Caps) tryEnd(loggedIn bool, send func(Message)) {
	if len(c.Requested) != 0 || loggedIn || c.State == CapDone {
		return
	}
	c.State = CapDone
	send(NewMessage("CAP", "END"))
}

func (c *Caps) wants(name string) bool {
	for _, w := range c.wanted {
		if w == name {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
