package irc

import (
	"strings"

	"github.com/gobwas/glob"
)

// Prefix is the nick!user@host source of a message.
type Prefix struct {
	Name string
	User string
	Host string
}

// ParsePrefix splits a nick!user@host string. The user and host parts are
// optional.
func ParsePrefix(s string) (p *Prefix) {
	if s == "" {
		return
	}

	p = &Prefix{}

	spl0 := strings.Split(s, "@")
	if 1 < len(spl0) {
		p.Host = spl0[1]
	}

	spl1 := strings.Split(spl0[0], "!")
	if 1 < len(spl1) {
		p.User = spl1[1]
	}

	p.Name = spl1[0]

	return
}

// Copy makes a copy of the prefix, but doesn't copy the internal strings.
func (p *Prefix) Copy() *Prefix {
	if p == nil {
		return nil
	}
	res := &Prefix{}
	*res = *p
	return res
}

// String returns the "nick!user@host" representation of the prefix.
func (p *Prefix) String() string {
	if p == nil {
		return ""
	}

	if p.User != "" && p.Host != "" {
		return p.Name + "!" + p.User + "@" + p.Host
	} else if p.User != "" {
		return p.Name + "!" + p.User
	} else if p.Host != "" {
		return p.Name + "@" + p.Host
	} else {
		return p.Name
	}
}

// Canonical returns the full "nick!user@host" form, with "*" standing in for
// unknown parts.
func (p *Prefix) Canonical() string {
	if p == nil {
		return "*!*@*"
	}
	name, user, host := p.Name, p.User, p.Host
	if name == "" {
		name = "*"
	}
	if user == "" {
		user = "*"
	}
	if host == "" {
		host = "*"
	}
	return name + "!" + user + "@" + host
}

// Match reports whether the prefix matches the IRC wildcard mask, where "*"
// matches any run of characters and "?" any single character. Comparison is
// done after applying casemap to both sides.
func (p *Prefix) Match(mask string, casemap func(string) string) bool {
	g, err := compileMask(casemap(mask))
	if err != nil {
		return false
	}
	return g.Match(casemap(p.Canonical()))
}

// compileMask turns an IRC mask into a glob, quoting every glob
// metacharacter other than "*" and "?" (nicknames may contain [ ] { } \).
func compileMask(mask string) (glob.Glob, error) {
	var sb strings.Builder
	sb.Grow(len(mask))
	for _, r := range mask {
		switch r {
		case '[', ']', '{', '}', '\\', '!', '-', ',':
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return glob.Compile(sb.String())
}
