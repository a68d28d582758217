package irc

import (
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedLine is returned when a raw line cannot be parsed into a
	// Message.
	ErrMalformedLine = errors.New("malformed line")
	// ErrNotEnoughParams is returned by Message.ParseParams.
	ErrNotEnoughParams = errors.New("not enough params")
	// ErrInvalidParam is returned when a parameter cannot be written on
	// the wire without changing the meaning of the line.
	ErrInvalidParam = errors.New("invalid parameter")
)

func parseTags(s string) (tags map[string]string) {
	tags = map[string]string{}
	for _, item := range strings.Split(s, ";") {
		if item == "" || item == "=" || item == "+" || item == "+=" {
			continue
		}
		kv := strings.SplitN(item, "=", 2)
		if len(kv) < 2 {
			tags[kv[0]] = ""
		} else {
			tags[kv[0]] = ircmsg.UnescapeTagValue(kv[1])
		}
	}
	return
}

func formatTags(tags map[string]string) string {
	var sb strings.Builder
	first := true
	for k, v := range tags {
		if !first {
			sb.WriteByte(';')
		}
		first = false
		sb.WriteString(k)
		if v != "" {
			sb.WriteByte('=')
			sb.WriteString(ircmsg.EscapeTagValue(v))
		}
	}
	return sb.String()
}

// Message is the parsed form of one IRC line.
type Message struct {
	Raw     string            // the line as received, or "" for built messages.
	Tags    map[string]string // IRCv3 tags; a tag without value maps to "".
	Prefix  *Prefix           // the source of the message, nil if absent.
	Command string
	Params  []string
	Time    time.Time // when the line was received or built.
}

// NewMessage returns a Message with no tags and no prefix.
func NewMessage(command string, params ...string) Message {
	return Message{
		Command: command,
		Params:  params,
		Time:    time.Now(),
	}
}

// ParseMessage parses one raw line, without its trailing CR/LF.
//
// NUL bytes are stripped before anything else. The remainder is split into
// tags, prefix, command and parameters; the text after the first " :" is
// kept verbatim as the last parameter.
func ParseMessage(line string) (msg Message, err error) {
	msg.Raw = line
	msg.Time = time.Now()

	line = strings.ReplaceAll(line, "\x00", "")
	if line == "" {
		err = errors.Wrap(ErrMalformedLine, "empty line")
		return
	}

	if strings.HasPrefix(line, "@") {
		i := strings.IndexByte(line, ' ')
		if i < 0 {
			err = errors.Wrap(ErrMalformedLine, "tags without command")
			return
		}
		msg.Tags = parseTags(line[1:i])
		line = line[i+1:]
	}

	if strings.HasPrefix(line, ":") {
		i := strings.IndexByte(line, ' ')
		if i < 0 {
			err = errors.Wrap(ErrMalformedLine, "prefix without command")
			return
		}
		msg.Prefix = ParsePrefix(line[1:i])
		line = line[i+1:]
	}

	var trailing string
	hasTrailing := false
	if i := strings.Index(line, " :"); i >= 0 {
		trailing = line[i+2:]
		hasTrailing = true
		line = line[:i]
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		err = errors.Wrap(ErrMalformedLine, "missing command")
		return
	}
	msg.Command = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		msg.Params = fields[1:]
	}
	if hasTrailing {
		msg.Params = append(msg.Params, trailing)
	}
	return
}

// IsReply reports whether the message is a numeric reply: its command is
// exactly three ASCII digits.
func (msg *Message) IsReply() bool {
	if len(msg.Command) != 3 {
		return false
	}
	for _, r := range msg.Command {
		if r < '0' || '9' < r {
			return false
		}
	}
	return true
}

// String formats the message as a wire line, without CRLF.
func (msg *Message) String() string {
	var sb strings.Builder

	if len(msg.Tags) != 0 {
		sb.WriteRune('@')
		sb.WriteString(formatTags(msg.Tags))
		sb.WriteRune(' ')
	}

	if msg.Prefix != nil {
		sb.WriteRune(':')
		sb.WriteString(msg.Prefix.String())
		sb.WriteRune(' ')
	}

	sb.WriteString(msg.Command)

	if len(msg.Params) != 0 {
		for _, p := range msg.Params[:len(msg.Params)-1] {
			sb.WriteRune(' ')
			sb.WriteString(p)
		}
		last := msg.Params[len(msg.Params)-1]
		sb.WriteRune(' ')
		if last == "" || strings.ContainsRune(last, ' ') || strings.HasPrefix(last, ":") {
			sb.WriteRune(':')
		}
		sb.WriteString(last)
	}

	return sb.String()
}

// Validate checks that String yields a single line carrying the same
// parameters: no parameter contains CR, LF or NUL, and only the last one
// may be empty, contain spaces or start with ':'.
func (msg *Message) Validate() error {
	for i, p := range msg.Params {
		if strings.ContainsAny(p, "\r\n\x00") {
			return errors.Wrapf(ErrInvalidParam, "%s param %d contains a line break or NUL", msg.Command, i)
		}
		if i == len(msg.Params)-1 {
			break
		}
		if p == "" || strings.ContainsRune(p, ' ') || strings.HasPrefix(p, ":") {
			return errors.Wrapf(ErrInvalidParam, "%s param %d %q is not a middle param", msg.Command, i, p)
		}
	}
	return nil
}

func (msg *Message) errNotEnoughParams(expected int) error {
	return errors.Wrapf(ErrNotEnoughParams, "expected at least %d params for %s, got %d",
		expected, msg.Command, len(msg.Params))
}

// ParseParams binds the leading parameters of the message to out, in order.
// A nil pointer skips the parameter at its position.
func (msg *Message) ParseParams(out ...*string) error {
	if len(msg.Params) < len(out) {
		return msg.errNotEnoughParams(len(out))
	}
	for i := range out {
		if out[i] != nil {
			*out[i] = msg.Params[i]
		}
	}
	return nil
}

// Body returns the parameters from index i joined by spaces.
func (msg *Message) Body(i int) string {
	if i >= len(msg.Params) {
		return ""
	}
	return strings.Join(msg.Params[i:], " ")
}

// TimeOrNow returns the server-time of the message if present, its receipt
// time otherwise.
func (msg *Message) TimeOrNow() time.Time {
	if t, ok := msg.Tags["time"]; ok {
		if st, err := time.Parse("2006-01-02T15:04:05.000Z07:00", t); err == nil {
			return st
		}
		if st, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return st
		}
	}
	if msg.Time.IsZero() {
		return time.Now()
	}
	return msg.Time
}

// Source returns the nickname (or server name) of the message source, or ""
// if the message has no prefix.
func (msg *Message) Source() string {
	if msg.Prefix == nil {
		return ""
	}
	return msg.Prefix.Name
}

// CasemapASCII folds A-Z to a-z.
func CasemapASCII(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// CasemapRFC1459 folds A-Z to a-z, and []\~ to {}|^.
func CasemapRFC1459(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		} else if r == '[' {
			r = '{'
		} else if r == ']' {
			r = '}'
		} else if r == '\\' {
			r = '|'
		} else if r == '~' {
			r = '^'
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
