package irc

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrExhaustedParameters is returned by ParseModeString when a mode letter
// needs a parameter and none is left.
var ErrExhaustedParameters = errors.New("mode string requires more parameters than supplied")

// ModeType tells how a mode letter consumes parameters.
type ModeType int

const (
	ModeList       ModeType = iota // parameter when setting and when unsetting, multi-valued
	ModeParamUnset                 // parameter when setting and when unsetting
	ModeParamSet                   // parameter only when setting
	ModeNoParam                    // never a parameter
	ModeStatus                     // membership rank, parameter is a nickname
)

func (t ModeType) String() string {
	switch t {
	case ModeList:
		return "list"
	case ModeParamUnset:
		return "param-unset"
	case ModeParamSet:
		return "param-set"
	case ModeNoParam:
		return "no-param"
	case ModeStatus:
		return "status"
	}
	return "unknown"
}

// ModeTable maps mode letters to their type.
type ModeTable map[byte]ModeType

func (t ModeTable) clone() ModeTable {
	res := make(ModeTable, len(t))
	for k, v := range t {
		res[k] = v
	}
	return res
}

// parseModeGroups builds a ModeTable from the CHANMODES/USERMODES
// "A,B,C,D" syntax. Groups after the fourth are ignored.
func parseModeGroups(value string) ModeTable {
	table := ModeTable{}
	groups := strings.SplitN(value, ",", 5)
	for i := 0; i < len(groups) && i < 4; i++ {
		for j := 0; j < len(groups[i]); j++ {
			table[groups[i][j]] = ModeType(i)
		}
	}
	return table
}

// ModeChange is a single mode change.
type ModeChange struct {
	Enable bool
	Mode   byte
	Param  string
	Type   ModeType
}

func (c ModeChange) needsParam() bool {
	switch c.Type {
	case ModeList, ModeParamUnset, ModeStatus:
		return true
	case ModeParamSet:
		return c.Enable
	}
	return false
}

// ModeString is an ordered list of mode changes.
type ModeString []ModeChange

// ParseModeString decodes a mode token such as "+o-b" and its parameters
// against a mode table. Letters found in statusModes are of type ModeStatus.
// Letters that are neither in table nor in statusModes are skipped.
//
// If the parameters run out, decoding stops and the changes decoded so far
// are returned along with ErrExhaustedParameters.
func ParseModeString(token string, params []string, table ModeTable, statusModes string) (ModeString, error) {
	var changes ModeString
	enable := false
	for i := 0; i < len(token); i++ {
		mode := token[i]
		switch mode {
		case '+':
			enable = true
			continue
		case '-':
			enable = false
			continue
		}

		change := ModeChange{
			Enable: enable,
			Mode:   mode,
		}
		if strings.IndexByte(statusModes, mode) >= 0 {
			change.Type = ModeStatus
		} else if t, ok := table[mode]; ok {
			change.Type = t
		} else {
			continue
		}

		if change.needsParam() {
			if len(params) == 0 {
				return changes, errors.Wrapf(ErrExhaustedParameters, "mode %c in %q", mode, token)
			}
			change.Param = params[0]
			params = params[1:]
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// Encode returns the mode token and parameters of the changes. A sign is
// written before the first change and on every polarity switch.
func (ms ModeString) Encode() (token string, params []string) {
	var sb strings.Builder
	for i, c := range ms {
		if i == 0 || c.Enable != ms[i-1].Enable {
			if c.Enable {
				sb.WriteByte('+')
			} else {
				sb.WriteByte('-')
			}
		}
		sb.WriteByte(c.Mode)
		if c.needsParam() {
			params = append(params, c.Param)
		}
	}
	return sb.String(), params
}

// String returns the token followed by the space-separated parameters.
func (ms ModeString) String() string {
	token, params := ms.Encode()
	if len(params) == 0 {
		return token
	}
	return token + " " + strings.Join(params, " ")
}

// Split partitions the changes into groups of at most max changes, keeping
// their order. max <= 0 yields a single group.
func (ms ModeString) Split(max int) []ModeString {
	if len(ms) == 0 {
		return nil
	}
	if max <= 0 || len(ms) <= max {
		return []ModeString{ms}
	}
	groups := make([]ModeString, 0, (len(ms)+max-1)/max)
	for len(ms) > max {
		groups = append(groups, ms[:max:max])
		ms = ms[max:]
	}
	return append(groups, ms)
}

// ModeValueKind tells which field of a ModeValue holds its value.
type ModeValueKind int

const (
	ValuePresent ModeValueKind = iota // mode is set, no value
	ValueParam                        // mode is set to Param
	ValueList                         // mode holds the masks of List
)

// ModeValue is the current value of a channel or user mode.
type ModeValue struct {
	Kind  ModeValueKind
	Param string
	List  []string
}

func (v ModeValue) clone() ModeValue {
	if v.List != nil {
		v.List = append([]string(nil), v.List...)
	}
	return v
}

// ApplyModes applies the non-status changes to values.
func ApplyModes(changes ModeString, values map[byte]ModeValue) {
	for _, c := range changes {
		switch c.Type {
		case ModeStatus:
			continue
		case ModeList:
			v := values[c.Mode]
			i := indexString(v.List, c.Param)
			if c.Enable {
				if i < 0 {
					values[c.Mode] = ModeValue{
						Kind: ValueList,
						List: append(v.List, c.Param),
					}
				}
			} else if i >= 0 {
				list := append(v.List[:i:i], v.List[i+1:]...)
				if len(list) == 0 {
					delete(values, c.Mode)
				} else {
					values[c.Mode] = ModeValue{Kind: ValueList, List: list}
				}
			}
		default:
			if !c.Enable {
				delete(values, c.Mode)
			} else if c.needsParam() {
				values[c.Mode] = ModeValue{Kind: ValueParam, Param: c.Param}
			} else {
				values[c.Mode] = ModeValue{Kind: ValuePresent}
			}
		}
	}
}

// ApplyStatus applies the status changes to the member statuses. resolve
// maps the nickname parameter of a change to a member; changes naming
// unknown members are skipped. Status letters are kept sorted by their rank
// in statusModes.
func ApplyStatus(changes ModeString, members map[UserID]string, resolve func(nick string) (UserID, bool), statusModes string) {
	for _, c := range changes {
		if c.Type != ModeStatus {
			continue
		}
		id, ok := resolve(c.Param)
		if !ok {
			continue
		}
		status, ok := members[id]
		if !ok {
			continue
		}
		members[id] = updateStatus(status, c.Mode, c.Enable, statusModes)
	}
}

func updateStatus(status string, mode byte, enable bool, statusModes string) string {
	i := strings.IndexByte(status, mode)
	if enable {
		if i >= 0 {
			return status
		}
		b := append([]byte(status), mode)
		sort.SliceStable(b, func(i, j int) bool {
			return rank(statusModes, b[i]) < rank(statusModes, b[j])
		})
		return string(b)
	}
	if i < 0 {
		return status
	}
	return status[:i] + status[i+1:]
}

func rank(statusModes string, mode byte) int {
	if i := strings.IndexByte(statusModes, mode); i >= 0 {
		return i
	}
	return len(statusModes)
}

func indexString(list []string, s string) int {
	for i, e := range list {
		if e == s {
			return i
		}
	}
	return -1
}
