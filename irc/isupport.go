package irc

import (
	"strconv"
	"strings"
	"unicode"
)

const (
	defaultChanTypes     = "#"
	defaultStatusModes   = "ov"
	defaultStatusSymbols = "@+"
)

func defaultChanModes() ModeTable {
	return ModeTable{
		'b': ModeList,
		'k': ModeParamUnset,
		'l': ModeParamSet,
		'm': ModeNoParam,
		'n': ModeNoParam,
		'p': ModeNoParam,
		's': ModeNoParam,
		't': ModeNoParam,
	}
}

func defaultUserModes() ModeTable {
	return ModeTable{
		'i': ModeNoParam,
		'o': ModeNoParam,
		'w': ModeNoParam,
		's': ModeParamSet,
	}
}

// ISupport holds the protocol parameters declared by the server through
// RPL_MYINFO and RPL_ISUPPORT. The zero value is not usable, see NewISupport.
type ISupport struct {
	ServerName    string
	ServerVersion string
	Network       string

	ChanModes     ModeTable
	UserModes     ModeTable
	StatusModes   string // status mode letters, highest rank first.
	StatusSymbols string // prefix symbols, paired with StatusModes.
	ChanTypes     string
	StatusMsg     string

	CaseMapping string
	NickLen     int // 0 means no limit, as do the other limits.
	TopicLen    int
	AwayLen     int
	KickLen     int
	ChannelLen  int
	MaxModes    int
	MaxChannels int
	LineLen     int

	raw     map[string]string
	casemap func(string) string
}

// NewISupport returns the RFC 1459 defaults.
func NewISupport() *ISupport {
	return &ISupport{
		ChanModes:     defaultChanModes(),
		UserModes:     defaultUserModes(),
		StatusModes:   defaultStatusModes,
		StatusSymbols: defaultStatusSymbols,
		ChanTypes:     defaultChanTypes,
		CaseMapping:   "rfc1459",
		LineLen:       512,
		raw:           map[string]string{},
		casemap:       CasemapRFC1459,
	}
}

// Token returns the raw value of an ISUPPORT token. ok is false if the
// server never advertised it.
func (is *ISupport) Token(key string) (value string, ok bool) {
	value, ok = is.raw[strings.ToUpper(key)]
	return
}

// Tokens returns a copy of the raw token table.
func (is *ISupport) Tokens() map[string]string {
	res := make(map[string]string, len(is.raw))
	for k, v := range is.raw {
		res[k] = v
	}
	return res
}

// Casemap folds name with the server casemapping.
func (is *ISupport) Casemap(name string) string {
	return is.casemap(name)
}

// IsChannel reports whether name starts with a channel type character.
func (is *ISupport) IsChannel(name string) bool {
	return name != "" && strings.IndexByte(is.ChanTypes, name[0]) >= 0
}

// StatusSymbol returns the prefix symbol of a status mode letter.
func (is *ISupport) StatusSymbol(mode byte) (byte, bool) {
	i := strings.IndexByte(is.StatusModes, mode)
	if i < 0 || i >= len(is.StatusSymbols) {
		return 0, false
	}
	return is.StatusSymbols[i], true
}

// StatusMode returns the status mode letter of a prefix symbol.
func (is *ISupport) StatusMode(symbol byte) (byte, bool) {
	i := strings.IndexByte(is.StatusSymbols, symbol)
	if i < 0 || i >= len(is.StatusModes) {
		return 0, false
	}
	return is.StatusModes[i], true
}

// SplitStatus strips the leading prefix symbols of a NAMES or WHO entry and
// returns the matching status letters, sorted by rank.
func (is *ISupport) SplitStatus(name string) (status, rest string) {
	var modes string
	i := 0
	for ; i < len(name); i++ {
		mode, ok := is.StatusMode(name[i])
		if !ok {
			break
		}
		modes = updateStatus(modes, mode, true, is.StatusModes)
	}
	return modes, name[i:]
}

func (is *ISupport) clone() *ISupport {
	res := &ISupport{}
	*res = *is
	res.ChanModes = is.ChanModes.clone()
	res.UserModes = is.UserModes.clone()
	res.raw = is.Tokens()
	return res
}

// seedMyInfo applies RPL_MYINFO: server name, version and the user mode
// letters.
func (is *ISupport) seedMyInfo(server, version, userModes string) {
	is.ServerName = server
	is.ServerVersion = version
	if userModes == "" {
		return
	}
	table := ModeTable{}
	for i := 0; i < len(userModes); i++ {
		if userModes[i] == 's' {
			table['s'] = ModeParamSet
		} else {
			table[userModes[i]] = ModeNoParam
		}
	}
	is.UserModes = table
}

// ParseTokens applies the parameters of one RPL_ISUPPORT message. The first
// (our nickname) and last (the "are supported" text) parameters are skipped.
func (is *ISupport) ParseTokens(params []string) {
	if len(params) < 3 {
		return
	}
	for _, f := range params[1 : len(params)-1] {
		if f == "" || f == "-" || f == "=" || f == "-=" {
			continue
		}

		add := true
		if strings.HasPrefix(f, "-") {
			add = false
			f = f[1:]
		}

		var key, value string
		kv := strings.SplitN(f, "=", 2)
		key = strings.ToUpper(kv[0])
		if len(kv) > 1 {
			value = kv[1]
		}

		if add {
			is.raw[key] = value
		} else {
			delete(is.raw, key)
			is.reset(key)
			continue
		}

	Switch:
		switch key {
		case "CASEMAPPING":
			is.CaseMapping = value
			switch value {
			case "ascii":
				is.casemap = CasemapASCII
			default:
				is.casemap = CasemapRFC1459
			}
		case "CHANMODES":
			is.ChanModes = parseModeGroups(value)
		case "USERMODES":
			is.UserModes = parseModeGroups(value)
		case "CHANTYPES":
			is.ChanTypes = value
		case "NETWORK":
			is.Network = value
		case "STATUSMSG":
			is.StatusMsg = value
		case "PREFIX":
			if value == "" {
				is.StatusModes = ""
				is.StatusSymbols = ""
				break Switch
			}
			if len(value)%2 != 0 || value[0] != '(' {
				break Switch
			}
			for i := 0; i < len(value); i++ {
				if unicode.MaxASCII < value[i] {
					break Switch
				}
			}
			numPrefixes := len(value)/2 - 1
			if value[numPrefixes+1] != ')' {
				break Switch
			}
			is.StatusModes = value[1 : numPrefixes+1]
			is.StatusSymbols = value[numPrefixes+2:]
		case "NICKLEN", "MAXNICKLEN":
			parseLimit(value, &is.NickLen)
		case "TOPICLEN":
			parseLimit(value, &is.TopicLen)
		case "AWAYLEN":
			parseLimit(value, &is.AwayLen)
		case "KICKLEN":
			parseLimit(value, &is.KickLen)
		case "CHANNELLEN":
			parseLimit(value, &is.ChannelLen)
		case "MODES":
			parseLimit(value, &is.MaxModes)
		case "MAXCHANNELS":
			parseLimit(value, &is.MaxChannels)
		case "CHANLIMIT":
			// "#&:20,+:5"; the limit of the first group applies.
			group := strings.SplitN(value, ",", 2)[0]
			if _, limit, ok := strings.Cut(group, ":"); ok {
				parseLimit(limit, &is.MaxChannels)
			}
		case "LINELEN":
			parseLimit(value, &is.LineLen)
		}
	}
}

func (is *ISupport) reset(key string) {
	switch key {
	case "CASEMAPPING":
		is.CaseMapping = "rfc1459"
		is.casemap = CasemapRFC1459
	case "CHANMODES":
		is.ChanModes = defaultChanModes()
	case "USERMODES":
		is.UserModes = defaultUserModes()
	case "CHANTYPES":
		is.ChanTypes = defaultChanTypes
	case "NETWORK":
		is.Network = ""
	case "STATUSMSG":
		is.StatusMsg = ""
	case "PREFIX":
		is.StatusModes = defaultStatusModes
		is.StatusSymbols = defaultStatusSymbols
	case "NICKLEN", "MAXNICKLEN":
		is.NickLen = 0
	case "TOPICLEN":
		is.TopicLen = 0
	case "AWAYLEN":
		is.AwayLen = 0
	case "KICKLEN":
		is.KickLen = 0
	case "CHANNELLEN":
		is.ChannelLen = 0
	case "MODES":
		is.MaxModes = 0
	case "MAXCHANNELS", "CHANLIMIT":
		is.MaxChannels = 0
	case "LINELEN":
		is.LineLen = 512
	}
}

func parseLimit(value string, limit *int) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return
	}
	*limit = n
}
