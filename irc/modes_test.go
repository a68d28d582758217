package irc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModeString(t *testing.T) {
	table := defaultChanModes()
	changes, err := ParseModeString("+ol-bv+kz", []string{"alice", "10", "*!*@spam", "bob", "secret"}, table, "ov")
	require.NoError(t, err)
	assert.Equal(t, ModeString{
		{Enable: true, Mode: 'o', Param: "alice", Type: ModeStatus},
		{Enable: true, Mode: 'l', Param: "10", Type: ModeParamSet},
		{Enable: false, Mode: 'b', Param: "*!*@spam", Type: ModeList},
		{Enable: false, Mode: 'v', Param: "bob", Type: ModeStatus},
		{Enable: true, Mode: 'k', Param: "secret", Type: ModeParamUnset},
	}, changes)
}

func TestParseModeStringPolarity(t *testing.T) {
	// no sign means removal, and -l takes no parameter
	changes, err := ParseModeString("ml", []string{"extra"}, defaultChanModes(), "ov")
	require.NoError(t, err)
	assert.Equal(t, ModeString{
		{Enable: false, Mode: 'm', Type: ModeNoParam},
		{Enable: false, Mode: 'l', Type: ModeParamSet},
	}, changes)
}

func TestParseModeStringExhausted(t *testing.T) {
	changes, err := ParseModeString("+tbk", []string{"*!*@a"}, defaultChanModes(), "ov")
	assert.True(t, errors.Is(err, ErrExhaustedParameters))
	assert.Equal(t, ModeString{
		{Enable: true, Mode: 't', Type: ModeNoParam},
		{Enable: true, Mode: 'b', Param: "*!*@a", Type: ModeList},
	}, changes)
}

func TestModeStringEncode(t *testing.T) {
	ms := ModeString{
		{Enable: false, Mode: 'b', Param: "*!*@a", Type: ModeList},
		{Enable: true, Mode: 'o', Param: "alice", Type: ModeStatus},
		{Enable: true, Mode: 't', Type: ModeNoParam},
		{Enable: false, Mode: 'l', Type: ModeParamSet},
	}
	token, params := ms.Encode()
	assert.Equal(t, "-b+ot-l", token)
	assert.Equal(t, []string{"*!*@a", "alice"}, params)
	assert.Equal(t, "-b+ot-l *!*@a alice", ms.String())
}

func TestModeStringRedecode(t *testing.T) {
	table := defaultChanModes()
	for _, tt := range []struct {
		token  string
		params []string
	}{
		{"+ov-b", []string{"a", "b", "c!*@*"}},
		{"-lk+l", []string{"key", "5"}},
		{"+tnsm-p", nil},
		{"o+b", []string{"x", "y"}},
	} {
		first, err := ParseModeString(tt.token, tt.params, table, "ov")
		require.NoError(t, err, tt.token)
		token, params := first.Encode()
		second, err := ParseModeString(token, params, table, "ov")
		require.NoError(t, err, tt.token)
		assert.Equal(t, first, second, tt.token)
	}
}

func TestModeStringSplit(t *testing.T) {
	var ms ModeString
	for i := 0; i < 7; i++ {
		ms = append(ms, ModeChange{Enable: i%2 == 0, Mode: byte('a' + i), Type: ModeNoParam})
	}
	for k := 1; k <= 8; k++ {
		groups := ms.Split(k)
		assert.Len(t, groups, (len(ms)+k-1)/k, "k=%d", k)
		var joined ModeString
		for _, g := range groups {
			assert.LessOrEqual(t, len(g), k)
			joined = append(joined, g...)
		}
		assert.Equal(t, ms, joined, "k=%d", k)
	}
	assert.Len(t, ms.Split(0), 1)
	assert.Nil(t, ModeString(nil).Split(3))

	// appending to a group must not overwrite the next one
	groups := ms.Split(3)
	_ = append(groups[0], ModeChange{Mode: 'z'})
	assert.Equal(t, byte('d'), groups[1][0].Mode)
}

func TestApplyModes(t *testing.T) {
	values := map[byte]ModeValue{}
	changes, err := ParseModeString("+tlbb", []string{"10", "a!*@*", "b!*@*"}, defaultChanModes(), "ov")
	require.NoError(t, err)
	ApplyModes(changes, values)
	assert.Equal(t, map[byte]ModeValue{
		't': {Kind: ValuePresent},
		'l': {Kind: ValueParam, Param: "10"},
		'b': {Kind: ValueList, List: []string{"a!*@*", "b!*@*"}},
	}, values)

	changes, err = ParseModeString("-tlb+b", []string{"a!*@*", "b!*@*"}, defaultChanModes(), "ov")
	require.NoError(t, err)
	ApplyModes(changes, values)
	assert.Equal(t, map[byte]ModeValue{
		'b': {Kind: ValueList, List: []string{"b!*@*"}},
	}, values)

	changes, err = ParseModeString("-b", []string{"b!*@*"}, defaultChanModes(), "ov")
	require.NoError(t, err)
	ApplyModes(changes, values)
	assert.Empty(t, values)
}

func TestApplyStatus(t *testing.T) {
	ids := map[string]UserID{"alice": 1, "bob": 2, "carol": 3}
	resolve := func(nick string) (UserID, bool) {
		id, ok := ids[nick]
		return id, ok
	}
	members := map[UserID]string{1: "", 2: "v", 3: ""}

	changes, err := ParseModeString("+o-v+v", []string{"alice", "bob", "nobody"}, defaultChanModes(), "ov")
	require.NoError(t, err)
	ApplyStatus(changes, members, resolve, "ov")
	assert.Equal(t, map[UserID]string{1: "o", 2: "", 3: ""}, members)

	changes, err = ParseModeString("+vo", []string{"carol", "carol"}, defaultChanModes(), "ov")
	require.NoError(t, err)
	ApplyStatus(changes, members, resolve, "ov")
	assert.Equal(t, "ov", members[3])
}
