package ircmodel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"git.sr.ht/~emersion/go-scfg"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseConfig(t *testing.T, src string) (Config, error) {
	t.Helper()
	block, err := scfg.Read(strings.NewReader(src))
	require.NoError(t, err)
	cfg := Defaults()
	if err := unmarshalBlock(block, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func TestConfig(t *testing.T) {
	cfg, err := parseConfig(t, `
address ircs://irc.example.net:6697
nickname "John Doe"
realname "John"
password hunter2
channel #a #b
channel #c
capabilities away-notify extended-join
reconnect-delay 30s
snapshot /tmp/state.yaml
debug true
`)
	require.NoError(t, err)
	assert.Equal(t, "irc.example.net:6697", cfg.Addr)
	assert.True(t, cfg.TLS)
	assert.Equal(t, "John_Doe", cfg.Nick)
	assert.Equal(t, "John_Doe", cfg.User)
	assert.Equal(t, "John", cfg.Real)
	require.NotNil(t, cfg.Password)
	assert.Equal(t, "hunter2", *cfg.Password)
	assert.Equal(t, []string{"#a", "#b", "#c"}, cfg.Channels)
	assert.Equal(t, []string{"away-notify", "extended-join"}, cfg.Capabilities)
	assert.Equal(t, 30*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, "/tmp/state.yaml", cfg.SnapshotPath)
	assert.True(t, cfg.Debug)
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(t, "address irc+insecure://irc.example.net\nnickname me\n")
	require.NoError(t, err)
	assert.Equal(t, "irc.example.net", cfg.Addr)
	assert.False(t, cfg.TLS)
	assert.Equal(t, 10*time.Second, cfg.ReconnectDelay)
	assert.Nil(t, cfg.Password)
	assert.Nil(t, cfg.Capabilities)

	cfg, err = parseConfig(t, "address irc.example.net\nnickname me\n")
	require.NoError(t, err)
	assert.Equal(t, "irc.example.net", cfg.Addr)
	assert.True(t, cfg.TLS)
}

func TestConfigErrors(t *testing.T) {
	for _, src := range []string{
		"nickname me\n",
		"address irc.example.net\n",
		"address irc.example.net\nnickname me\nunknown-directive x\n",
		"address irc.example.net\nnickname me\ntls maybe\n",
		"address irc.example.net\nnickname me\nreconnect-delay -1s\n",
		"address http://irc.example.net\nnickname me\n",
		"address irc.example.net\nnickname\n",
	} {
		_, err := parseConfig(t, src)
		assert.Error(t, err, src)
	}
}

func TestConfigPasswordCmd(t *testing.T) {
	cfg, err := parseConfig(t, "address irc.example.net\nnickname me\npassword ignored\npassword-cmd echo s3cret\n")
	require.NoError(t, err)
	require.NotNil(t, cfg.Password)
	assert.Equal(t, "s3cret", *cfg.Password)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ircmodel.scfg")
	require.NoError(t, os.WriteFile(path, []byte("address irc.example.net\nnickname me\n"), 0600))
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "me", cfg.Nick)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.scfg"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadConfigFileNickOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ircmodel.scfg")
	require.NoError(t, os.WriteFile(path, []byte("address irc.example.net\nnickname me\n"), 0600))
	cfg, err := LoadConfigFile(path, func(cfg *Config) {
		cfg.Nick = "Zoë 2"
	})
	require.NoError(t, err)
	assert.Equal(t, "Zoe_2", cfg.Nick)
	assert.Equal(t, "Zoe_2", cfg.User)
	assert.Equal(t, "Zoe_2", cfg.Real)
}
