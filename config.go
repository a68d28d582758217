package ircmodel

import (
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~emersion/go-scfg"
	"github.com/pkg/errors"

	"git.sr.ht/~delthas/ircmodel/irc"
)

type Config struct {
	Addr     string
	Nick     string
	Real     string
	User     string
	Password *string
	TLS      bool
	Channels []string

	// Capabilities requested during registration; nil means the library
	// defaults.
	Capabilities []string

	ReconnectDelay time.Duration
	SnapshotPath   string

	Debug bool
}

func Defaults() Config {
	return Config{
		Addr:           "",
		Nick:           "",
		Real:           "",
		User:           "",
		Password:       nil,
		TLS:            true,
		Channels:       nil,
		Capabilities:   nil,
		ReconnectDelay: 10 * time.Second,
		SnapshotPath:   "",
		Debug:          false,
	}
}

// LoadConfigFile reads filename. The overrides, such as command line flags,
// are applied before derived fields are filled in and checked.
func LoadConfigFile(filename string, overrides ...func(*Config)) (cfg Config, err error) {
	cfg = Defaults()

	err = unmarshal(filename, &cfg)
	if err != nil {
		return cfg, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate fills in derived fields and checks the required ones.
func (cfg *Config) validate() error {
	if cfg.Addr == "" {
		return errors.New("address is required")
	}
	if cfg.Nick == "" {
		return errors.New("nickname is required")
	}
	cfg.Nick = irc.CleanNick(cfg.Nick)
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.Real == "" {
		cfg.Real = cfg.Nick
	}
	if u, err := url.Parse(cfg.Addr); err == nil && u.Scheme != "" {
		switch u.Scheme {
		case "ircs":
			cfg.TLS = true
		case "irc+insecure":
			cfg.TLS = false
		case "irc":
			// Could be TLS or plaintext, keep TLS as is.
		default:
			if u.Host != "" {
				return errors.Errorf("invalid IRC addr scheme: %v", cfg.Addr)
			}
		}
		if u.Host != "" {
			cfg.Addr = u.Host
		}
	}
	return nil
}

func unmarshal(filename string, cfg *Config) (err error) {
	directives, err := scfg.Load(filename)
	if err != nil {
		return errors.Wrap(err, "error parsing scfg")
	}
	return unmarshalBlock(directives, cfg)
}

func unmarshalBlock(directives scfg.Block, cfg *Config) (err error) {
	for _, d := range directives {
		switch d.Name {
		case "address":
			if err := d.ParseParams(&cfg.Addr); err != nil {
				return err
			}
		case "nickname":
			if err := d.ParseParams(&cfg.Nick); err != nil {
				return err
			}
		case "username":
			if err := d.ParseParams(&cfg.User); err != nil {
				return err
			}
		case "realname":
			if err := d.ParseParams(&cfg.Real); err != nil {
				return err
			}
		case "password":
			// if a password-cmd is provided, don't use this value
			if directives.Get("password-cmd") != nil {
				continue
			}

			var password string
			if err := d.ParseParams(&password); err != nil {
				return err
			}
			cfg.Password = &password
		case "password-cmd":
			var cmdName string
			if err := d.ParseParams(&cmdName); err != nil {
				return err
			}

			cmd := exec.Command(cmdName, d.Params[1:]...)
			var stdout []byte
			if stdout, err = cmd.Output(); err != nil {
				return errors.Wrap(err, "error running password command")
			}

			passCmdOut := strings.Split(string(stdout), "\n")
			if len(passCmdOut) >= 1 {
				cfg.Password = &passCmdOut[0]
			}
		case "channel":
			cfg.Channels = append(cfg.Channels, d.Params...)
		case "capabilities":
			cfg.Capabilities = append([]string{}, d.Params...)
		case "tls":
			var tls string
			if err := d.ParseParams(&tls); err != nil {
				return err
			}

			if cfg.TLS, err = strconv.ParseBool(tls); err != nil {
				return err
			}
		case "reconnect-delay":
			var delay string
			if err := d.ParseParams(&delay); err != nil {
				return err
			}

			if cfg.ReconnectDelay, err = time.ParseDuration(delay); err != nil {
				return err
			}
			if cfg.ReconnectDelay <= 0 {
				return errors.Errorf("reconnect-delay must be positive, got %v", delay)
			}
		case "snapshot":
			if err := d.ParseParams(&cfg.SnapshotPath); err != nil {
				return err
			}
		case "debug":
			var debug string
			if err := d.ParseParams(&debug); err != nil {
				return err
			}

			if cfg.Debug, err = strconv.ParseBool(debug); err != nil {
				return err
			}
		default:
			return errors.Errorf("unknown directive %q", d.Name)
		}
	}

	return
}
