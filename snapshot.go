package ircmodel

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"git.sr.ht/~delthas/ircmodel/irc"
)

// Snapshot is a point-in-time dump of the state of a connection.
type Snapshot struct {
	Time      time.Time         `yaml:"time"`
	Nick      string            `yaml:"nick"`
	LoggedIn  bool              `yaml:"logged_in"`
	UserModes string            `yaml:"user_modes,omitempty"`
	Server    SnapshotServer    `yaml:"server"`
	Caps      []string          `yaml:"capabilities,omitempty"`
	Channels  []SnapshotChannel `yaml:"channels,omitempty"`
	Users     []SnapshotUser    `yaml:"users,omitempty"`
}

type SnapshotServer struct {
	Name        string            `yaml:"name,omitempty"`
	Version     string            `yaml:"version,omitempty"`
	Network     string            `yaml:"network,omitempty"`
	CaseMapping string            `yaml:"casemapping"`
	Tokens      map[string]string `yaml:"isupport,omitempty"`
}

type SnapshotChannel struct {
	Name      string           `yaml:"name"`
	Topic     string           `yaml:"topic,omitempty"`
	TopicWho  string           `yaml:"topic_who,omitempty"`
	TopicTime time.Time        `yaml:"topic_time,omitempty"`
	Modes     map[string]any   `yaml:"modes,omitempty"`
	Members   []SnapshotMember `yaml:"members"`
}

type SnapshotMember struct {
	Nick   string `yaml:"nick"`
	Status string `yaml:"status,omitempty"`
}

type SnapshotUser struct {
	Nick        string `yaml:"nick"`
	Username    string `yaml:"username,omitempty"`
	Hostname    string `yaml:"hostname,omitempty"`
	Gecos       string `yaml:"gecos,omitempty"`
	Oper        bool   `yaml:"oper,omitempty"`
	Away        bool   `yaml:"away,omitempty"`
	AwayMessage string `yaml:"away_message,omitempty"`
}

// TakeSnapshot copies the state of conn.
func TakeSnapshot(conn *irc.Conn) *Snapshot {
	f := conn.Features()
	s := &Snapshot{
		Time:      time.Now().UTC(),
		Nick:      conn.Nick(),
		LoggedIn:  conn.IsLoggedIn(),
		UserModes: flagModes(conn.UserModes()),
		Server: SnapshotServer{
			Name:        f.ServerName,
			Version:     f.ServerVersion,
			Network:     f.Network,
			CaseMapping: f.CaseMapping,
			Tokens:      f.Tokens(),
		},
	}

	caps := conn.Capabilities()
	for name := range caps.Enabled {
		s.Caps = append(s.Caps, name)
	}
	sort.Strings(s.Caps)

	for _, ch := range conn.Channels() {
		sc := SnapshotChannel{
			Name:      ch.Name,
			Topic:     ch.Topic,
			TopicTime: ch.TopicTime,
			Modes:     snapshotModes(ch.Modes),
		}
		if ch.TopicWho != nil {
			sc.TopicWho = ch.TopicWho.String()
		}
		for _, m := range conn.Members(ch.Name) {
			sc.Members = append(sc.Members, SnapshotMember{
				Nick:   m.User.Nick,
				Status: m.Status,
			})
		}
		s.Channels = append(s.Channels, sc)
	}

	for _, u := range conn.Users() {
		s.Users = append(s.Users, SnapshotUser{
			Nick:        u.Nick,
			Username:    u.Username,
			Hostname:    u.Hostname,
			Gecos:       u.Gecos,
			Oper:        u.Oper,
			Away:        u.Away,
			AwayMessage: u.AwayMessage,
		})
	}
	return s
}

// flagModes returns the letters of the set modes, sorted.
func flagModes(modes map[byte]irc.ModeValue) string {
	b := make([]byte, 0, len(modes))
	for mode := range modes {
		b = append(b, mode)
	}
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	return string(b)
}

func snapshotModes(modes map[byte]irc.ModeValue) map[string]any {
	if len(modes) == 0 {
		return nil
	}
	res := make(map[string]any, len(modes))
	for mode, v := range modes {
		switch v.Kind {
		case irc.ValueParam:
			res[string(mode)] = v.Param
		case irc.ValueList:
			res[string(mode)] = append([]string{}, v.List...)
		default:
			res[string(mode)] = true
		}
	}
	return res
}

// Encode writes the snapshot as YAML.
func (s *Snapshot) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	return enc.Close()
}

// WriteSnapshot writes the state of the current connection to the configured
// snapshot path. It does nothing if no path is configured.
func (app *App) WriteSnapshot() error {
	if app.cfg.SnapshotPath == "" {
		return nil
	}
	conn := app.Conn()
	if conn == nil {
		return errOffline
	}

	if err := os.MkdirAll(filepath.Dir(app.cfg.SnapshotPath), 0755); err != nil {
		return errors.Wrap(err, "creating snapshot directory")
	}
	tmp := app.cfg.SnapshotPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "creating snapshot")
	}
	if err := TakeSnapshot(conn).Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	if err := os.Rename(tmp, app.cfg.SnapshotPath); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	app.log.WithField("path", app.cfg.SnapshotPath).Debug("snapshot written")
	return nil
}
