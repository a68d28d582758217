package ircmodel

import (
	"context"
	"crypto/tls"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"git.sr.ht/~delthas/ircmodel/events"
	"git.sr.ht/~delthas/ircmodel/irc"
)

var errOffline = errors.New("you are disconnected from the server, retry later")

// App keeps one connection to the configured server alive, reconnecting
// when it is lost.
type App struct {
	cfg Config
	log logrus.FieldLogger

	mu   sync.Mutex
	conn *irc.Conn // nil while disconnected

	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(cfg Config, log logrus.FieldLogger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close writes a last snapshot, stops Run and closes the current
// connection.
func (app *App) Close() {
	if conn := app.Conn(); conn != nil {
		if err := app.WriteSnapshot(); err != nil {
			app.log.WithError(err).Warn("failed to write snapshot")
		}
	}
	app.cancel()
	if conn := app.Conn(); conn != nil {
		conn.Quit("")
		conn.Close()
	}
}

// Conn returns the current connection, or nil while disconnected.
func (app *App) Conn() *irc.Conn {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.conn
}

func (app *App) setConn(conn *irc.Conn) {
	app.mu.Lock()
	app.conn = conn
	app.mu.Unlock()
}

// Run connects, and reconnects at most once per ReconnectDelay, until Close
// is called.
func (app *App) Run() error {
	limiter := rate.NewLimiter(rate.Every(app.cfg.ReconnectDelay), 1)
	for {
		if err := limiter.Wait(app.ctx); err != nil {
			return nil
		}
		nc, err := app.tryConnect(app.ctx)
		if err != nil {
			app.log.WithError(err).Warn("connection failed")
			continue
		}
		err = app.session(nc)
		app.setConn(nil)
		if app.ctx.Err() != nil {
			return nil
		}
		app.log.WithError(err).Warn("disconnected")
	}
}

func (app *App) session(nc net.Conn) error {
	params := irc.ConnParams{
		Nickname:     app.cfg.Nick,
		Username:     app.cfg.User,
		RealName:     app.cfg.Real,
		Capabilities: app.cfg.Capabilities,
		Logger:       app.log.WithField("addr", app.cfg.Addr),
	}
	if app.cfg.Password != nil {
		params.Password = *app.cfg.Password
	}

	conn := irc.NewConn(irc.NewNetTransport(nc), params)
	app.subscribe(conn)
	app.setConn(conn)

	if err := conn.Register(); err != nil {
		conn.Close()
		return err
	}
	return conn.Run(app.ctx)
}

func (app *App) tryConnect(ctx context.Context) (conn net.Conn, err error) {
	addr := app.cfg.Addr
	colonIdx := strings.LastIndexByte(addr, ':')
	bracketIdx := strings.LastIndexByte(addr, ']')
	if colonIdx <= bracketIdx {
		// either colonIdx < 0, or the last colon is before a ']' (end
		// of IPv6 address). -> missing port
		if app.cfg.TLS {
			addr += ":6697"
		} else {
			addr += ":6667"
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
	}
	conn, err = proxy.FromEnvironmentUsing(dialer).(proxy.ContextDialer).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	if app.cfg.TLS {
		host, _, _ := net.SplitHostPort(addr) // should succeed since net.Dial did.
		conn = tls.Client(conn, &tls.Config{
			ServerName: host,
			NextProtos: []string{"irc"},
		})
		err = conn.(*tls.Conn).HandshakeContext(ctx)
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "tls handshake")
		}
	}

	return
}

// subscribe wires the application to the events of conn: joining the
// configured channels once registered, and logging.
func (app *App) subscribe(conn *irc.Conn) {
	bus := conn.Events()

	bus.Subscribe(events.MessageReceived, func(ev events.Event) {
		msg := ev.(irc.MessageReceivedEvent).Message
		if app.cfg.Debug {
			app.log.WithField("line", msg.String()).Debug("IN --")
		}
		if msg.Command == "001" {
			for _, channel := range app.cfg.Channels {
				if err := conn.Join(channel, ""); err != nil {
					app.log.WithError(err).WithField("channel", channel).Warn("join failed")
				}
			}
		}
	})
	if app.cfg.Debug {
		bus.Subscribe(events.MessageSent, func(ev events.Event) {
			msg := redact(ev.(irc.MessageSentEvent).Message)
			app.log.WithField("line", msg.String()).Debug("OUT --")
		})
	}

	bus.Subscribe(events.MessageCommandReceived, func(ev events.Event) {
		e := ev.(irc.MessageCommandEvent)
		fields := logrus.Fields{
			"command": e.Command,
			"target":  e.Target,
		}
		if e.User != nil {
			fields["from"] = e.User.Nick
		}
		if len(e.URLs) > 0 {
			fields["urls"] = e.URLs
		}
		app.log.WithFields(fields).Info(e.PlainText)
	})
	bus.Subscribe(events.ChannelJoined, func(ev events.Event) {
		e := ev.(irc.ChannelJoinedEvent)
		app.log.WithFields(logrus.Fields{
			"channel": e.Channel.Name,
			"nick":    e.User.Nick,
		}).Info("joined")
	})
	bus.Subscribe(events.ChannelParted, func(ev events.Event) {
		e := ev.(irc.ChannelPartedEvent)
		app.log.WithFields(logrus.Fields{
			"channel": e.Channel.Name,
			"nick":    e.User.Nick,
			"reason":  e.Reason,
		}).Info("parted")
	})
	bus.Subscribe(events.UserKicked, func(ev events.Event) {
		e := ev.(irc.UserKickedEvent)
		app.log.WithFields(logrus.Fields{
			"channel": e.Channel.Name,
			"nick":    e.User.Nick,
			"by":      e.Kicker.String(),
			"reason":  e.Reason,
		}).Info("kicked")
	})
	bus.Subscribe(events.UserQuit, func(ev events.Event) {
		e := ev.(irc.UserQuitEvent)
		app.log.WithFields(logrus.Fields{
			"nick":     e.User.Nick,
			"channels": e.Channels,
			"reason":   e.Reason,
		}).Info("quit")
	})
	bus.Subscribe(events.NicknameChanged, func(ev events.Event) {
		e := ev.(irc.NicknameChangedEvent)
		app.log.WithFields(logrus.Fields{
			"from": e.FormerNick,
			"to":   e.User.Nick,
		}).Info("nick changed")
	})
	bus.Subscribe(events.TopicChanged, func(ev events.Event) {
		e := ev.(irc.TopicChangedEvent)
		app.log.WithFields(logrus.Fields{
			"channel": e.Channel.Name,
			"by":      e.Channel.TopicWho.String(),
		}).Info(e.Channel.Topic)
	})
	bus.Subscribe(events.ModesChanged, func(ev events.Event) {
		e := ev.(irc.ModesChangedEvent)
		entry := app.log.WithField("modes", e.Modes.String())
		if e.Channel != nil {
			entry = entry.WithField("channel", e.Channel.Name)
		}
		entry.Info("modes changed")
	})
	bus.Subscribe(events.InvitedIntoChannel, func(ev events.Event) {
		e := ev.(irc.InvitedIntoChannelEvent)
		entry := app.log.WithFields(logrus.Fields{
			"channel": e.Channel.Name,
			"invitee": e.Invitee,
		})
		if e.Inviter != nil {
			entry = entry.WithField("inviter", e.Inviter.Nick)
		}
		entry.Info("invited")
	})
	bus.Subscribe(events.UserlistUpdated, func(ev events.Event) {
		e := ev.(irc.UserlistUpdatedEvent)
		entry := app.log.WithField("users", len(e.Users))
		if e.Channel != nil {
			entry = entry.WithField("channel", e.Channel.Name)
		}
		entry.Debug("userlist updated")
	})
	bus.Subscribe(events.UserAwayStatusChanged, func(ev events.Event) {
		e := ev.(irc.UserAwayStatusChangedEvent)
		app.log.WithFields(logrus.Fields{
			"nick":    e.User.Nick,
			"away":    e.User.Away,
			"message": e.User.AwayMessage,
		}).Info("away status changed")
	})
	bus.Subscribe(events.ConnectionLost, func(ev events.Event) {
		app.log.WithError(ev.(irc.ConnectionLostEvent).Err).Debug("transport closed")
	})
}

// redact hides the secrets of a message before it is logged.
func redact(msg irc.Message) irc.Message {
	const placeholder = "<removed>"
	d := msg
	if msg.Command == "PASS" && len(d.Params) >= 1 {
		d.Params = append([]string{placeholder}, d.Params[1:]...)
	} else if msg.Command == "OPER" && len(d.Params) >= 2 {
		d.Params = append([]string{d.Params[0], placeholder}, d.Params[2:]...)
	}
	return d
}

func BuildVersion() (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	if info.Main.Version == "(devel)" {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value, true
			}
		}
		return "", false
	}
	return info.Main.Version, true
}
