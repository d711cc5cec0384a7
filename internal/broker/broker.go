// Package broker runs an optional in-process MQTT broker, so the bridge can
// serve control surfaces without an external one.
package broker

import (
	"bytes"
	"errors"

	"cuety2mqtt/internal/logger"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

type Conf struct {
	Address  string // Address - адрес прослушивания, например ":1883".
	User     string // User - если задан, подключение только с этим логином.
	Password string // Password - пароль для User.
}

// Broker встроенный MQTT брокер.
type Broker struct {
	log    logger.Logger
	cfg    Conf
	server *mochi.Server
}

// NewBroker конструктор.
func NewBroker(log logger.Logger, cfg Conf) *Broker {
	return &Broker{
		log:    log,
		cfg:    cfg,
		server: mochi.New(&mochi.Options{InlineClient: true}),
	}
}

func (b *Broker) Start() error {
	if b.cfg.Address == "" {
		return errors.New("broker. Empty listen address")
	}

	if err := b.addAuth(); err != nil {
		return err
	}
	if err := b.server.AddHook(&sessionLogHook{log: b.log}, nil); err != nil {
		return err
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: b.cfg.Address})
	if err := b.server.AddListener(tcp); err != nil {
		return err
	}

	if err := b.server.Serve(); err != nil {
		return err
	}
	b.log.With(logger.Fields{"module": "broker"}).Infof("embedded broker listening on %s", b.cfg.Address)
	return nil
}

func (b *Broker) Stop() error {
	return b.server.Close()
}

func (b *Broker) addAuth() error {
	if b.cfg.User == "" {
		return b.server.AddHook(new(auth.AllowHook), nil)
	}
	options := auth.Options{
		Ledger: &auth.Ledger{
			Auth: auth.AuthRules{
				{Username: auth.RString(b.cfg.User), Password: auth.RString(b.cfg.Password), Allow: true},
			},
			ACL: auth.ACLRules{
				{Filters: auth.Filters{"#": auth.ReadWrite}},
			},
		},
	}
	return b.server.AddHook(new(auth.Hook), &options)
}

type sessionLogHook struct {
	mochi.HookBase
	log logger.Logger
}

func (h *sessionLogHook) ID() string {
	return "session-log"
}

func (h *sessionLogHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mochi.OnSessionEstablished,
		mochi.OnDisconnect,
	}, []byte{b})
}

func (h *sessionLogHook) OnSessionEstablished(cl *mochi.Client, _ packets.Packet) {
	h.log.With(logger.Fields{"module": "broker", "client": cl.ID}).Debug("client connected")
}

func (h *sessionLogHook) OnDisconnect(cl *mochi.Client, err error, _ bool) {
	h.log.With(logger.Fields{"module": "broker", "client": cl.ID}).Debugf("client disconnected: %v", err)
}
