// Package oscserver exposes actions over OSC and mirrors variable changes to an
// OSC target.
package oscserver

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"cuety2mqtt/internal/actions"
	"cuety2mqtt/internal/logger"
	"github.com/hypebeast/go-osc/osc"
)

type Conf struct {
	Listen string // Listen - адрес приёма OSC.
	Prefix string // Prefix - первый сегмент адреса.
}

// ActionHandler runs validated actions.
type ActionHandler interface {
	Dispatch(a actions.Action) error
}

// Server принимает OSC сообщения /<prefix>/<action> и передаёт их в обработчик.
type Server struct {
	log     logger.Logger
	cfg     Conf
	handler ActionHandler
	conn    net.PacketConn
}

// NewServer конструктор.
func NewServer(log logger.Logger, cfg Conf, handler ActionHandler) *Server {
	return &Server{log: log, cfg: cfg, handler: handler}
}

func (s *Server) Start() error {
	d, err := s.dispatcher()
	if err != nil {
		return err
	}
	conn, err := net.ListenPacket("udp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("osc. Listen %s: %w", s.cfg.Listen, err)
	}
	s.conn = conn

	server := &osc.Server{Dispatcher: d}
	go func() {
		if err := server.Serve(conn); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.With(logger.Fields{"module": "osc"}).Errorf("server stopped: %v", err)
		}
	}()
	s.log.With(logger.Fields{"module": "osc"}).Infof("listening on %s", conn.LocalAddr())
	return nil
}

func (s *Server) Stop() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Addr returns the bound address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *Server) dispatcher() (*osc.StandardDispatcher, error) {
	d := osc.NewStandardDispatcher()
	for _, def := range actions.Definitions() {
		def := def
		addr := "/" + s.cfg.Prefix + "/" + def.ID
		err := d.AddMsgHandler(addr, func(msg *osc.Message) {
			s.handle(def, msg.Arguments)
		})
		if err != nil {
			return nil, fmt.Errorf("osc. Handler %s: %w", addr, err)
		}
	}
	return d, nil
}

func (s *Server) handle(def actions.Definition, args []interface{}) {
	log := s.log.With(logger.Fields{"module": "osc", "action": def.ID})
	a, err := toAction(def, args)
	if err != nil {
		log.Errorf("action rejected: %v", err)
		return
	}
	if a, err = actions.Validate(a); err != nil {
		log.Errorf("action rejected: %v", err)
		return
	}
	if err := s.handler.Dispatch(a); err != nil {
		log.Errorf("dispatch: %v", err)
	}
}

// toAction binds positional OSC arguments to the options of def in declaration order.
func toAction(def actions.Definition, args []interface{}) (actions.Action, error) {
	if len(args) > len(def.Options) {
		return actions.Action{}, fmt.Errorf("%w: %s takes %d arguments, got %d",
			actions.ErrInvalidOption, def.ID, len(def.Options), len(args))
	}
	a := actions.Action{ID: def.ID, Options: make(actions.Options, len(args))}
	for i, arg := range args {
		v, err := argString(arg)
		if err != nil {
			return actions.Action{}, fmt.Errorf("%w: %s: %v", actions.ErrInvalidOption, def.Options[i].ID, err)
		}
		a.Options[def.Options[i].ID] = v
	}
	return a, nil
}

func argString(arg interface{}) (string, error) {
	switch v := arg.(type) {
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case string:
		return strings.TrimSpace(v), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	}
	return "", fmt.Errorf("unsupported argument type %T", arg)
}
