package oscserver

import (
	"context"

	"cuety2mqtt/internal/logger"
	"cuety2mqtt/internal/state"
	"github.com/hypebeast/go-osc/osc"
)

// mirrorQueue bounds the messages waiting for the sender goroutine.
const mirrorQueue = 256

type packetSender interface {
	Send(packet osc.Packet) error
}

// Mirror sends every variable change as /<prefix>/<name> <value>. Publish
// only queues the message; a background goroutine does the network write.
type Mirror struct {
	log    logger.Logger
	client packetSender
	prefix string
	queue  chan *osc.Message
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMirror конструктор.
func NewMirror(log logger.Logger, host string, port int, prefix string) *Mirror {
	return newMirror(log, osc.NewClient(host, port), prefix)
}

func newMirror(log logger.Logger, client packetSender, prefix string) *Mirror {
	return &Mirror{
		log:    log,
		client: client,
		prefix: prefix,
		queue:  make(chan *osc.Message, mirrorQueue),
		done:   make(chan struct{}),
	}
}

// Start runs the sender until ctx is done or Stop is called.
func (m *Mirror) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.sendBackground(ctx)
}

// Stop drops the queued messages and waits for the sender to exit.
func (m *Mirror) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Publish implements state.Publisher. A full queue drops the message.
func (m *Mirror) Publish(name string, value state.Value) {
	msg := osc.NewMessage("/" + m.prefix + "/" + name)
	if value.IsBool() {
		msg.Append(value.String() == "true")
	} else {
		msg.Append(value.String())
	}
	select {
	case m.queue <- msg:
	default:
		m.log.With(logger.Fields{"module": "osc"}).Warnf("mirror queue full, dropping %s", msg.Address)
	}
}

func (m *Mirror) sendBackground(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.queue:
			if err := m.client.Send(msg); err != nil {
				m.log.With(logger.Fields{"module": "osc"}).Debugf("mirror %s: %v", msg.Address, err)
			}
		}
	}
}
