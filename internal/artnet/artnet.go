package artnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cuety2mqtt/internal/logger"
	"cuety2mqtt/internal/state"
	"github.com/Haba1234/go-artnet"
)

const intensityPrefix = "playback_" + string(state.Intensity) + "_"

// ArtNet is transport for the ArtNet protocol (DMX over UDP/IP). It mirrors
// playback intensities: slot i drives channel i-1 of the configured universe.
type ArtNet struct {
	logger      logger.Logger
	sender      *artnet.Controller
	nodes       NodeSink
	state       *State
	universe    uint16
	sendTrigger chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewController returns an art-net mirror bound to the interface inside cfg.Network.
func NewController(log logger.Logger, cfg Conf, nodes NodeSink) (*ArtNet, error) {
	ip, err := FindArtNetIP(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}

	if len(ip) == 0 {
		return nil, errors.New("failed to find the art-net IP: No interface found")
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}

	host = strings.ToLower(strings.Split(host, ".")[0])
	log.With(logger.Fields{"module": "art-net"}).Infof("Using ArtNet IP %s and hostname %s", ip.String(), host)

	senderLogger := artnet.NewDefaultLogger("info")

	return newArtNet(log, cfg, artnet.NewController(host, ip, senderLogger, artnet.MaxFPS(1)), nodes), nil
}

func newArtNet(log logger.Logger, cfg Conf, sender *artnet.Controller, nodes NodeSink) *ArtNet {
	return &ArtNet{
		logger:      log,
		sender:      sender,
		nodes:       nodes,
		state:       NewState(),
		universe:    cfg.Universe,
		sendTrigger: make(chan struct{}, 1),
	}
}

// Start the ArtNet.
func (c *ArtNet) Start(ctx context.Context) error {
	if err := c.sender.Start(); err != nil {
		return fmt.Errorf("failed to start Controller: %w", err)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.sendBackground()
	go c.debugDevices()
	return nil
}

// Stop the ArtNet.
func (c *ArtNet) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.sender.Stop()
}

// Publish implements state.Publisher. Only playback intensities are mirrored.
func (c *ArtNet) Publish(name string, value state.Value) {
	cv, ok := c.channelValue(name, value)
	if !ok {
		return
	}
	c.SetDMXChannelValue(cv)
}

func (c *ArtNet) SetDMXChannelValue(value ChannelValue) {
	c.state.SetChannel(value.Universe, value.Channel, value.Value)
	c.triggerSend()
}

// triggerSend wakes the sender; pending triggers are coalesced because the
// sender always transmits the latest state.
func (c *ArtNet) triggerSend() {
	select {
	case c.sendTrigger <- struct{}{}:
	default:
	}
}

func (c *ArtNet) channelValue(name string, value state.Value) (ChannelValue, bool) {
	if !strings.HasPrefix(name, intensityPrefix) {
		return ChannelValue{}, false
	}
	index, err := strconv.Atoi(strings.TrimPrefix(name, intensityPrefix))
	if err != nil || index < 1 || index > state.PlaybackCount {
		return ChannelValue{}, false
	}
	return ChannelValue{
		Universe: c.universe,
		Channel:  uint16(index - 1),
		Value:    percentToDMX(value.String()),
	}, true
}

// percentToDMX scales an intensity percentage (0-100) to 0-255. Empty or
// unparsable values map to 0.
func percentToDMX(s string) uint8 {
	pct, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || pct <= 0 {
		return 0
	}
	if pct >= 100 {
		return 255
	}
	return uint8(pct * 255 / 100)
}

func (c *ArtNet) sendBackground() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.sendTrigger:
			for u, dmx := range c.state.Get() {
				// u - адрес.
				// dmx - массив данных до 512 байт.
				c.logger.With(logger.Fields{"module": "art-net"}).Tracef("DMX. Отправка в контроллер по адресу %v", u)
				c.sender.SendDMXToAddress(dmx, universeToAddress(u))
			}
		}
	}
}

// universeToAddress converts a dmx universe to art-net address
// universe: старший байт - SubUni, младший байт - Net.
func universeToAddress(universe uint16) artnet.Address {
	v := make([]uint8, 2)
	binary.BigEndian.PutUint16(v, universe)

	return artnet.Address{
		Net:    v[0],
		SubUni: v[1],
	}
}

// nodeInfo returns a description of the given Node.
func nodeInfo(n *artnet.ControlledNode) Node {
	node := Node{
		IP:           n.UDPAddress.String(),
		Name:         fmt.Sprint(n.Node.Name),
		Type:         fmt.Sprint(n.Node.Type),
		Manufacturer: fmt.Sprint(n.Node.Manufacturer),
		Description:  fmt.Sprint(n.Node.Description),
	}
	for _, p := range n.Node.InputPorts {
		node.Inputs = append(node.Inputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}
	for _, p := range n.Node.OutputPorts {
		node.Outputs = append(node.Outputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}
	return node
}

func (c *ArtNet) debugDevices() {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
		}
		nodes := make([]Node, 0, len(c.sender.Nodes))
		for _, n := range c.sender.Nodes {
			nodes = append(nodes, nodeInfo(n))
		}
		c.logger.With(logger.Fields{"module": "art-net"}).Debugf("Currently %d devices are registered: %v", len(nodes), nodes)
		if c.nodes != nil {
			c.nodes.PublishNodes(nodes)
		}
	}
}
