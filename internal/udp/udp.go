// Package udp is the datagram transport to the console: fire-and-forget
// sends, a receive loop and status notifications.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"cuety2mqtt/internal/logger"
)

// Status is the health of the transport as reported to surfaces.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOK      Status = "ok"
	StatusError   Status = "error"
)

const maxDatagram = 65507

// Handlers receive transport events. They are called from the receive
// goroutine or the sender's goroutine and must not block for long.
type Handlers struct {
	OnData   func(data []byte)
	OnStatus func(status Status, message string)
}

// Client sends ASCII datagrams to one console and receives its replies.
type Client struct {
	log      logger.Logger
	conn     *net.UDPConn
	remote   *net.UDPAddr
	handlers Handlers
	closed   atomic.Bool
	failing  atomic.Bool
}

// Dial opens a local socket for talking to host:port and starts receiving.
func Dial(log logger.Logger, host, port string, h Handlers) (*Client, error) {
	remote, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s:%s: %w", host, port, err)
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open udp socket: %w", err)
	}

	c := &Client{
		log:      log,
		conn:     conn,
		remote:   remote,
		handlers: h,
	}
	go c.readLoop()

	c.log.With(logger.Fields{"module": "udp"}).Infof("sending to %s from %s", remote, conn.LocalAddr())
	c.status(StatusOK, "")
	return c, nil
}

// Send transmits msg as one datagram. Failures are reported through
// OnStatus; sends on a closed client are dropped.
func (c *Client) Send(msg string) {
	if c.closed.Load() {
		return
	}
	if _, err := c.conn.WriteToUDP([]byte(msg), c.remote); err != nil {
		if c.closed.Load() {
			return
		}
		c.log.With(logger.Fields{"module": "udp"}).Errorf("send %q: %v", msg, err)
		c.failing.Store(true)
		c.status(StatusError, err.Error())
		return
	}
	if c.failing.CompareAndSwap(true, false) {
		c.status(StatusOK, "")
	}
}

// LocalAddr returns the address replies are received on.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close stops the receive loop without waiting for it. Later sends are
// no-ops; a datagram already read may still reach OnData.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) readLoop() {
	buf := make([]byte, maxDatagram)
	for {
		n, from, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if c.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.With(logger.Fields{"module": "udp"}).Warnf("receive: %v", err)
			c.status(StatusError, err.Error())
			continue
		}
		c.log.With(logger.Fields{"module": "udp"}).Tracef("received %q from %s", buf[:n], from)
		if c.handlers.OnData != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			c.handlers.OnData(data)
		}
	}
}

func (c *Client) status(s Status, msg string) {
	if c.handlers.OnStatus != nil {
		c.handlers.OnStatus(s, msg)
	}
}
