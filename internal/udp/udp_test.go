package udp

import (
	"net"
	"strconv"
	"testing"
	"time"

	"cuety2mqtt/internal/logger"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSendAndReceive(t *testing.T) {
	device := listen(t)
	port := strconv.Itoa(device.LocalAddr().(*net.UDPAddr).Port)

	received := make(chan string, 1)
	statuses := make(chan Status, 4)
	c, err := Dial(logger.Discard(), "127.0.0.1", port, Handlers{
		OnData:   func(data []byte) { received <- string(data) },
		OnStatus: func(s Status, _ string) { statuses <- s },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if s := <-statuses; s != StatusOK {
		t.Fatalf("got status %s", s)
	}

	c.Send("hello")

	buf := make([]byte, 64)
	device.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, from, err := device.ReadFromUDP(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q", buf[:n])
	}

	if _, err := device.WriteToUDP([]byte("blackout=1"), from); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-received:
		if got != "blackout=1" {
			t.Errorf("got %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no datagram delivered")
	}
}

func TestSendAfterCloseIsNoop(t *testing.T) {
	device := listen(t)
	port := strconv.Itoa(device.LocalAddr().(*net.UDPAddr).Port)

	c, err := Dial(logger.Discard(), "127.0.0.1", port, Handlers{})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	c.Send("pb05/bu=0")
	if err := c.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestDialBadPort(t *testing.T) {
	if _, err := Dial(logger.Discard(), "127.0.0.1", "seventy", Handlers{}); err == nil {
		t.Error("expected an error")
	}
}
