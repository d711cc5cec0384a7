package broker

import (
	"net"
	"testing"
	"time"

	"cuety2mqtt/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func connect(t *testing.T, addr, id, user, password string) (mqtt.Client, error) {
	t.Helper()
	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + addr).
		SetClientID(id).
		SetUsername(user).
		SetPassword(password)
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		t.Fatal("connect timeout")
	}
	return c, token.Error()
}

func TestBrokerRetainedRoundTrip(t *testing.T) {
	addr := freeAddr(t)
	b := NewBroker(logger.Discard(), Conf{Address: addr})
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()

	pub, err := connect(t, addr, "pub", "", "")
	if err != nil {
		t.Fatal(err)
	}
	defer pub.Disconnect(100)

	token := pub.Publish("cuety/variables/blackout_mode", 1, true, "true")
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("publish: %v", token.Error())
	}

	sub, err := connect(t, addr, "sub", "", "")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Disconnect(100)

	got := make(chan string, 1)
	token = sub.Subscribe("cuety/variables/#", 1, func(_ mqtt.Client, m mqtt.Message) {
		select {
		case got <- string(m.Payload()):
		default:
		}
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	select {
	case v := <-got:
		if v != "true" {
			t.Errorf("retained payload = %q", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retained message not delivered")
	}
}

func TestBrokerRequiresCredentials(t *testing.T) {
	addr := freeAddr(t)
	b := NewBroker(logger.Discard(), Conf{Address: addr, User: "desk", Password: "secret"})
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()

	if _, err := connect(t, addr, "anon", "", ""); err == nil {
		t.Error("anonymous client accepted")
	}
	c, err := connect(t, addr, "desk", "desk", "secret")
	if err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}
	c.Disconnect(100)
}

func TestBrokerEmptyAddress(t *testing.T) {
	if err := NewBroker(logger.Discard(), Conf{}).Start(); err == nil {
		t.Error("expected error for empty address")
	}
}
