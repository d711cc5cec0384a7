package clientmqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"cuety2mqtt/internal/actions"
	"cuety2mqtt/internal/artnet"
	"cuety2mqtt/internal/feedback"
	"cuety2mqtt/internal/logger"
	"cuety2mqtt/internal/state"
	"cuety2mqtt/internal/udp"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ClientMQTT структура клиента MQTT.
type ClientMQTT struct {
	ctx       context.Context
	log       logger.Logger
	cfgClient MQTTConf
	client    mqtt.Client
	opts      *mqtt.ClientOptions
	vars      VariableSource
	handler   ActionHandler
}

// NewClient конструктор.
func NewClient(log logger.Logger, cfgClient MQTTConf, vars VariableSource, handler ActionHandler) *ClientMQTT {
	return &ClientMQTT{
		log:       log,
		cfgClient: cfgClient,
		vars:      vars,
		handler:   handler,
	}
}

func (c *ClientMQTT) Start(ctx context.Context) error {
	if c.log.GetLevel() == "debug" || c.log.GetLevel() == "trace" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.ctx = ctx

	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetWill(c.topic(topicAvailability), "offline", c.cfgClient.Qos, true).
		SetOrderMatters(false).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.log.With(logger.Fields{"module": "mqtt"}).Infof("Status: %v", c.client.IsConnected())
	return nil
}

func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Publish(c.topic(topicAvailability), c.cfgClient.Qos, true, "offline").WaitTimeout(time.Second)
		c.client.Disconnect(500)
	}
	return nil
}

func (c *ClientMQTT) topic(parts ...string) string {
	return strings.Join(append([]string{c.cfgClient.Prefix}, parts...), "/")
}

// connectHandler runs on every (re)connect: subscriptions and retained state
// are restored because the session is clean.
func (c *ClientMQTT) connectHandler(_ mqtt.Client) {
	c.log.With(logger.Fields{"module": "mqtt"}).Info("client connected to server")
	c.sub(c.topic(topicAction, "+"))
	c.publish(c.topic(topicAvailability), true, []byte("online"))
	c.publishJSON(c.topic(topicDefinitions, "actions"), actions.Definitions())
	c.publishJSON(c.topic(topicDefinitions, "feedbacks"), feedback.Definitions())
	if c.vars != nil {
		for _, v := range c.vars.Variables() {
			c.Publish(v.Name, v.Value)
		}
	}
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.With(logger.Fields{"module": "mqtt"}).Errorf("server connect lost: %v", err)
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.log.With(logger.Fields{"module": "mqtt"}).Debugf("received message: %s from topic: %s", msg.Payload(), msg.Topic())
	if err := c.handleAction(msg.Topic(), msg.Payload()); err != nil {
		c.log.With(logger.Fields{"module": "mqtt"}).Errorf("action rejected: %v", err)
	}
}

// handleAction decodes <prefix>/action/<id> with a JSON option bag payload.
func (c *ClientMQTT) handleAction(topic string, payload []byte) error {
	id := strings.TrimPrefix(topic, c.topic(topicAction)+"/")
	if id == topic || id == "" {
		return fmt.Errorf("unexpected topic %s", topic)
	}

	var opts actions.Options
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &opts); err != nil {
			return fmt.Errorf("message could not be parsed (%s): %w", payload, err)
		}
	}
	a, err := actions.Validate(actions.Action{ID: id, Options: opts})
	if err != nil {
		return err
	}
	return c.handler.Dispatch(a)
}

func (c *ClientMQTT) sub(topic string) {
	token := c.client.Subscribe(topic, c.cfgClient.Qos, c.messageHandler)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.With(logger.Fields{"module": "mqtt"}).Errorf("topic %s subscription error. %v", topic, token.Error())
				return
			}
		}
		c.log.With(logger.Fields{"module": "mqtt"}).Debugf("topic %s subscribed", topic)
	}()
}

// Publish sends a variable value, retained, to <prefix>/variables/<name>.
func (c *ClientMQTT) Publish(name string, value state.Value) {
	c.publish(c.topic(topicVariables, name), true, []byte(value.String()))
}

// PublishFeedback sends the style decision of a control.
func (c *ClientMQTT) PublishFeedback(control feedback.Control, style feedback.Style, override bool) {
	p := FeedbackPayload{Kind: control.Kind, Override: override}
	if control.Kind != feedback.BlackoutMode {
		p.Index = control.Options.Index
	}
	if override {
		p.Style = &style
	}
	c.publishJSON(c.topic(topicFeedback, control.Name), p)
}

// PublishStatus sends the transport health.
func (c *ClientMQTT) PublishStatus(status udp.Status, message string) {
	c.publishJSON(c.topic(topicStatus), StatusPayload{Status: string(status), Message: message})
}

// PublishNodes sends the visible Art-Net nodes.
func (c *ClientMQTT) PublishNodes(nodes []artnet.Node) {
	c.publishJSON(c.topic(topicArtNet, "nodes"), nodes)
}

func (c *ClientMQTT) publishJSON(topic string, v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		c.log.With(logger.Fields{"module": "mqtt"}).Errorf("public topic %s. msg: %v", topic, err)
		return
	}
	c.publish(topic, true, msg)
}

func (c *ClientMQTT) publish(topic string, retained bool, payload []byte) {
	if c.client == nil {
		return
	}
	token := c.client.Publish(topic, c.cfgClient.Qos, retained, payload)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.With(logger.Fields{"module": "mqtt"}).Debugf("error publish topic %s. %v", topic, token.Error())
			}
		}
	}()
}
