package clientmqtt

import (
	"cuety2mqtt/internal/actions"
	"cuety2mqtt/internal/feedback"
	"cuety2mqtt/internal/state"
)

type MQTTConf struct {
	ClientID string // ClientID - уникальное имя клиента для брокеров.
	Schema   string // Schema - тип подключения.
	Host     string // Host - адрес MQTT сервера.
	Port     string // Port - порт MQTT сервера.
	User     string // User - логин для подключения к MQTT серверу.
	Password string // Password - пароль для подключения к MQTT серверу.
	Qos      byte   // Qos - качество обслуживания.
	Prefix   string // Prefix - корень всех топиков.
}

// ActionHandler runs validated actions.
type ActionHandler interface {
	Dispatch(a actions.Action) error
}

// VariableSource provides the full variable set for republishing after a (re)connect.
type VariableSource interface {
	Variables() []state.Variable
}

// FeedbackPayload is published retained to <prefix>/feedback/<control>.
type FeedbackPayload struct {
	Kind     feedback.Kind `json:"kind"`
	Index    int           `json:"index,omitempty"`
	Override bool          `json:"override"`
	*feedback.Style
}

// StatusPayload is published retained to <prefix>/status.
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	topicVariables    = "variables"
	topicFeedback     = "feedback"
	topicStatus       = "status"
	topicAction       = "action"
	topicAvailability = "availability"
	topicDefinitions  = "definitions"
	topicArtNet       = "artnet"
)
