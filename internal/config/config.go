package config

import (
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config структура конфигурации.
type Config struct {
	Logger   LogConf        // Logger - конфигурация регистратора.
	Device   DeviceConf     // Device - адрес пульта.
	MQTT     MQTTConf       // MQTT - конфигурация MQTT клиента.
	OSC      OSCConf        // OSC - приём действий и зеркалирование переменных по OSC.
	HTTP     HTTPConf       // HTTP - REST API.
	ArtNet   ArtNetConf     // ArtNet - зеркалирование интенсивностей в DMX.
	Feedback []FeedbackConf // Feedback - кнопки с обратной связью.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level string `toml:"log-level"` // Level - уровень логирования.
}

// DeviceConf describes the console. An empty Host disables the transport.
type DeviceConf struct {
	Host string `toml:"host"` // Host - IP адрес пульта.
	Port string `toml:"port"` // Port - UDP порт пульта.
	Poll bool   `toml:"poll"` // Poll - запрашивать состояние каждую секунду.
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	ClientID       string `toml:"clientID"`        // ClientID - имя клиента.
	Host           string `toml:"server"`          // Host - адрес MQTT сервера.
	Port           string `toml:"port"`            // Port - порт MQTT сервера.
	User           string `toml:"user"`            // User - логин для подключения к MQTT серверу.
	Password       string `toml:"password"`        // Password - пароль для подключения к MQTT серверу.
	Qos            byte   `toml:"qos"`             // Qos - качество обслуживания.
	Prefix         string `toml:"prefix"`          // Prefix - корень всех топиков.
	EmbeddedBroker string `toml:"embedded-broker"` // EmbeddedBroker - адрес встроенного брокера, пусто - не запускать.
}

// OSCConf структура конфигурации.
type OSCConf struct {
	Listen     string `toml:"listen"`      // Listen - адрес приёма OSC, пусто - выключено.
	Prefix     string `toml:"prefix"`      // Prefix - первый сегмент OSC адреса.
	MirrorHost string `toml:"mirror-host"` // MirrorHost - куда отправлять изменения переменных.
	MirrorPort int    `toml:"mirror-port"`
}

// HTTPConf структура конфигурации.
type HTTPConf struct {
	Listen string `toml:"listen"` // Listen - адрес REST API, пусто - выключено.
}

// ArtNetConf структура конфигурации.
type ArtNetConf struct {
	Enabled  bool   `toml:"enabled"`
	Network  string `toml:"network"`  // Network - CIDR сети Art-Net.
	Universe uint16 `toml:"universe"` // Universe: старший байт - SubUni, младший байт - Net.
}

// FeedbackConf binds a named control to a feedback rule.
type FeedbackConf struct {
	Control string `toml:"control"`
	Kind    string `toml:"kind"`
	Index   int    `toml:"index"`
	Fg      string `toml:"fg"`
	Bg      string `toml:"bg"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info"},
		Device: DeviceConf{Port: "7000", Poll: true},
		MQTT: MQTTConf{
			ClientID: "cuety2mqtt",
			Host:     "127.0.0.1",
			Port:     "1883",
			Prefix:   "cuety",
		},
		OSC:    OSCConf{Prefix: "cuety"},
		ArtNet: ArtNetConf{Network: "192.168.6.0/24"},
	}
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	// default values
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// Validate checks values that the decoder cannot.
func (c *Config) Validate() error {
	if c.Device.Port != "" {
		if _, err := strconv.ParseUint(c.Device.Port, 10, 16); err != nil {
			return fmt.Errorf("device port %q: %w", c.Device.Port, err)
		}
	}
	if c.MQTT.Qos > 2 {
		return fmt.Errorf("mqtt qos %d: must be 0, 1 or 2", c.MQTT.Qos)
	}
	if _, err := c.Controls(); err != nil {
		return err
	}
	return nil
}
