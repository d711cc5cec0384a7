package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cuety2mqtt/internal/artnet"
	"cuety2mqtt/internal/bridge"
	"cuety2mqtt/internal/broker"
	"cuety2mqtt/internal/clientmqtt"
	"cuety2mqtt/internal/config"
	"cuety2mqtt/internal/feedback"
	"cuety2mqtt/internal/httpapi"
	"cuety2mqtt/internal/logger"
	"cuety2mqtt/internal/oscserver"
	"cuety2mqtt/internal/state"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}

	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	controls, err := cfg.Controls()
	if err != nil {
		log.With(logger.Fields{"module": "config"}).Errorf("invalid feedback controls: %v", err)
		os.Exit(1)
	}

	store := state.NewStore()
	checker := feedback.NewChecker(feedback.NewEvaluator(store), controls)
	br := bridge.NewBridge(log, store, checker)

	var mb *broker.Broker
	if cfg.MQTT.EmbeddedBroker != "" {
		mb = broker.NewBroker(log, broker.Conf{
			Address:  cfg.MQTT.EmbeddedBroker,
			User:     cfg.MQTT.User,
			Password: cfg.MQTT.Password,
		})
	}

	client := clientmqtt.NewClient(log, ConvertConfigClientMQTT(cfg.MQTT), store, br)
	store.AddPublisher(client)
	checker.AddSink(client)
	br.AddStatusSink(client)
	log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")

	var mirror *oscserver.Mirror
	if cfg.OSC.MirrorHost != "" {
		mirror = oscserver.NewMirror(log, cfg.OSC.MirrorHost, cfg.OSC.MirrorPort, cfg.OSC.Prefix)
		store.AddPublisher(mirror)
	}

	var a *artnet.ArtNet
	if cfg.ArtNet.Enabled {
		a, err = artnet.NewController(log, artnet.Conf{Network: cfg.ArtNet.Network, Universe: cfg.ArtNet.Universe}, client)
		if err != nil {
			log.With(logger.Fields{"module": "art-net"}).Errorf("error while creating a new controller art-net. %v", err)
			os.Exit(1)
		}
		store.AddPublisher(a)
		log.With(logger.Fields{"module": "art-net"}).Debug("NewController created ok")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if mb != nil {
		if err = mb.Start(); err != nil {
			log.Error("failed to start embedded broker:", err.Error())
			cancel()
		}
	}

	if a != nil {
		if err = a.Start(ctx); err != nil {
			log.Error("failed to start art-net service:", err.Error())
			cancel()
		}
	}

	if err = client.Start(ctx); err != nil {
		log.Error("failed to start MQTT service:", err.Error())
		cancel()
	}

	if mirror != nil {
		mirror.Start(ctx)
	}

	var oscSrv *oscserver.Server
	if cfg.OSC.Listen != "" {
		oscSrv = oscserver.NewServer(log, oscserver.Conf{Listen: cfg.OSC.Listen, Prefix: cfg.OSC.Prefix}, br)
		if err = oscSrv.Start(); err != nil {
			log.Error("failed to start OSC service:", err.Error())
			cancel()
		}
	}

	var api *httpapi.Server
	if cfg.HTTP.Listen != "" {
		api = httpapi.NewServer(log, cfg.HTTP.Listen, br, store, checker)
		if err = api.Start(); err != nil {
			log.Error("failed to start HTTP service:", err.Error())
			cancel()
		}
	}

	if err = br.Start(ctx, cfg.Device); err != nil {
		log.Error("failed to start bridge:", err.Error())
		cancel()
	}

	device := cfg.Device
	err = config.Watch(ctx, configFile, func(next *config.Config) {
		if err := log.SetLevel(next.Logger.Level); err != nil {
			log.With(logger.Fields{"module": "config"}).Warn(err.Error())
		}
		if next.Device == device {
			return
		}
		device = next.Device
		log.With(logger.Fields{"module": "config"}).Infof("device changed to %s:%s, reconfiguring", device.Host, device.Port)
		if err := br.Reconfigure(device); err != nil {
			log.With(logger.Fields{"module": "config"}).Errorf("reconfigure: %v", err)
		}
	}, func(err error) {
		log.With(logger.Fields{"module": "config"}).Errorf("configuration reload failed: %v", err)
	})
	if err != nil {
		log.With(logger.Fields{"module": "config"}).Warnf("configuration hot reload disabled: %v", err)
	}

	<-ctx.Done()

	if api != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 3*time.Second)
		if err := api.Stop(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP service:", err.Error())
		}
		stop()
	}

	if oscSrv != nil {
		if err := oscSrv.Stop(); err != nil {
			log.Error("failed to stop OSC service:", err.Error())
		}
	}

	br.Stop()

	if mirror != nil {
		mirror.Stop()
	}

	if err := client.Stop(); err != nil {
		log.Error("failed to stop MQTT service:", err.Error())
	}

	if a != nil {
		a.Stop()
	}

	if mb != nil {
		if err := mb.Stop(); err != nil {
			log.Error("failed to stop embedded broker:", err.Error())
		}
	}

	log.Info("shutdown complete")
}

// ConvertConfigClientMQTT преобразует структуры.
func ConvertConfigClientMQTT(cfg config.MQTTConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID: cfg.ClientID,
		Schema:   "tcp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Qos:      cfg.Qos,
		Prefix:   cfg.Prefix,
	}
}
