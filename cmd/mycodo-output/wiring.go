package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"

	"github.com/mycodo-go/mycodo-go/pkg/config"
	"github.com/mycodo-go/mycodo-go/pkg/discovery"
	"github.com/mycodo-go/mycodo-go/pkg/driver"
	eventlog "github.com/mycodo-go/mycodo-go/pkg/log"
	"github.com/mycodo-go/mycodo-go/pkg/metrics"
	"github.com/mycodo-go/mycodo-go/pkg/output"
	"github.com/mycodo-go/mycodo-go/pkg/publish"
)

// connectMQTT returns nil when no broker is configured.
func connectMQTT(cfg config.Config, logger *slog.Logger) (mqtt.Client, error) {
	if cfg.MQTT.Broker == "" {
		return nil, nil
	}
	client, err := driver.ConnectMQTT(driver.MQTTClientConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect mqtt %s: %w", cfg.MQTT.Broker, err)
	}
	return client, nil
}

// buildDrivers maps every output type to the driver serving it. Types
// without a driver cannot be added.
func buildDrivers(cfg config.Config, logger *slog.Logger, client mqtt.Client) *driver.Set {
	set := driver.NewSet()

	if cfg.Simulate {
		set.Register(driver.NewSimulated(logger),
			output.TypeWired, output.TypePWM, output.TypePeristalticPump, output.TypeWirelessRF)
	}

	shell := driver.NewShell(logger)
	if cfg.Shell != "" {
		shell.Shell = cfg.Shell
	}
	set.Register(shell, output.TypeCommand, output.TypeCommandPWM, output.TypeScripted, output.TypeScriptedPWM)

	if client != nil {
		mcfg := driver.DefaultMQTTConfig()
		mcfg.TopicPrefix = cfg.MQTT.TopicPrefix
		mcfg.Logger = logger
		// RF outlets are bridged through an MQTT gateway when a broker is
		// available, replacing the simulator.
		set.Register(driver.NewMQTT(client, mcfg), output.TypeMQTT, output.TypeWirelessRF)
	}

	if cfg.SerialPumps {
		set.Register(driver.NewSerialPump(driver.OpenSerial, logger), output.TypeAtlasPump)
	}
	return set
}

// eventPipeline fans output events out to the file log, the debug log and
// the configured publishers.
type eventPipeline struct {
	file   *eventlog.FileLogger
	sinks  []*publish.Sink
	logger eventlog.Logger
}

func buildEventLogger(cfg config.Config, logger *slog.Logger, m *metrics.Metrics, client mqtt.Client) (*eventPipeline, error) {
	p := &eventPipeline{}
	loggers := []eventlog.Logger{eventlog.NewSlogAdapter(logger)}

	if cfg.EventLog != "" {
		fl, err := eventlog.NewFileLogger(cfg.EventLog)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		p.file = fl
		loggers = append(loggers, fl)
	}

	if client != nil && cfg.MQTT.EventPrefix != "" {
		p.sinks = append(p.sinks, publish.NewSink(
			publish.NewMQTTTransport(client, cfg.MQTT.EventPrefix, 1),
			publish.Config{Name: "mqtt", Logger: logger, Metrics: m},
		))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kt, err := publish.NewKafkaTransport(publish.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			p.Close()
			return nil, err
		}
		// State changes only; commands are high volume and stay local.
		p.sinks = append(p.sinks, publish.NewSink(kt, publish.Config{
			Name:       "kafka",
			Categories: []eventlog.Category{eventlog.CategoryState, eventlog.CategoryError},
			Logger:     logger,
			Metrics:    m,
		}))
	}

	for _, s := range p.sinks {
		loggers = append(loggers, s)
	}
	p.logger = eventlog.NewMultiLogger(loggers...)
	return p, nil
}

func (p *eventPipeline) Logger() eventlog.Logger {
	return p.logger
}

// Start runs the publishers in g until ctx is done.
func (p *eventPipeline) Start(ctx context.Context, g *errgroup.Group) {
	for _, s := range p.sinks {
		g.Go(func() error { return s.Run(ctx) })
	}
}

func (p *eventPipeline) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// advertise announces the REST API over mDNS.
func advertise(cfg config.Config, logger *slog.Logger, types []output.Type) (*discovery.Advertiser, error) {
	_, portStr, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen address %q: %w", cfg.Listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("listen port %q: %w", portStr, err)
	}

	instance := cfg.MDNS.Instance
	if instance == "" {
		host, _ := os.Hostname()
		instance = strings.TrimSpace("Mycodo Outputs " + host)
		if len(instance) > discovery.MaxInstanceNameLen {
			instance = instance[:discovery.MaxInstanceNameLen]
		}
	}

	advCfg := discovery.DefaultAdvertiserConfig()
	advCfg.Interface = cfg.MDNS.Interface
	advCfg.Logger = logger

	adv := discovery.NewAdvertiser(advCfg)
	err = adv.Advertise(&discovery.ServiceInfo{
		Instance: instance,
		Port:     port,
		Version:  Version,
		APIPath:  apiPrefix,
		Types:    types,
	})
	if err != nil {
		return nil, err
	}
	return adv, nil
}
