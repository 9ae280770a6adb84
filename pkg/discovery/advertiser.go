package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration

	Logger *slog.Logger
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: DefaultTTL}
}

// server is the part of *zeroconf.Server the advertiser uses.
type server interface {
	SetText(text []string)
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
}

// Advertiser announces the output API over mDNS.
type Advertiser struct {
	config   AdvertiserConfig
	register registerFunc

	mu     sync.Mutex
	server server
}

// NewAdvertiser creates an advertiser. Call Advertise to start announcing.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{config: config, register: zeroconfRegister}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *Advertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise registers the service, replacing an earlier registration.
func (a *Advertiser) Advertise(info *ServiceInfo) error {
	txt := TXTRecordsToStrings(EncodeTXT(info))
	if err := validate(info, txt); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	srv, err := a.register(info.Instance, ServiceType, Domain, info.Port, txt, a.getInterfaces(), opts...)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ServiceType, err)
	}
	a.server = srv

	if a.config.Logger != nil {
		a.config.Logger.Info("advertising output API", "instance", info.Instance, "port", info.Port)
	}
	return nil
}

// Update replaces the TXT records of the running registration.
func (a *Advertiser) Update(info *ServiceInfo) error {
	txt := TXTRecordsToStrings(EncodeTXT(info))

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return fmt.Errorf("%s not advertised", ServiceType)
	}
	a.server.SetText(txt)
	return nil
}

// Stop withdraws the registration. Stopping a stopped advertiser is a no-op.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
