package platform

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/clock"
)

const (
	defaultLinkWait = 30 * time.Second
	linkPollEvery   = 500 * time.Millisecond
)

// Daemon is a supervised link daemon. *process.Supervisor satisfies it.
type Daemon interface {
	Name() string
	Start(ctx context.Context) error
	Running() bool
	Stop() error
}

// addrLookup reports whether iface ("" = any non-loopback) holds a usable address.
type addrLookup func(iface string) (bool, error)

// Link brings the network link up: it starts the optional link daemon and
// then waits until the interface holds a global unicast address.
type Link struct {
	iface   string
	wait    time.Duration
	daemon  Daemon
	clock   clock.Clock
	hasAddr addrLookup
	logger  Logger
}

// NewLink creates a Link for iface. daemon may be nil when the link is
// managed outside the node.
func NewLink(iface string, wait time.Duration, daemon Daemon, clk clock.Clock) *Link {
	if wait <= 0 {
		wait = defaultLinkWait
	}
	return &Link{
		iface:   iface,
		wait:    wait,
		daemon:  daemon,
		clock:   clk,
		hasAddr: interfaceHasAddr,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the link.
func (l *Link) SetLogger(logger Logger) {
	l.logger = logger
}

// Up starts the link daemon if needed and waits for an address.
func (l *Link) Up(ctx context.Context) error {
	if l.daemon != nil && !l.daemon.Running() {
		l.logger.Info("starting link daemon", "daemon", l.daemon.Name())
		if err := l.daemon.Start(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrLinkDaemon, err)
		}
	}

	deadline := l.clock.Now().Add(l.wait)
	for {
		ok, err := l.hasAddr(l.iface)
		if err != nil {
			l.logger.Debug("interface lookup failed", "interface", l.iface, "error", err)
		}
		if ok {
			l.logger.Info("network link up", "interface", l.ifaceLabel())
			return nil
		}
		if !l.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: %s after %v", ErrLinkTimeout, l.ifaceLabel(), l.wait)
		}
		if err := l.clock.Sleep(ctx, linkPollEvery); err != nil {
			return err
		}
	}
}

// Close stops the link daemon, if any.
func (l *Link) Close() error {
	if l.daemon == nil {
		return nil
	}
	return l.daemon.Stop()
}

func (l *Link) ifaceLabel() string {
	return ifaceLabel(l.iface)
}

func ifaceLabel(iface string) string {
	if iface == "" {
		return "any"
	}
	return iface
}

// AddressCheck returns a health check that fails with ErrLinkLost while iface has
// no global unicast address. It suits process.Config.HealthCheck for the
// link daemon.
func AddressCheck(iface string) func(ctx context.Context) error {
	return addressCheck(iface, interfaceHasAddr)
}

func addressCheck(iface string, hasAddr addrLookup) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := hasAddr(iface)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLinkLost, ifaceLabel(iface), err)
		}
		if !ok {
			return fmt.Errorf("%w: %s has no address", ErrLinkLost, ifaceLabel(iface))
		}
		return nil
	}
}

func interfaceHasAddr(iface string) (bool, error) {
	var ifaces []net.Interface
	if iface != "" {
		ifi, err := net.InterfaceByName(iface)
		if err != nil {
			return false, err
		}
		ifaces = []net.Interface{*ifi}
	} else {
		all, err := net.Interfaces()
		if err != nil {
			return false, err
		}
		ifaces = all
	}

	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			return false, err
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.IsGlobalUnicast() {
				return true, nil
			}
		}
	}
	return false, nil
}
