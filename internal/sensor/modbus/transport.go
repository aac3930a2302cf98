package modbus

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	mb "github.com/goburrow/modbus"
)

const (
	protocolTCP = "tcp"
	protocolRTU = "rtu"

	defaultTimeout  = time.Second
	defaultTCPPort  = 502
	defaultBaudRate = 9600
)

// Transport is an open connection to one slave.
type Transport interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	Close() error
}

// Dialer opens a Transport. Source calls it once per cycle.
type Dialer func() (Transport, error)

// ConnConfig addresses a Modbus slave.
type ConnConfig struct {
	Protocol   string // tcp | rtu
	Host       string
	Port       int
	SerialPort string
	BaudRate   int
	Parity     string
	SlaveID    uint8
	Timeout    time.Duration
}

// handlerWithConn is a goburrow client handler with an explicit lifecycle.
type handlerWithConn interface {
	mb.ClientHandler
	Connect() error
	Close() error
}

// handlerTransport pairs a goburrow client with the handler it was built on.
type handlerTransport struct {
	mb.Client
	handler handlerWithConn
}

func (t *handlerTransport) Close() error {
	return t.handler.Close()
}

// NewDialer returns a Dialer that connects with goburrow/modbus.
func NewDialer(cfg ConnConfig) (Dialer, error) {
	if _, _, err := newHandler(cfg); err != nil {
		return nil, err
	}
	return func() (Transport, error) {
		h, addr, err := newHandler(cfg)
		if err != nil {
			return nil, err
		}
		if err := h.Connect(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConnect, addr, err)
		}
		return &handlerTransport{Client: mb.NewClient(h), handler: h}, nil
	}, nil
}

// newHandler builds a TCP or RTU handler and a printable address for logs.
func newHandler(cfg ConnConfig) (handlerWithConn, string, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Protocol)) {
	case protocolTCP:
		port := cfg.Port
		if port == 0 {
			port = defaultTCPPort
		}
		address := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		h := mb.NewTCPClientHandler(address)
		h.Timeout = timeout
		h.SlaveId = cfg.SlaveID
		return h, address, nil

	case protocolRTU:
		if strings.TrimSpace(cfg.SerialPort) == "" {
			return nil, "", fmt.Errorf("%w: serial port is required for rtu", ErrUnsupportedProtocol)
		}
		h := mb.NewRTUClientHandler(cfg.SerialPort)
		h.BaudRate = defaultBaudRate
		if cfg.BaudRate > 0 {
			h.BaudRate = cfg.BaudRate
		}
		if p := strings.ToUpper(strings.TrimSpace(cfg.Parity)); p != "" {
			h.Parity = p
		}
		h.Timeout = timeout
		h.SlaveId = cfg.SlaveID
		return h, cfg.SerialPort, nil

	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedProtocol, cfg.Protocol)
	}
}
