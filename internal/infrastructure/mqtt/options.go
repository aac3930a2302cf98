package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for the CONNACK.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// defaultKeepAlive is used when the configuration leaves keepalive unset.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// SessionConfig is the immutable connection description of a Session.
type SessionConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	ClientID  string
	KeepAlive time.Duration
	TLS       bool
	QoS       byte
}

// NewSessionConfig converts the YAML MQTT section into a SessionConfig.
func NewSessionConfig(cfg config.MQTTConfig) SessionConfig {
	return SessionConfig{
		Host:      cfg.Broker.Host,
		Port:      cfg.Broker.Port,
		Username:  cfg.Auth.Username,
		Password:  cfg.Auth.Password,
		ClientID:  cfg.Broker.ClientID,
		KeepAlive: time.Duration(cfg.KeepAlive) * time.Second,
		TLS:       cfg.Broker.TLS,
		QoS:       byte(cfg.QoS),
	}
}

// BrokerURL returns tcp://host:port or ssl://host:port.
func (c SessionConfig) BrokerURL() string {
	scheme := "tcp"
	if c.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// buildClientOptions creates paho MQTT options from a SessionConfig.
//
// Reconnection belongs to the control loop, so paho's auto-reconnect and
// connect-retry are both off. A failed handshake surfaces immediately.
func buildClientOptions(cfg SessionConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// configureWill registers the last-will on the status topic.
//
// The broker publishes it if the node vanishes without a clean disconnect,
// which on a battery node is the common case.
func configureWill(opts *pahomqtt.ClientOptions, clientID string, qos byte) {
	opts.SetWill(Topics{}.Status(clientID), StatusOffline, qos, true)
}
