// Package mqtt provides the node's single MQTT session.
//
// This package manages:
//   - The session lifecycle (Disconnected, Connecting, Connected)
//   - A last-will on status/<clientId> and retained online/offline status
//   - Publishing with drop-on-failure semantics
//   - Topic subscriptions restored on every connect
//   - Fan-out of inbound messages to named subscribers
//
// # Architecture
//
// paho.mqtt.golang runs its network I/O on internal goroutines. The Session
// never lets those goroutines touch node state: the connection-lost callback
// and the message handler only push into buffered channels. The control loop
// calls CheckMessages once per cycle, which drains the channels, applies any
// transport fault to the state machine, and dispatches messages to
// subscribers in registration order.
//
// Reconnection is owned by the caller. paho's auto-reconnect and connect
// retry are disabled so a failed handshake is reported immediately and the
// radio is not kept busy by background retries.
//
// # Security Considerations
//
//   - TLS (1.2 minimum) is enabled with mqtt.broker.tls
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	s := mqtt.NewSession(mqtt.NewSessionConfig(cfg.MQTT))
//	s.SetLogger(log)
//	if err := s.Connect(ctx); err != nil {
//	    return err
//	}
//	defer s.Disconnect()
//
//	s.CheckMessages()
//	err := s.Publish("Sensors", payload, false)
package mqtt
