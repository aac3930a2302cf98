// Package telemetry turns sensor readings into MQTT publishes.
//
// A Publisher resolves the topic (static, or Sensors/<location>/<kind>),
// encodes the reading as {"id","value","unit"}, and spaces successive
// publishes within a cycle by a fixed pacing delay so the encrypted
// uplink is not flooded.
package telemetry
