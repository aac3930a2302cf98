// Package sensor defines the Reading value produced by every sensor driver
// and the Source interface the control loop samples once per cycle.
//
// Drivers live in sub-packages:
//   - onewire: DS18B20/DS18S20 probes on a one-wire bus
//   - modbus:  register-backed probes on Modbus RTU or TCP
package sensor
