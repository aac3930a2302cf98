// Package modbus samples holding and input registers from a Modbus TCP or
// RTU slave and converts them to sensor readings.
//
// The connection is opened at the start of each Collect and closed at the
// end, so the serial line or socket is idle between cycles.
package modbus
