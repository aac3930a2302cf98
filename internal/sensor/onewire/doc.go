// Package onewire samples DS18x20 temperature probes on a one-wire bus.
//
// A sampling pass has two halves:
//
//   - Scanner enumerates the ROM codes of every device answering on the bus.
//   - Acquirer broadcasts a temperature conversion to all devices at once,
//     waits out the conversion time on the injected clock, then reads each
//     device's scratchpad in enumeration order.
//
// The conversion wait is mandatory. A DS18B20 read before conversion has
// finished returns stale or power-on data, so Acquirer offers no way to read
// without first converting and waiting.
//
// Devices that still hold their power-on register value (85.0 °C) never
// completed a conversion; their values are dropped rather than reported.
//
// Bus access goes through the Bus interface. PeriphBus adapts any
// periph.io one-wire master (DS2482/DS2483 over I²C in production).
package onewire
