package main

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/clock"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/platform"
	"github.com/nerrad567/gray-logic-node/internal/sensor"
	"github.com/nerrad567/gray-logic-node/internal/sensor/modbus"
	"github.com/nerrad567/gray-logic-node/internal/sensor/onewire"
)

// buildSources creates one sensor.Source per active sensor, in configuration
// order. The returned func releases every opened bus.
func buildSources(cfg *config.Config, clk clock.Clock, log *logging.Logger) ([]sensor.Source, func(), error) {
	var (
		sources []sensor.Source
		masters []*platform.OneWireMaster
	)
	closeAll := func() {
		for _, m := range masters {
			if err := m.Close(); err != nil {
				log.Warn("error closing one-wire master", "error", err)
			}
		}
	}

	for _, sc := range cfg.ActiveSensors() {
		switch sc.Type {
		case config.SensorTypeDS18B20:
			master, err := platform.OpenOneWire(sc.OneWire.I2CBus, sc.OneWire.I2CAddress)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("sensor %s: %w", sc.Name, err)
			}
			masters = append(masters, master)

			src := onewire.NewSource(sc.Name, master.Bus(), clk, oneWireConfig(sc))
			src.SetLogger(log.Component("onewire").With("sensor", sc.Name))
			sources = append(sources, src)

		case config.SensorTypeModbus:
			dial, err := modbus.NewDialer(modbusConnConfig(sc.Modbus))
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("sensor %s: %w", sc.Name, err)
			}
			src := modbus.NewSource(sc.Name, dial, modbusSourceConfig(sc))
			src.SetLogger(log.Component("modbus").With("sensor", sc.Name))
			sources = append(sources, src)
		}

		log.Info("sensor configured", "sensor", sc.Name, "type", sc.Type, "kind", sc.Kind, "location", sc.Location)
	}

	return sources, closeAll, nil
}

func oneWireConfig(sc config.SensorConfig) onewire.AcquirerConfig {
	return onewire.AcquirerConfig{
		SensorKind: sc.Kind,
		Location:   sc.Location,
		IDPrefix:   sc.IDPrefix,
		Unit:       sc.Unit,
		Settle:     sc.GetSettle(),
		Sentinel:   sc.OneWire.Sentinel,
	}
}

func modbusConnConfig(mc config.ModbusConfig) modbus.ConnConfig {
	return modbus.ConnConfig{
		Protocol:   mc.Protocol,
		Host:       mc.Host,
		Port:       mc.Port,
		SerialPort: mc.SerialPort,
		BaudRate:   mc.BaudRate,
		Parity:     mc.Parity,
		SlaveID:    mc.SlaveID,
		Timeout:    time.Duration(mc.Timeout) * time.Millisecond,
	}
}

func modbusSourceConfig(sc config.SensorConfig) modbus.SourceConfig {
	points := make([]modbus.Point, 0, len(sc.Modbus.Points))
	for _, p := range sc.Modbus.Points {
		points = append(points, modbus.Point{
			Name:     p.Name,
			Register: p.Register,
			Address:  p.Address,
			Signed:   p.Signed,
			Scale:    p.Scale,
			Offset:   p.Offset,
			Unit:     p.Unit,
		})
	}
	return modbus.SourceConfig{
		SensorKind: sc.Kind,
		Location:   sc.Location,
		IDPrefix:   sc.IDPrefix,
		Unit:       sc.Unit,
		Points:     points,
	}
}
