// Package influxdb archives node readings to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Each reading becomes a
// sensor_readings point tagged with node, sensor id, kind, location and unit;
// each control-loop cycle can add a node_cycles summary point.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Node.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	publisher.SetArchive(client)
//
// # Error Handling
//
// Writes are non-blocking and batched. Failures are delivered asynchronously
// to the SetOnError callback wrapped in ErrWriteFailed. The archive is an
// optional sink: the node keeps publishing over MQTT when InfluxDB is down.
package influxdb
