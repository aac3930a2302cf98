// Package journal keeps a local SQLite record of control-loop cycles and the
// publish outcome of every reading.
//
// The journal survives link outages, so readings that could not be sent
// over MQTT are still available on the node for later inspection. Rows older
// than the configured retention are pruned.
package journal
