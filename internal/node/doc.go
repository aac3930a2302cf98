// Package node runs the node's control loop.
//
// Startup brings the network link up, syncs the clock and opens the MQTT
// session. A failure in either of the first and last steps is fatal: the
// loop waits a fixed delay, asks the Restarter for a full restart, and
// returns a *RestartError without ever entering a cycle.
//
// After startup the loop repeats forever:
//
//	CheckMessages → reconnect once if not connected → collect every source
//	→ publish each reading (paced) → idle
//
// Steady-state failures never restart the node. Source and publish errors
// are logged and the cycle moves on; anything that escapes a cycle body
// (a panic in a driver, say) is recovered, logged, and followed by a short
// cooldown before the next cycle.
//
// Every wait goes through the injected clock.Clock, so tests drive the loop
// on a virtual clock.
package node
