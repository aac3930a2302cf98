// Package platform holds the Linux adapters behind the control loop's
// collaborator interfaces: bringing the network link up, syncing the wall
// clock, restarting the node, driving the status LED and opening the
// one-wire master.
//
// Everything here touches the host. The control loop only sees the small
// interfaces declared in package node, so it can be tested without any of
// this hardware.
package platform
