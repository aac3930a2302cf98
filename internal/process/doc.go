// Package process supervises the long-running helper daemon the node relies
// on to keep its network link up (wpa_supplicant, pppd for a cellular modem,
// and the like).
//
// A Supervisor starts the daemon in its own process group, forwards its
// output to the logger line by line, and restarts it with exponential
// backoff when it exits. A run that lasted longer than StableThreshold
// resets the backoff. Stop terminates the whole group with SIGTERM and
// falls back to SIGKILL after GracefulTimeout.
//
//	sup := process.NewSupervisor(process.Config{
//	    Name:   "wpa_supplicant",
//	    Binary: "/sbin/wpa_supplicant",
//	    Args:   []string{"-i", "wlan0", "-c", "/etc/wpa_supplicant.conf"},
//	})
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
package process
