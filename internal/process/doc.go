// Package process provides supervised subprocess lifecycle management.
//
// A Manager owns a single long-running child process (the GNSS driver) and
// drives it through a fixed state machine:
//
//	not_started -> running -> exiting -> exited -> running (respawn)
//
// Features:
//   - Spawn with optional pseudo-terminal so the child behaves as if run
//     interactively (log colouring, line buffering)
//   - Automatic respawn after any exit, crash or clean, with a fixed delay
//   - Graceful shutdown: SIGTERM to the process group, then SIGKILL after a
//     grace period
//   - Lifecycle events delivered to an optional callback for telemetry
//   - Child stdout/stderr forwarded to the supervisor log
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:         "septentrio-gnss",
//	    Binary:       "/opt/bin/gnss_driver",
//	    Args:         []string{"/opt/share/septentrio_gnss_driver/config/gnss.yaml"},
//	    Respawn:      true,
//	    RespawnDelay: 4 * time.Second,
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop()
package process
