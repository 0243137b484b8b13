package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteLifecycleEvent records a process lifecycle event.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - process: Supervised process name (e.g. "septentrio-gnss")
//   - session: Launch session identifier
//   - eventType: Lifecycle event type (spawned, exited, ...)
//   - exitCode: Process exit code, -1 when not applicable
func (c *Client) WriteLifecycleEvent(process, session, eventType string, exitCode int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"process_lifecycle",
		map[string]string{
			"process": process,
			"type":    eventType,
		},
		map[string]interface{}{
			"session":   session,
			"exit_code": exitCode,
			"count":     1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteUptime records a periodic uptime sample for a running process.
//
// Parameters:
//   - process: Supervised process name
//   - uptime: Time since the current instance was spawned
//   - respawns: Cumulative respawn count for this supervisor run
func (c *Client) WriteUptime(process string, uptime time.Duration, respawns int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"process_uptime",
		map[string]string{
			"process": process,
		},
		map[string]interface{}{
			"uptime_seconds": uptime.Seconds(),
			"respawn_count":  respawns,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and
// fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
