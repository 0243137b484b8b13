// Package influxdb records supervisor lifecycle metrics in InfluxDB.
//
// The integration is optional and enabled via config.yaml. When enabled,
// the supervisor writes a point per process lifecycle event plus periodic
// uptime samples, using the non-blocking batched write API.
package influxdb
