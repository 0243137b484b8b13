// Package driver manages the GNSS receiver driver process.
//
// It is the domain-specific layer above the generic process supervisor:
// it resolves the driver's configuration file path, builds the argument
// vector and environment for the driver binary, validates the
// configuration, and owns the process.Manager that supervises the running
// driver.
//
// Each Start begins a new launch session (identified by a UUID) so that
// persisted lifecycle events can be correlated with a specific run of the
// supervisor.
package driver
