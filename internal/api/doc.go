// Package api provides the HTTP status API for the GNSS launch
// supervisor.
//
// It exposes supervisor health, the supervised process's current state,
// the persisted event history, and a manual restart operation. The API
// is intended for localhost or trusted-network use on the rover.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
