// Package api implements the HTTP API and WebSocket server for the cash
// card service.
//
// This package provides:
//   - CRUD endpoints for cash cards under /cashcards, scoped to the caller
//   - open account registration at POST /createuser
//   - HTTP Basic authentication, plus bearer tokens from POST /token
//   - a WebSocket stream of the caller's own card events
//   - middleware for request IDs, metrics, logging, recovery and CORS
//
// # Security
//
// Every card request passes two checks. The auth.Gate decides from the
// caller's role alone whether the endpoint may be used at all (401 without
// credentials, 403 for the wrong role). The card service then filters by
// owner, so a card belonging to someone else answers 404 exactly like one
// that does not exist. Error bodies carry only the status text.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
