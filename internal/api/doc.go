// Package api provides the REST client for the StratVault console.
//
// Endpoints under /api/v1:
//   - positions, trades: current desk state and fill history
//   - crawl/tasks: crawl jobs known to the console
//   - alerts, alerts/{id}/ack: alert listing and acknowledgement
//   - health: console liveness and version
//
// Requests are rate limited client-side and retried with exponential
// backoff on 5xx and 429 responses.
package api
