// Package cli contains the Cobra commands behind the deskfeed binary.
//
// Commands:
//   - tail: stream live updates as NDJSON
//   - record: run the recorder daemon
//   - state: query REST snapshots (positions, alerts, crawl, health)
//   - ack: acknowledge an alert
//   - version: print build information
package cli
