// Package stream multiplexes WebSocket endpoint subscriptions.
//
// The registry:
//   - Opens one WebSocket connection per endpoint path, shared by all
//     subscribers of that path
//   - Fans each decoded message out to every subscriber in order,
//     buffering per subscriber so slow consumers never drop events
//   - Publishes decode and transport failures as error events on the
//     same channel as data
//   - Redials failed connections with exponential backoff (1s doubling
//     to a 30s cap) until the last subscriber cancels
//   - Tears a connection down when its subscriber count reaches zero
package stream
