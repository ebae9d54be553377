// Package feed exposes the console's streaming endpoints as typed
// subscriptions.
//
// The feed:
//   - Binds each endpoint path to its wire decoder (positions, fills,
//     alerts, crawl progress)
//   - Shares one WebSocket connection per endpoint across subscribers
//   - Delivers decode and transport failures in-stream as Update.Err
//   - Reconnects failed endpoints with exponential backoff
package feed
