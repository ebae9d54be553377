// Package recorder persists live feed updates for desk history and replay.
//
// Writers:
//   - Position writer (position_updates table)
//   - Fill writer (trade_fills table)
//   - Alert writer (alerts table)
//   - Crawl writer (archive only)
//
// Each table writer consumes one feed subscription, batches rows, and inserts
// with ON CONFLICT DO NOTHING so replays after a reconnect never duplicate
// rows. Alongside the database, updates are appended to a zstd-compressed
// NDJSON archive with size-based segment rotation. Either destination is
// optional: the recorder runs archive-only when no database is configured.
//
// Crawl progress is transient console state, so it has no table; the crawl
// writer appends it to the archive only.
package recorder
