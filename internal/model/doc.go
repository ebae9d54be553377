// Package model defines shared data types used across deskfeed.
//
// Types mirror the console wire format: every stream frame is an
// envelope {"type": ..., "data": {...}} whose payload decodes into one
// of the types here.
//
// Conventions:
//   - Prices and PnL: integer hundred-thousandths of a dollar
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: uuid.UUID for fills and alerts, string for crawl tasks
package model
