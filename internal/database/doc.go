// Package database provides PostgreSQL connection pool management for the recorder.
//
// Recorded feed history lives in three tables: position_updates, trade_fills,
// and alerts. The recorder batch-inserts into them; replay tooling reads back.
package database
