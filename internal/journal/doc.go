// Package journal provides durable storage for resolution events.
//
// A coordinator with a journal attached appends one row per completed
// resolution attempt. Rows are grouped under a session token minted per
// journal open, so interleaved test runs against the same database stay
// distinguishable. SQLite with WAL mode; single writer.
package journal
