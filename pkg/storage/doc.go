// Package storage persists collected posts.
//
// Two sinks implement the Sink interface:
//   - NDJSONSink appends one JSON object per line to a file and syncs after
//     every batch
//   - SQLiteSink stores one row per post, with the raw payload next to a few
//     indexed columns (post id, platform, type, account id, date)
//
// Open picks the sink from the output file extension. With deduplication on,
// both sinks skip posts whose id is already stored, so re-running or
// resuming a collection into the same output does not duplicate posts.
// Records without an id are always written.
package storage
