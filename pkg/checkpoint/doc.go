// Package checkpoint saves and resumes collection progress.
//
// A collection job is identified by its list IDs and date range (see Key).
// After every accepted page the checkpoint stores the next-page locator and
// running counters, so an interrupted or budget-limited run can be picked up
// with `ctpull collect --resume`. Each run gets its own run ID.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/ctpull/checkpoints/ (or $XDG_DATA_HOME/ctpull)
//   - macOS: ~/Library/Application Support/ctpull/checkpoints/
//   - Windows: %APPDATA%/ctpull/checkpoints/
//
// Files are written to a temporary path and renamed into place, and carry a
// format version.
package checkpoint
