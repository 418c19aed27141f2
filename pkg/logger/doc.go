// Package logger wraps zerolog behind a small structured logging interface.
//
// Console output goes to stderr so that records written to stdout stay
// machine readable. When a log file is configured every line is also
// appended there as JSON.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "collector")
//	log.InfoWithFields("page fetched", map[string]interface{}{
//	    "records": 100,
//	    "calls":   3,
//	})
//
// Tests can capture output with NewTestLogger or silence it with NewNopLogger.
package logger
