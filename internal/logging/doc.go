// Package logging builds the structured logger used by vecsearchd.
//
// Logger wraps zap with methods that take a context and attach the request
// ID and trace/span IDs found there. Components that only need a plain
// *zap.Logger get one from Component.
//
//	logger, err := logging.New(logging.DefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.Info(ctx, "snapshot loaded", zap.Int("entries", 42))
//
// Request content never reaches an output. Values of the fields named in
// RedactionConfig (text, query, items and vector by default) are replaced
// with "[REDACTED:<len>]" for strings and "[REDACTED]" otherwise, before
// the entry is encoded to stdout or handed to the OpenTelemetry bridge.
//
// Levels listed in SamplingConfig are sampled per tick. Error and above
// are always written.
package logging
