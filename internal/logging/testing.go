package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records entries in memory. Entries pass through the default
// redaction first, so tests observe what the daemon would write.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns a TestLogger recording every level.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	r, err := newRedactor(DefaultConfig().Redaction)
	if err != nil {
		panic(err)
	}
	return &TestLogger{
		Logger: &Logger{zap: zap.New(&redactCore{Core: core, r: r})},
		logs:   logs,
	}
}

// Entries returns everything logged so far.
func (t *TestLogger) Entries() []observer.LoggedEntry {
	return t.logs.All()
}

// Logged returns the fields of the first entry at level with message msg.
// It fails the test when there is none.
func (t *TestLogger) Logged(tb testing.TB, level zapcore.Level, msg string) map[string]interface{} {
	tb.Helper()
	for _, e := range t.logs.All() {
		if e.Level == level && e.Message == msg {
			return e.ContextMap()
		}
	}
	tb.Errorf("no %s entry %q; got %v", level, msg, t.messages())
	return nil
}

// AssertNoContent fails the test if any value appears in a message or a
// string field of any entry.
func (t *TestLogger) AssertNoContent(tb testing.TB, values ...string) {
	tb.Helper()
	for _, e := range t.logs.All() {
		for _, v := range values {
			if v == "" {
				continue
			}
			if strings.Contains(e.Message, v) {
				tb.Errorf("%q leaked into message %q", v, e.Message)
			}
			for _, f := range e.Context {
				if f.Type == zapcore.StringType && strings.Contains(f.String, v) {
					tb.Errorf("%q leaked into field %q of %q", v, f.Key, e.Message)
				}
			}
		}
	}
}

func (t *TestLogger) messages() []string {
	all := t.logs.All()
	out := make([]string, len(all))
	for i, e := range all {
		out[i] = e.Message
	}
	return out
}
