package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxPatternLen = 200

const (
	redacted        = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
)

func redactedLen(n int) string {
	return "[REDACTED:" + strconv.Itoa(n) + "]"
}

// redactor masks field values that carry request content.
type redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	patterns, err := compilePatterns(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(cfg.Fields))
	for _, f := range cfg.Fields {
		keys[strings.ToLower(f)] = struct{}{}
	}
	return &redactor{keys: keys, patterns: patterns}, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern longer than %d chars: %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// apply returns fields with request content masked. fields itself is never
// modified; it is returned as is when nothing needed masking.
func (r *redactor) apply(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		masked, ok := r.mask(f)
		if !ok {
			if out != nil {
				out[i] = f
			}
			continue
		}
		if out == nil {
			out = make([]zapcore.Field, len(fields))
			copy(out, fields[:i])
		}
		out[i] = masked
	}
	if out == nil {
		return fields
	}
	return out
}

func (r *redactor) mask(f zapcore.Field) (zapcore.Field, bool) {
	if _, ok := r.keys[strings.ToLower(f.Key)]; ok {
		switch f.Type {
		case zapcore.SkipType:
			return f, false
		case zapcore.StringType:
			return zap.String(f.Key, redactedLen(len(f.String))), true
		case zapcore.ByteStringType, zapcore.BinaryType:
			if b, ok := f.Interface.([]byte); ok {
				return zap.String(f.Key, redactedLen(len(b))), true
			}
		}
		return zap.String(f.Key, redacted), true
	}
	if f.Type == zapcore.StringType {
		for _, re := range r.patterns {
			if re.MatchString(f.String) {
				return zap.String(f.Key, redactedPattern), true
			}
		}
	}
	return f, false
}

// redactCore masks fields on their way into the wrapped core, both those
// attached with With and those passed per entry.
type redactCore struct {
	zapcore.Core
	r *redactor
}

func (c *redactCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactCore{Core: c.Core.With(c.r.apply(fields)), r: c.r}
}

func (c *redactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, c.r.apply(fields))
}
