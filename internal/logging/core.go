package logging

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newCore tees the stdout encoder and, when enabled, the OTEL bridge. Each
// output sits behind its own redactCore, and sampling wraps the tee.
func newCore(cfg Config, provider log.LoggerProvider) (zapcore.Core, error) {
	r, err := newRedactor(cfg.Redaction)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = zapcore.Lock(os.Stdout)
	}
	cores := []zapcore.Core{
		&redactCore{Core: zapcore.NewCore(newEncoder(cfg.Format), out, cfg.Level), r: r},
	}

	if cfg.OTEL && provider != nil {
		bridge := otelzap.NewCore(cfg.Service, otelzap.WithLoggerProvider(provider))
		cores = append(cores, &redactCore{
			Core: &levelRangeCore{Core: bridge, min: cfg.Level, max: zapcore.FatalLevel},
			r:    r,
		})
	}

	return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = encodeLevel

	if format == FormatConsole {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// newSampledCore gives every level listed in cfg.Levels its own sampler.
// The remaining levels below Error pass through, as does Error and above.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if len(cfg.Levels) == 0 {
		return core
	}

	cores := []zapcore.Core{
		&levelRangeCore{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel},
	}
	for lvl := TraceLevel; lvl < zapcore.ErrorLevel; lvl++ {
		only := &levelRangeCore{Core: core, min: lvl, max: lvl}
		ls, ok := cfg.Levels[lvl]
		if !ok {
			cores = append(cores, only)
			continue
		}
		cores = append(cores, zapcore.NewSamplerWithOptions(only, cfg.Tick, ls.Initial, ls.Thereafter))
	}
	return zapcore.NewTee(cores...)
}

// levelRangeCore passes entries whose level lies in [min, max].
type levelRangeCore struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *levelRangeCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && lvl <= c.max && c.Core.Enabled(lvl)
}

func (c *levelRangeCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

func (c *levelRangeCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelRangeCore{Core: c.Core.With(fields), min: c.min, max: c.max}
}
