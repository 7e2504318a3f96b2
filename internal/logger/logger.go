package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gwi.com/story-weaver/internal/config"
)

const serviceName = "story-weaver"

// New builds the service logger from the LOG_* settings. Every entry is
// tagged with the service name and the store driver in use.
func New(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	encoder, err := newEncoder(cfg.LogEncoding)
	if err != nil {
		return nil, err
	}

	output := cfg.LogOutput
	if output == "" {
		output = "stdout"
	}
	sink, _, err := zap.Open(output)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output %q: %w", output, err)
	}
	errSink, _, err := zap.Open("stderr")
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr: %w", err)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.ErrorOutput(errSink)).With(
		zap.String("service", serviceName),
		zap.String("store_driver", cfg.StoreDriver),
	), nil
}

func newEncoder(encoding string) (zapcore.Encoder, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder

	switch strings.ToLower(encoding) {
	case "", "json":
		return zapcore.NewJSONEncoder(encCfg), nil
	case "console":
		return zapcore.NewConsoleEncoder(encCfg), nil
	}
	return nil, fmt.Errorf("unknown LOG_ENCODING %q", encoding)
}
