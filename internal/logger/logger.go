package logger

import (
	"os"
	"runtime/debug"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured JSON entries tagged with service, hostname,
// action and request_id.
type Logger struct {
	service  string
	hostname string
	zap      *zap.Logger
}

// New creates a JSON logger on stdout for the given service name.
func New(service string) *Logger {
	hostname, _ := os.Hostname()

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		zap.DebugLevel,
	)

	return newWithCore(service, hostname, core)
}

func newWithCore(service, hostname string, core zapcore.Core) *Logger {
	return &Logger{
		service:  service,
		hostname: hostname,
		zap:      zap.New(core),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{service: "nop", zap: zap.NewNop()}
}

// GenerateRequestID returns a fresh correlation id.
func GenerateRequestID() string {
	return uuid.NewString()
}

func (l *Logger) Info(action, message, requestID string, fields map[string]interface{}) {
	l.zap.Info(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Debug(action, message, requestID string, fields map[string]interface{}) {
	l.zap.Debug(message, l.fields(action, requestID, fields)...)
}

func (l *Logger) Warn(action, message, requestID string, fields map[string]interface{}) {
	l.zap.Warn(message, l.fields(action, requestID, fields)...)
}

// Error logs at error level. err may be nil.
func (l *Logger) Error(action, message, requestID string, err error, fields map[string]interface{}) {
	zf := l.fields(action, requestID, fields)
	if err != nil {
		zf = append(zf, zap.Dict("error",
			zap.String("msg", err.Error()),
			zap.String("stack", string(debug.Stack())),
		))
	}
	l.zap.Error(message, zf...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func (l *Logger) fields(action, requestID string, extra map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, 4+len(extra))
	zf = append(zf,
		zap.String("service", l.service),
		zap.String("hostname", l.hostname),
		zap.String("action", action),
		zap.String("request_id", requestID),
	)
	for k, v := range extra {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}
