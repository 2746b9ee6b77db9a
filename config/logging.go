package config

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogWriter is the writer used for application and database logs.
var LogWriter io.Writer = os.Stdout

// Logger is the structured application logger. It is a no-op until InitLogging runs.
var Logger = zap.NewNop()

// RequestIDKey stores the correlation id on a request context.
type RequestIDKey struct{}

// LogFilePath returns the path to the backend log file.
func LogFilePath() string {
	return filepath.Join("logs", "access-api.log")
}

// InitLogging prepares the log file, points the standard logger at it and
// builds the zap logger on top of the same writer.
func InitLogging() (*os.File, io.Writer) {
	logPath := filepath.Dir(LogFilePath())
	if err := os.MkdirAll(logPath, os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create logs directory: %v", err)
	}

	var logFile *os.File
	file, err := os.OpenFile(LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("Warning: Failed to open log file: %v", err)
		LogWriter = os.Stdout
	} else {
		logFile = file
		LogWriter = io.MultiWriter(os.Stdout, logFile)
	}
	log.SetOutput(LogWriter)

	Logger = newZapLogger(LogWriter)
	return logFile, LogWriter
}

func newZapLogger(w io.Writer) *zap.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoder := zapcore.NewConsoleEncoder(encoderCfg)
	level := zapcore.DebugLevel
	if IsProduction() {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
		level = zapcore.InfoLevel
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core, zap.AddCaller())
}

// Log returns the logger annotated with the request id carried by ctx.
func Log(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return Logger
	}
	if reqID, ok := ctx.Value(RequestIDKey{}).(string); ok && reqID != "" {
		return Logger.With(zap.String("request_id", reqID))
	}
	return Logger
}
