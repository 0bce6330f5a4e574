package rpc

import (
	"fmt"
	"log"
	"os"
)

// LogLevel controls which severities the rpc package's logger emits.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)

var currentLogLevel = LogLevelInfo

var (
	infoLogger  *log.Logger
	errorLogger *log.Logger
)

func init() {
	infoLogger = log.New(os.Stdout, "[rpc][INFO] ", log.Ldate|log.Ltime|log.Lshortfile)
	errorLogger = log.New(os.Stderr, "[rpc][ERROR] ", log.Ldate|log.Ltime|log.Lshortfile)
}

// SetLogLevel adjusts the package-level log level.
func SetLogLevel(l LogLevel) {
	currentLogLevel = l
}

// Info logs informational messages.
func Info(format string, v ...interface{}) {
	if currentLogLevel >= LogLevelInfo {
		infoLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Error logs error information.
func Error(format string, v ...interface{}) {
	if currentLogLevel >= LogLevelError {
		errorLogger.Output(2, fmt.Sprintf(format, v...))
	}
}
