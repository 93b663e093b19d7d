package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

var (
	debugMode   bool
	debugLogger = log.New(os.Stdout, "[DEBUG] ", log.Ldate|log.Ltime|log.Lshortfile)
)

// Init initializes the logger with debug mode
func Init(debug bool) {
	debugMode = debug
}

// SetOutput redirects debug output, mainly for tests.
func SetOutput(w io.Writer) {
	debugLogger.SetOutput(w)
}

// Debug prints debug messages if debug mode is enabled
func Debug(format string, v ...interface{}) {
	if debugMode {
		debugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}
