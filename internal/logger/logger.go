package logger

import (
	"io"
	"log"
	"os"
)

var DebugMode bool

// Init reads DEBUG from the environment. Without it every log line is
// discarded so nothing leaks into the TUI.
func Init() {
	if os.Getenv("DEBUG") == "true" {
		DebugMode = true
		return
	}
	log.SetOutput(io.Discard)
}

// SetOutput sets the output destination for the standard logger
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func Debug(format string, v ...interface{}) {
	if DebugMode {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func Info(format string, v ...interface{}) {
	log.Printf("[INFO] "+format, v...)
}

func Error(format string, v ...interface{}) {
	log.Printf("[ERROR] "+format, v...)
}
