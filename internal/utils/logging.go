package utils

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

var debugEnabled atomic.Bool

// InitLogging initializes logging
func InitLogging(level string) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	debugEnabled.Store(strings.EqualFold(level, "debug"))
}

// Debugf logs only when LOG_LEVEL=debug
func Debugf(format string, args ...interface{}) {
	if debugEnabled.Load() {
		_ = log.Output(2, fmt.Sprintf(format, args...))
	}
}
