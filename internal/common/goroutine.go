// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs fn in a goroutine with panic recovery.
// Panics are logged but don't crash the service.
//
// Example:
//
//	common.SafeGo(logger, "publishEvent", func() {
//	    eventService.Publish(ctx, event)
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger, name, r)
			}
		}()

		fn()
	}()
}

// RecoverToError runs fn synchronously and converts a panic into an error
// carrying the panic value. Used where one failing unit must not abort a batch.
func RecoverToError(logger arbor.ILogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, name, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func logPanic(logger arbor.ILogger, name string, r interface{}) {
	stackTrace := GetStackTrace()

	if logger != nil {
		logger.Error().
			Str("goroutine", name).
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack", stackTrace).
			Msg("Recovered from panic - continuing service operation")
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in %s: %v\n%s\n", name, r, stackTrace)
}
