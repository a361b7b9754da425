// Package invariant centralizes the module's fatal-assertion convention:
// a violated invariant logs and terminates the goroutine that hit it
// rather than attempting to continue in an inconsistent state.
package invariant

import (
	"fmt"
	"log"
)

// Violate logs the formatted message and panics. The worker thread's event
// loop (RenderingContext.Run) runs a top-level recover() that turns this
// panic into a logged stop rather than a silent swallow; no other goroutine
// recovers it.
func Violate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("invariant violated: %s", msg)
	panic(msg)
}
