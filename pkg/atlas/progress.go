package atlas

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

var discardLogger = log.New(io.Discard)

// serialProgress wraps fn so concurrent workers report strictly increasing
// counts.
func serialProgress(fn ProgressFunc, total int) func() {
	if fn == nil {
		return func() {}
	}
	var (
		mu   sync.Mutex
		done int
	)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		done++
		fn(done, total)
	}
}
