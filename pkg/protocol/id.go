package protocol

import (
	"fmt"
	"sync/atomic"
	"time"
)

// idCounter guarantees unique IDs even when two requests land in the same
// nanosecond.
var idCounter uint64

// generateID builds a chat-completion-style request ID.
func generateID() string {
	counter := atomic.AddUint64(&idCounter, 1)
	return fmt.Sprintf("chatcmpl-%d-%d", time.Now().UnixNano(), counter)
}
