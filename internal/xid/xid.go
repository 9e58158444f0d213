// Package xid generates unique ids for scan sessions.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns a prefixed id that is unique even across terminal restarts.
// If the random source fails, the timestamp alone still gives per-process
// uniqueness.
func New(prefix string) string {
	now := time.Now().UnixNano()
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, now)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now, hex.EncodeToString(buf))
}
