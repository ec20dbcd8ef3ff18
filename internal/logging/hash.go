package logging

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// hashHex gives a filesystem-safe identifier for a workspace root from
// its xxhash; the daemon's control socket paths use a separate FNV-1a hash.
func hashHex(s string) string {
	return fmt.Sprintf("%08x", xxhash.Sum64String(s))
}
