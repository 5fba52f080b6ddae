package archivekit

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the "sha256:" + 64 lowercase hex char content hash of b. Kept
// on crypto/sha256 deliberately (see DESIGN.md).
func Hash(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
