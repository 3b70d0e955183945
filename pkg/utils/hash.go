package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashBytes returns the hex sha256 of b. Used to derive document IDs
// from file content so re-uploading the same PDF is idempotent.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashString returns the hex sha256 of s.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// ChunkID derives a stable chunk identifier from the owning document and
// the chunk's position, so re-ingestion upserts instead of duplicating.
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, index)
}
