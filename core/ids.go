package core

import (
	"encoding/hex"
	"fmt"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID returns a random identifier for jobs and databases.
func NewID() string {
	return uuid.NewString()
}

// ContentDigest returns a hex BLAKE2b-128 digest of data.
// Identical content always produces the identical digest.
func ContentDigest(data []byte) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ChunkID builds the deterministic id of a chunk so that re-running a build
// upserts instead of duplicating.
func ChunkID(databaseID string, sourceIndex, chunkIndex int) string {
	return fmt.Sprintf("%s_%d_%d", databaseID, sourceIndex, chunkIndex)
}
