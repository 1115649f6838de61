package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// EmbeddingHash derives a fixed-length lookup key from a face embedding: the
// first 16 hex characters of the SHA-256 of the raw little-endian bytes.
// Callers outside the engine use it to correlate live detections with
// customer records.
func EmbeddingHash(embedding []float64) string {
	buf := make([]byte, 8*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])[:16]
}
